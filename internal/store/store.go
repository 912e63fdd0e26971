package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeFormat is how timestamps are stored in TEXT columns.
const timeFormat = time.RFC3339

// Store handles persistence of the package snapshot to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Create builds a fresh snapshot store at dbPath. Any previous artifact
// at that path is deleted first, including WAL side files, so the schema
// is always applied to an empty target.
func Create(dbPath string) (*Store, error) {
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing %s: %w", p, err)
		}
	}
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	s, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(schema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Open opens an existing snapshot store for querying.
func Open(dbPath string) (*Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	return open(dbPath)
}

func open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// recursive_triggers makes the implicit delete of INSERT OR REPLACE
	// fire the FTS delete trigger; without it the projection would drift
	// on replaced rows.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA recursive_triggers = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// execer is satisfied by both *sql.DB and *sql.Tx so the upsert
// statements can run inside or outside a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// UpsertPackage writes all columns of a package row. A row with the
// same ID is replaced wholesale (last-write-wins, no field merge).
func (s *Store) UpsertPackage(pkg *Package) error {
	return upsertPackage(s.db, pkg)
}

// UpsertRepoMetadata writes the one-to-one repository row. A nil meta
// is a no-op: packages without a known repository get no row at all.
func (s *Store) UpsertRepoMetadata(meta *RepoMetadata) error {
	return upsertRepoMetadata(s.db, meta)
}

// UpsertAdvisories writes advisory rows keyed by (package_id, uuid).
// Entries without a UUID are skipped silently.
func (s *Store) UpsertAdvisories(pkgID PackageID, advisories []Advisory) error {
	return upsertAdvisories(s.db, pkgID, advisories)
}

// UpsertVersions writes one row per (package_id, number) pair.
// Duplicate numbers for the same package collapse to a single row.
func (s *Store) UpsertVersions(pkgID PackageID, numbers []string) error {
	return upsertVersions(s.db, pkgID, numbers)
}

func upsertPackage(e execer, pkg *Package) error {
	_, err := e.Exec(`
		INSERT OR REPLACE INTO packages (
			id, ecosystem, name, purl, namespace, description, homepage,
			repository_url, licenses, normalized_licenses, latest_release_number,
			versions_count, downloads, downloads_period,
			dependent_packages_count, dependent_repos_count,
			first_release_published_at, latest_release_published_at,
			last_synced_at, keywords
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(pkg.ID), pkg.Ecosystem, pkg.Name,
		nullString(pkg.Purl), nullString(pkg.Namespace), nullString(pkg.Description),
		nullString(pkg.Homepage), nullString(pkg.RepositoryURL), nullString(pkg.Licenses),
		marshalLicenses(pkg.NormalizedLicenses), nullString(pkg.LatestReleaseNumber),
		pkg.VersionsCount, pkg.DownloadsCount, nullString(pkg.DownloadsPeriod),
		pkg.DependentPackagesCount, pkg.DependentReposCount,
		nullTime(pkg.FirstReleasePublishedAt), nullTime(pkg.LatestReleasePublishedAt),
		nullTime(pkg.LastSyncedAt), joinKeywords(pkg.Keywords),
	)
	return err
}

func upsertRepoMetadata(e execer, meta *RepoMetadata) error {
	if meta == nil {
		return nil
	}
	_, err := e.Exec(`
		INSERT OR REPLACE INTO repo_metadata (
			package_id, owner, name, full_name, host, language,
			stars, forks, open_issues, archived, fork
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(meta.PackageID), nullString(meta.Owner), nullString(meta.Name),
		nullString(meta.FullName), nullString(meta.Host), nullString(meta.Language),
		meta.StargazersCount, meta.ForksCount, meta.OpenIssuesCount,
		boolInt(meta.Archived), boolInt(meta.Fork),
	)
	return err
}

func upsertAdvisories(e execer, pkgID PackageID, advisories []Advisory) error {
	for _, adv := range advisories {
		if adv.UUID == "" {
			continue
		}
		_, err := e.Exec(`
			INSERT OR REPLACE INTO advisories (
				package_id, uuid, url, title, description,
				severity, published_at, cvss_score
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			int64(pkgID), adv.UUID, nullString(adv.URL), nullString(adv.Title),
			nullString(adv.Description), nullString(adv.Severity),
			nullTime(adv.PublishedAt), adv.CvssScore,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func upsertVersions(e execer, pkgID PackageID, numbers []string) error {
	for _, number := range numbers {
		_, err := e.Exec(`
			INSERT OR REPLACE INTO versions (package_id, number) VALUES (?, ?)
		`, int64(pkgID), number)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetPackage looks up a package row by its unique (ecosystem, name) key.
func (s *Store) GetPackage(ecosystem, name string) (*Package, error) {
	return scanPackage(s.db.QueryRow(`
		SELECT id, ecosystem, name, purl, namespace, description, homepage,
		       repository_url, licenses, normalized_licenses, latest_release_number,
		       versions_count, downloads, downloads_period,
		       dependent_packages_count, dependent_repos_count,
		       first_release_published_at, latest_release_published_at,
		       last_synced_at, keywords
		FROM packages WHERE ecosystem = ? AND name = ?
	`, ecosystem, name))
}

// GetPackageByPurl looks up a package row by its package URL.
func (s *Store) GetPackageByPurl(purl string) (*Package, error) {
	return scanPackage(s.db.QueryRow(`
		SELECT id, ecosystem, name, purl, namespace, description, homepage,
		       repository_url, licenses, normalized_licenses, latest_release_number,
		       versions_count, downloads, downloads_period,
		       dependent_packages_count, dependent_repos_count,
		       first_release_published_at, latest_release_published_at,
		       last_synced_at, keywords
		FROM packages WHERE purl = ?
	`, purl))
}

// VersionNumbers returns the stored version numbers for a package.
func (s *Store) VersionNumbers(pkgID PackageID) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT number FROM versions WHERE package_id = ? ORDER BY number", int64(pkgID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers = append(numbers, number)
	}
	return numbers, rows.Err()
}

// Advisories returns the stored advisories for a package, newest first.
func (s *Store) Advisories(pkgID PackageID) ([]Advisory, error) {
	rows, err := s.db.Query(`
		SELECT uuid, url, title, description, severity, published_at, cvss_score
		FROM advisories WHERE package_id = ?
		ORDER BY published_at DESC, uuid
	`, int64(pkgID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var advisories []Advisory
	for rows.Next() {
		var (
			adv                   Advisory
			url, title, desc, sev sql.NullString
			published             sql.NullString
		)
		err := rows.Scan(&adv.UUID, &url, &title, &desc, &sev, &published, &adv.CvssScore)
		if err != nil {
			return nil, err
		}
		adv.PackageID = pkgID
		adv.URL = url.String
		adv.Title = title.String
		adv.Description = desc.String
		adv.Severity = sev.String
		adv.PublishedAt = parseTime(published)
		advisories = append(advisories, adv)
	}
	return advisories, rows.Err()
}

// GetRepoMetadata returns the repository row for a package, or nil when
// the package has none.
func (s *Store) GetRepoMetadata(pkgID PackageID) (*RepoMetadata, error) {
	var (
		meta                  RepoMetadata
		owner, name, fullName sql.NullString
		host, language        sql.NullString
		archived, fork        int
	)
	err := s.db.QueryRow(`
		SELECT owner, name, full_name, host, language,
		       stars, forks, open_issues, archived, fork
		FROM repo_metadata WHERE package_id = ?
	`, int64(pkgID)).Scan(
		&owner, &name, &fullName, &host, &language,
		&meta.StargazersCount, &meta.ForksCount, &meta.OpenIssuesCount,
		&archived, &fork,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta.PackageID = pkgID
	meta.Owner = owner.String
	meta.Name = name.String
	meta.FullName = fullName.String
	meta.Host = host.String
	meta.Language = language.String
	meta.Archived = archived != 0
	meta.Fork = fork != 0
	return &meta, nil
}

func scanPackage(row *sql.Row) (*Package, error) {
	var (
		pkg                      Package
		id                       int64
		purl, namespace, desc    sql.NullString
		homepage, repoURL        sql.NullString
		licenses, normalized     sql.NullString
		latest, period, keywords sql.NullString
		first, latestAt, synced  sql.NullString
	)
	err := row.Scan(
		&id, &pkg.Ecosystem, &pkg.Name, &purl, &namespace, &desc, &homepage,
		&repoURL, &licenses, &normalized, &latest,
		&pkg.VersionsCount, &pkg.DownloadsCount, &period,
		&pkg.DependentPackagesCount, &pkg.DependentReposCount,
		&first, &latestAt, &synced, &keywords,
	)
	if err != nil {
		return nil, err
	}

	pkg.ID = PackageID(id)
	pkg.Purl = purl.String
	pkg.Namespace = namespace.String
	pkg.Description = desc.String
	pkg.Homepage = homepage.String
	pkg.RepositoryURL = repoURL.String
	pkg.Licenses = licenses.String
	pkg.LatestReleaseNumber = latest.String
	pkg.DownloadsPeriod = period.String
	if normalized.Valid {
		if err := json.Unmarshal([]byte(normalized.String), &pkg.NormalizedLicenses); err != nil {
			return nil, fmt.Errorf("decoding normalized licenses: %w", err)
		}
	}
	if keywords.Valid {
		pkg.Keywords = strings.Fields(keywords.String)
	}
	pkg.FirstReleasePublishedAt = parseTime(first)
	pkg.LatestReleasePublishedAt = parseTime(latestAt)
	pkg.LastSyncedAt = parseTime(synced)
	return &pkg, nil
}

// BeginBatch starts a transaction for batched upserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batched upserts.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// UpsertPackage writes a package row within the batch.
func (b *BatchTx) UpsertPackage(pkg *Package) error {
	return upsertPackage(b.tx, pkg)
}

// UpsertRepoMetadata writes a repository row within the batch.
func (b *BatchTx) UpsertRepoMetadata(meta *RepoMetadata) error {
	return upsertRepoMetadata(b.tx, meta)
}

// UpsertAdvisories writes advisory rows within the batch.
func (b *BatchTx) UpsertAdvisories(pkgID PackageID, advisories []Advisory) error {
	return upsertAdvisories(b.tx, pkgID, advisories)
}

// UpsertVersions writes version rows within the batch.
func (b *BatchTx) UpsertVersions(pkgID PackageID, numbers []string) error {
	return upsertVersions(b.tx, pkgID, numbers)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// joinKeywords serializes a keyword list to a space-joined token string,
// or NULL when there are no keywords.
func joinKeywords(keywords []string) any {
	if len(keywords) == 0 {
		return nil
	}
	return strings.Join(keywords, " ")
}

func marshalLicenses(licenses []string) any {
	if len(licenses) == 0 {
		return nil
	}
	data, err := json.Marshal(licenses)
	if err != nil {
		return nil
	}
	return string(data)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
