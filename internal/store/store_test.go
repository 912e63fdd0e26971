package store

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Create(filepath.Join(t.TempDir(), "critical.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testPackage() *Package {
	first := time.Date(2012, 4, 23, 16, 13, 47, 0, time.UTC)
	latest := time.Date(2021, 2, 20, 15, 42, 16, 0, time.UTC)
	synced := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	return &Package{
		ID:                       1,
		Ecosystem:                "npm",
		Name:                     "lodash",
		Purl:                     "pkg:npm/lodash",
		Namespace:                "",
		Description:              "Lodash modular utilities.",
		Homepage:                 "https://lodash.com/",
		RepositoryURL:            "https://github.com/lodash/lodash",
		Licenses:                 "MIT",
		NormalizedLicenses:       []string{"MIT"},
		LatestReleaseNumber:      "4.17.21",
		VersionsCount:            114,
		DownloadsCount:           45531764,
		DownloadsPeriod:          "last-month",
		DependentPackagesCount:   151566,
		DependentReposCount:      19152408,
		FirstReleasePublishedAt:  &first,
		LatestReleasePublishedAt: &latest,
		LastSyncedAt:             &synced,
		Keywords:                 []string{"modules", "stdlib", "util"},
	}
}

func TestCreateDeletesPriorArtifact(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "critical.db")

	// Simulate a stale artifact with WAL side files.
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.WriteFile(p, []byte("stale"), 0644); err != nil {
			t.Fatalf("writing stale file: %v", err)
		}
	}

	st, err := Create(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		t.Fatalf("schema not usable after create: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty packages table, got %d rows", count)
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"))
	if err == nil {
		t.Fatal("expected error opening missing artifact")
	}
}

func TestPackageRoundTrip(t *testing.T) {
	st := newTestStore(t)

	want := testPackage()
	if err := st.UpsertPackage(want); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	got, err := st.GetPackage("npm", "lodash")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestUpsertPackageReplacesWholeRow(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	// Same ID, sparser payload: every column must be overwritten,
	// nothing from the first write may leak through.
	changed := &Package{
		ID:        1,
		Ecosystem: "npm",
		Name:      "lodash",
		Purl:      "pkg:npm/lodash",
	}
	if err := st.UpsertPackage(changed); err != nil {
		t.Fatalf("failed to re-upsert package: %v", err)
	}

	got, err := st.GetPackage("npm", "lodash")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	if !reflect.DeepEqual(got, changed) {
		t.Errorf("replace leaked stale fields:\n got %+v\nwant %+v", got, changed)
	}

	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		t.Fatalf("failed to count packages: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 package row, got %d", count)
	}
}

func TestUpsertAdvisoriesSkipsMissingUUID(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	published := time.Date(2020, 7, 15, 0, 0, 0, 0, time.UTC)
	advisories := []Advisory{
		{PackageID: 1, UUID: "GHSA-p6mc-m468-83gw", URL: "https://github.com/advisories/GHSA-p6mc-m468-83gw",
			Title: "Prototype pollution", Severity: "high", PublishedAt: &published, CvssScore: 7.4},
		{PackageID: 1, Title: "no uuid, must be dropped", Severity: "critical"},
		{PackageID: 1, UUID: "GHSA-jf85-cpcp-j695", Severity: "moderate", CvssScore: 5.3},
	}
	if err := st.UpsertAdvisories(1, advisories); err != nil {
		t.Fatalf("failed to upsert advisories: %v", err)
	}

	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM advisories WHERE package_id = 1").Scan(&count); err != nil {
		t.Fatalf("failed to count advisories: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 advisories persisted, got %d", count)
	}

	var uuidless int
	err := st.db.QueryRow("SELECT COUNT(*) FROM advisories WHERE uuid = '' OR uuid IS NULL").Scan(&uuidless)
	if err != nil {
		t.Fatalf("failed to count uuid-less advisories: %v", err)
	}
	if uuidless != 0 {
		t.Errorf("expected no uuid-less advisories, got %d", uuidless)
	}
}

func TestUpsertAdvisoriesIdempotent(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	advisories := []Advisory{{PackageID: 1, UUID: "GHSA-p6mc-m468-83gw", Severity: "high"}}
	for i := 0; i < 2; i++ {
		if err := st.UpsertAdvisories(1, advisories); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM advisories").Scan(&count); err != nil {
		t.Fatalf("failed to count advisories: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 advisory after repeated upsert, got %d", count)
	}
}

func TestUpsertVersionsDeduplicates(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	if err := st.UpsertVersions(1, []string{"4.17.21", "4.17.20", "4.17.21"}); err != nil {
		t.Fatalf("failed to upsert versions: %v", err)
	}
	// Empty input is a no-op.
	if err := st.UpsertVersions(1, nil); err != nil {
		t.Fatalf("empty upsert failed: %v", err)
	}

	numbers, err := st.VersionNumbers(1)
	if err != nil {
		t.Fatalf("failed to read versions: %v", err)
	}
	if !reflect.DeepEqual(numbers, []string{"4.17.20", "4.17.21"}) {
		t.Errorf("versions = %v, want [4.17.20 4.17.21]", numbers)
	}
}

func TestUpsertRepoMetadata(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	// Nil metadata means no row, not a row of nulls.
	if err := st.UpsertRepoMetadata(nil); err != nil {
		t.Fatalf("nil metadata upsert failed: %v", err)
	}
	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM repo_metadata").Scan(&count); err != nil {
		t.Fatalf("failed to count repo rows: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no repo rows after nil upsert, got %d", count)
	}

	meta := &RepoMetadata{
		PackageID:       1,
		Owner:           "lodash",
		Name:            "lodash",
		FullName:        "lodash/lodash",
		Host:            "GitHub",
		Language:        "JavaScript",
		StargazersCount: 59000,
		ForksCount:      7000,
		OpenIssuesCount: 120,
		Archived:        true,
		Fork:            false,
	}
	if err := st.UpsertRepoMetadata(meta); err != nil {
		t.Fatalf("failed to upsert repo metadata: %v", err)
	}

	var archived, fork int
	err := st.db.QueryRow("SELECT archived, fork FROM repo_metadata WHERE package_id = 1").Scan(&archived, &fork)
	if err != nil {
		t.Fatalf("failed to read repo row: %v", err)
	}
	if archived != 1 || fork != 0 {
		t.Errorf("flags stored as (%d, %d), want (1, 0)", archived, fork)
	}
}

func TestGetRepoMetadataRoundTrip(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	// No row yet: a missing repo reads back as nil, not an error.
	meta, err := st.GetRepoMetadata(1)
	if err != nil {
		t.Fatalf("GetRepoMetadata failed: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil metadata before upsert, got %+v", meta)
	}

	want := &RepoMetadata{
		PackageID:       1,
		Owner:           "lodash",
		Name:            "lodash",
		FullName:        "lodash/lodash",
		Host:            "GitHub",
		Language:        "JavaScript",
		StargazersCount: 59000,
		ForksCount:      7000,
		OpenIssuesCount: 120,
		Archived:        true,
		Fork:            false,
	}
	if err := st.UpsertRepoMetadata(want); err != nil {
		t.Fatalf("failed to upsert repo metadata: %v", err)
	}

	got, err := st.GetRepoMetadata(1)
	if err != nil {
		t.Fatalf("GetRepoMetadata failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("metadata = %+v, want %+v", got, want)
	}
}

func TestFullTextProjectionStaysSynchronized(t *testing.T) {
	st := newTestStore(t)

	pkg := testPackage()
	if err := st.UpsertPackage(pkg); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	// Token from the keyword string.
	results, err := st.Search("stdlib", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].Name != "lodash" {
		t.Fatalf("search(stdlib) = %+v, want lodash", results)
	}

	// Token from the description.
	results, err = st.Search("modular", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("search(modular) = %+v, want 1 result", results)
	}

	// Replace the row without the token; the projection must follow.
	pkg.Keywords = []string{"modules", "util"}
	pkg.Description = "Utility belt."
	if err := st.UpsertPackage(pkg); err != nil {
		t.Fatalf("failed to re-upsert package: %v", err)
	}

	for _, q := range []string{"stdlib", "modular"} {
		results, err = st.Search(q, 10)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("search(%s) after update = %+v, want none", q, results)
		}
	}

	// Token still present keeps matching.
	results, err = st.Search("util", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("search(util) = %+v, want 1 result", results)
	}
}

func TestBatchTxRollback(t *testing.T) {
	st := newTestStore(t)

	batch, err := st.BeginBatch()
	if err != nil {
		t.Fatalf("failed to begin batch: %v", err)
	}
	if err := batch.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert in batch: %v", err)
	}
	if err := batch.Rollback(); err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}

	var count int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		t.Fatalf("failed to count packages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback to discard writes, got %d rows", count)
	}
}

func TestBatchTxCommit(t *testing.T) {
	st := newTestStore(t)

	batch, err := st.BeginBatch()
	if err != nil {
		t.Fatalf("failed to begin batch: %v", err)
	}
	pkg := testPackage()
	if err := batch.UpsertPackage(pkg); err != nil {
		t.Fatalf("failed to upsert package in batch: %v", err)
	}
	if err := batch.UpsertRepoMetadata(&RepoMetadata{PackageID: 1, FullName: "lodash/lodash"}); err != nil {
		t.Fatalf("failed to upsert repo metadata in batch: %v", err)
	}
	if err := batch.UpsertAdvisories(1, []Advisory{{PackageID: 1, UUID: "GHSA-x"}}); err != nil {
		t.Fatalf("failed to upsert advisories in batch: %v", err)
	}
	if err := batch.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	got, err := st.GetPackage("npm", "lodash")
	if err != nil {
		t.Fatalf("failed to get package: %v", err)
	}
	if got.ID != 1 {
		t.Errorf("got package ID %d, want 1", got.ID)
	}
}

func TestGetPackageByPurl(t *testing.T) {
	st := newTestStore(t)

	if err := st.UpsertPackage(testPackage()); err != nil {
		t.Fatalf("failed to upsert package: %v", err)
	}

	got, err := st.GetPackageByPurl("pkg:npm/lodash")
	if err != nil {
		t.Fatalf("failed to look up by purl: %v", err)
	}
	if got.Name != "lodash" {
		t.Errorf("got %q, want lodash", got.Name)
	}
}
