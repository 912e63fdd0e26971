package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Stats holds aggregate numbers over a finished snapshot.
type Stats struct {
	PackageCount  int            `json:"package_count"`
	VersionCount  int            `json:"version_count"`
	AdvisoryCount int            `json:"advisory_count"`
	PerEcosystem  map[string]int `json:"per_ecosystem"`
	PerSeverity   map[string]int `json:"per_severity"`
	LastBuildAt   time.Time      `json:"last_build_at"`
}

// Summarize runs read-only aggregate queries over the store. Counts come
// from the build_info row when one exists; a store without one (e.g. an
// aborted or foreign artifact) falls back to live COUNT queries.
func (s *Store) Summarize() (*Stats, error) {
	stats := &Stats{
		PerEcosystem: make(map[string]int),
		PerSeverity:  make(map[string]int),
	}

	info, err := s.buildInfo()
	if err != nil {
		return nil, err
	}
	if info != nil {
		stats.PackageCount = info.PackageCount
		stats.VersionCount = info.VersionCount
		stats.AdvisoryCount = info.AdvisoryCount
		stats.LastBuildAt = info.BuiltAt
	} else {
		counts := []struct {
			table string
			dest  *int
		}{
			{"packages", &stats.PackageCount},
			{"versions", &stats.VersionCount},
			{"advisories", &stats.AdvisoryCount},
		}
		for _, c := range counts {
			err := s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest)
			if err != nil {
				return nil, fmt.Errorf("counting %s: %w", c.table, err)
			}
		}
	}

	if err := s.groupCount("SELECT ecosystem, COUNT(*) FROM packages GROUP BY ecosystem", stats.PerEcosystem); err != nil {
		return nil, fmt.Errorf("counting ecosystems: %w", err)
	}
	if err := s.groupCount("SELECT COALESCE(severity, 'unknown'), COUNT(*) FROM advisories GROUP BY severity", stats.PerSeverity); err != nil {
		return nil, fmt.Errorf("counting severities: %w", err)
	}

	return stats, nil
}

func (s *Store) groupCount(query string, dest map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}

// buildInfo reads the singleton build row, or nil when absent.
func (s *Store) buildInfo() (*BuildInfo, error) {
	var info BuildInfo
	var builtAt string
	err := s.db.QueryRow(`
		SELECT built_at, package_count, version_count, advisory_count
		FROM build_info WHERE id = 1
	`).Scan(&builtAt, &info.PackageCount, &info.VersionCount, &info.AdvisoryCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if t, err := time.Parse(timeFormat, builtAt); err == nil {
		info.BuiltAt = t
	}
	return &info, nil
}

// FinalizeBuild counts the stored rows and writes the singleton
// build_info record. It is the one write performed outside the main
// transactions, once, at the very end of a successful build.
func (s *Store) FinalizeBuild() (*BuildInfo, error) {
	info := &BuildInfo{BuiltAt: time.Now().UTC().Truncate(time.Second)}

	counts := []struct {
		table string
		dest  *int
	}{
		{"packages", &info.PackageCount},
		{"versions", &info.VersionCount},
		{"advisories", &info.AdvisoryCount},
	}
	for _, c := range counts {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO build_info (id, built_at, package_count, version_count, advisory_count)
		VALUES (1, ?, ?, ?, ?)
	`, info.BuiltAt.Format(timeFormat), info.PackageCount, info.VersionCount, info.AdvisoryCount)
	if err != nil {
		return nil, fmt.Errorf("writing build info: %w", err)
	}
	return info, nil
}

// WriteSummaryJSON writes a <artifact>.json sidecar with the build
// summary so consumers can inspect counts without opening the database.
func (s *Store) WriteSummaryJSON() error {
	stats, err := s.Summarize()
	if err != nil {
		return fmt.Errorf("summarizing: %w", err)
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	if err := os.WriteFile(s.dbPath+".json", data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
