package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/critdb/critdb/internal/api"
	"github.com/critdb/critdb/internal/store"
)

// enrichVersions fetches version numbers for every package in batches
// the size of the concurrency cap. Lookups within a batch run
// concurrently and results are keyed by package ID, so completion order
// inside a batch does not matter. Each batch is written in its own
// transaction; a transaction failure aborts the build, a lookup failure
// only empties that one package's version list.
func (b *Builder) enrichVersions(ctx context.Context, st *store.Store, pkgs []api.Package) error {
	concurrency := b.cfg.Build.Concurrency
	delay := b.cfg.Build.RequestDelay()
	done := 0

	for start := 0; start < len(pkgs); start += concurrency {
		batch := pkgs[start:min(start+concurrency, len(pkgs))]

		results := make(map[store.PackageID][]string, len(batch))
		var mu sync.Mutex
		var wg sync.WaitGroup

		for _, pkg := range batch {
			wg.Add(1)
			go func(pkg api.Package) {
				defer wg.Done()

				numbers, err := b.client.VersionNumbers(ctx, pkg.Ecosystem, pkg.Name)
				if err != nil {
					// Enrichment is best-effort: a failed lookup is
					// deliberately collapsed to "no versions known".
					numbers = nil
				}

				// Per-task pause keeps the request rate bounded even
				// with the full batch in flight.
				time.Sleep(delay)

				mu.Lock()
				results[store.PackageID(pkg.ID)] = numbers
				mu.Unlock()
			}(pkg)
		}
		wg.Wait()

		tx, err := st.BeginBatch()
		if err != nil {
			return fmt.Errorf("beginning version transaction: %w", err)
		}
		for id, numbers := range results {
			if err := tx.UpsertVersions(id, numbers); err != nil {
				tx.Rollback()
				return fmt.Errorf("writing versions for package %d: %w", id, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing version transaction: %w", err)
		}

		done += len(batch)
		b.progress(fmt.Sprintf("fetched versions for %d/%d packages", done, len(pkgs)))
	}
	return nil
}
