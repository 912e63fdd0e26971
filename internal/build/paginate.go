package build

import (
	"context"
	"fmt"
	"time"

	"github.com/critdb/critdb/internal/api"
)

// fetchAllCritical collects the complete critical-package list, page by
// page in strictly increasing order, stopping at the first empty page.
// Any page failure is fatal: there is no partial-catalog fallback.
func (b *Builder) fetchAllCritical(ctx context.Context) ([]api.Package, error) {
	var all []api.Package
	for page := 1; ; page++ {
		b.progress(fmt.Sprintf("fetching page %d", page))
		pkgs, err := b.client.CriticalPackages(ctx, page, b.cfg.Build.PageSize)

		// Fixed pause after every page fetch, successful or not, to
		// respect the upstream rate limit.
		time.Sleep(b.cfg.Build.RequestDelay())

		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}

		if len(pkgs) == 0 {
			return all, nil
		}
		all = append(all, pkgs...)
	}
}
