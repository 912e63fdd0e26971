// Package build implements the snapshot build pipeline: paginate the
// critical-package list, bulk-upsert base records, enrich with version
// numbers under bounded concurrency, and finalize the build summary.
package build

import (
	"context"
	"fmt"
	"strings"
	"time"

	packageurl "github.com/package-url/packageurl-go"

	"github.com/critdb/critdb/internal/api"
	"github.com/critdb/critdb/internal/config"
	"github.com/critdb/critdb/internal/store"
)

// ProgressFunc receives one-line progress messages from the pipeline.
type ProgressFunc func(msg string)

// Builder coordinates the build pipeline.
type Builder struct {
	cfg          *config.Config
	client       *api.Client
	progress     ProgressFunc
	skipVersions bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithProgress sets the progress sink.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) {
		b.progress = fn
	}
}

// WithClient sets a custom API client.
func WithClient(c *api.Client) Option {
	return func(b *Builder) {
		b.client = c
	}
}

// SkipVersions disables the version-enrichment phase.
func SkipVersions() Option {
	return func(b *Builder) {
		b.skipVersions = true
	}
}

// New creates a builder for the given configuration.
func New(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{
		cfg:      cfg,
		progress: func(string) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = api.NewClient(
			api.WithBaseURL(cfg.API.URL),
			api.WithUserAgent(cfg.API.UserAgent),
		)
	}
	return b
}

// Result holds the results of a build run.
type Result struct {
	PackageCount  int
	VersionCount  int
	AdvisoryCount int
	Duration      time.Duration
	DBPath        string
}

// Run executes the build pipeline. Pagination and transaction failures
// are fatal; per-package version lookups are best-effort.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	b.progress("creating schema at " + b.cfg.Build.Output)
	st, err := store.Create(b.cfg.Build.Output)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	defer st.Close()

	pkgs, err := b.fetchAllCritical(ctx)
	if err != nil {
		return nil, err
	}
	b.progress(fmt.Sprintf("found %d critical packages", len(pkgs)))

	b.progress("inserting base records")
	if err := b.bulkUpsert(st, pkgs); err != nil {
		return nil, err
	}
	b.progress("inserted base records")

	if !b.skipVersions {
		if err := b.enrichVersions(ctx, st, pkgs); err != nil {
			return nil, err
		}
	}

	info, err := st.FinalizeBuild()
	if err != nil {
		return nil, fmt.Errorf("finalizing build: %w", err)
	}
	if err := st.WriteSummaryJSON(); err != nil {
		return nil, err
	}

	b.progress(fmt.Sprintf("done: %d packages, %d versions, %d advisories",
		info.PackageCount, info.VersionCount, info.AdvisoryCount))

	return &Result{
		PackageCount:  info.PackageCount,
		VersionCount:  info.VersionCount,
		AdvisoryCount: info.AdvisoryCount,
		Duration:      time.Since(start),
		DBPath:        st.DBPath(),
	}, nil
}

// bulkUpsert writes every package with its repo metadata and advisories
// inside a single all-or-nothing transaction.
func (b *Builder) bulkUpsert(st *store.Store, pkgs []api.Package) error {
	batch, err := st.BeginBatch()
	if err != nil {
		return fmt.Errorf("beginning bulk transaction: %w", err)
	}

	for _, pkg := range pkgs {
		if err := batch.UpsertPackage(toStorePackage(pkg)); err != nil {
			batch.Rollback()
			return fmt.Errorf("writing package %s/%s: %w", pkg.Ecosystem, pkg.Name, err)
		}
		if err := batch.UpsertRepoMetadata(toStoreRepo(pkg)); err != nil {
			batch.Rollback()
			return fmt.Errorf("writing repo metadata for %s/%s: %w", pkg.Ecosystem, pkg.Name, err)
		}
		if err := batch.UpsertAdvisories(store.PackageID(pkg.ID), toStoreAdvisories(pkg)); err != nil {
			batch.Rollback()
			return fmt.Errorf("writing advisories for %s/%s: %w", pkg.Ecosystem, pkg.Name, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("committing bulk transaction: %w", err)
	}
	return nil
}

func toStorePackage(pkg api.Package) *store.Package {
	purl := pkg.Purl
	if purl == "" {
		purl = packageurl.NewPackageURL(
			pkg.Ecosystem, pkg.Namespace, pkg.Name, "", nil, "").ToString()
	}
	return &store.Package{
		ID:                       store.PackageID(pkg.ID),
		Ecosystem:                pkg.Ecosystem,
		Name:                     pkg.Name,
		Purl:                     purl,
		Namespace:                pkg.Namespace,
		Description:              pkg.Description,
		Homepage:                 pkg.Homepage,
		RepositoryURL:            pkg.RepositoryURL,
		Licenses:                 pkg.Licenses,
		NormalizedLicenses:       pkg.NormalizedLicenses,
		LatestReleaseNumber:      pkg.LatestReleaseNumber,
		VersionsCount:            pkg.VersionsCount,
		DownloadsCount:           pkg.DownloadsCount,
		DownloadsPeriod:          pkg.DownloadsPeriod,
		DependentPackagesCount:   pkg.DependentPackagesCount,
		DependentReposCount:      pkg.DependentReposCount,
		FirstReleasePublishedAt:  pkg.FirstReleasePublishedAt,
		LatestReleasePublishedAt: pkg.LatestReleasePublishedAt,
		LastSyncedAt:             pkg.LastSyncedAt,
		Keywords:                 pkg.Keywords,
	}
}

func toStoreRepo(pkg api.Package) *store.RepoMetadata {
	meta := pkg.RepoMetadata
	if meta == nil {
		return nil
	}
	name := meta.Name
	if name == "" {
		if _, after, found := strings.Cut(meta.FullName, "/"); found {
			name = after
		}
	}
	return &store.RepoMetadata{
		PackageID:       store.PackageID(pkg.ID),
		Owner:           meta.Owner,
		Name:            name,
		FullName:        meta.FullName,
		Host:            meta.Host.Name,
		Language:        meta.Language,
		StargazersCount: meta.StargazersCount,
		ForksCount:      meta.ForksCount,
		OpenIssuesCount: meta.OpenIssuesCount,
		Archived:        meta.Archived,
		Fork:            meta.Fork,
	}
}

func toStoreAdvisories(pkg api.Package) []store.Advisory {
	if len(pkg.Advisories) == 0 {
		return nil
	}
	advisories := make([]store.Advisory, 0, len(pkg.Advisories))
	for _, adv := range pkg.Advisories {
		advisories = append(advisories, store.Advisory{
			PackageID:   store.PackageID(pkg.ID),
			UUID:        adv.UUID,
			URL:         adv.URL,
			Title:       adv.Title,
			Description: adv.Description,
			Severity:    adv.Severity,
			PublishedAt: adv.PublishedAt,
			CvssScore:   adv.CvssScore,
		})
	}
	return advisories
}
