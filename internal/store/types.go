package store

import "time"

// PackageID is the numeric identifier assigned by the upstream source.
type PackageID int64

// Package is a package row in the snapshot.
type Package struct {
	ID                       PackageID  `json:"id"`
	Ecosystem                string     `json:"ecosystem"`
	Name                     string     `json:"name"`
	Purl                     string     `json:"purl,omitempty"`
	Namespace                string     `json:"namespace,omitempty"`
	Description              string     `json:"description,omitempty"`
	Homepage                 string     `json:"homepage,omitempty"`
	RepositoryURL            string     `json:"repository_url,omitempty"`
	Licenses                 string     `json:"licenses,omitempty"`
	NormalizedLicenses       []string   `json:"normalized_licenses,omitempty"`
	LatestReleaseNumber      string     `json:"latest_release_number,omitempty"`
	VersionsCount            int        `json:"versions_count"`
	DownloadsCount           int64      `json:"downloads"`
	DownloadsPeriod          string     `json:"downloads_period,omitempty"`
	DependentPackagesCount   int        `json:"dependent_packages_count"`
	DependentReposCount      int        `json:"dependent_repos_count"`
	FirstReleasePublishedAt  *time.Time `json:"first_release_published_at,omitempty"`
	LatestReleasePublishedAt *time.Time `json:"latest_release_published_at,omitempty"`
	LastSyncedAt             *time.Time `json:"last_synced_at,omitempty"`
	Keywords                 []string   `json:"keywords,omitempty"`
}

// Advisory is a security notice row. UUID is never empty in storage.
type Advisory struct {
	PackageID   PackageID  `json:"package_id"`
	UUID        string     `json:"uuid"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CvssScore   float64    `json:"cvss_score"`
}

// RepoMetadata is the one-to-one repository row for a package.
type RepoMetadata struct {
	PackageID       PackageID `json:"package_id"`
	Owner           string    `json:"owner,omitempty"`
	Name            string    `json:"name,omitempty"`
	FullName        string    `json:"full_name,omitempty"`
	Host            string    `json:"host,omitempty"`
	Language        string    `json:"language,omitempty"`
	StargazersCount int       `json:"stars"`
	ForksCount      int       `json:"forks"`
	OpenIssuesCount int       `json:"open_issues"`
	Archived        bool      `json:"archived"`
	Fork            bool      `json:"fork"`
}

// BuildInfo summarizes the last successful build.
type BuildInfo struct {
	BuiltAt       time.Time `json:"built_at"`
	PackageCount  int       `json:"package_count"`
	VersionCount  int       `json:"version_count"`
	AdvisoryCount int       `json:"advisory_count"`
}
