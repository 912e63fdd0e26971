// Package api provides a client for the packages metadata API.
package api

import "time"

// Package is a package record as returned by the critical-packages endpoint.
type Package struct {
	ID                       int64         `json:"id"`
	Ecosystem                string        `json:"ecosystem"`
	Name                     string        `json:"name"`
	Purl                     string        `json:"purl"`
	Namespace                string        `json:"namespace"`
	Description              string        `json:"description"`
	Homepage                 string        `json:"homepage"`
	RepositoryURL            string        `json:"repository_url"`
	Licenses                 string        `json:"licenses"`
	NormalizedLicenses       []string      `json:"normalized_licenses"`
	LatestReleaseNumber      string        `json:"latest_release_number"`
	VersionsCount            int           `json:"versions_count"`
	DownloadsCount           int64         `json:"downloads"`
	DownloadsPeriod          string        `json:"downloads_period"`
	DependentPackagesCount   int           `json:"dependent_packages_count"`
	DependentReposCount      int           `json:"dependent_repos_count"`
	FirstReleasePublishedAt  *time.Time    `json:"first_release_published_at"`
	LatestReleasePublishedAt *time.Time    `json:"latest_release_published_at"`
	LastSyncedAt             *time.Time    `json:"last_synced_at"`
	Keywords                 []string      `json:"keywords_array"`
	RepoMetadata             *RepoMetadata `json:"repo_metadata"`
	Advisories               []Advisory    `json:"advisories"`
}

// RepoMetadata describes the source repository backing a package.
// Absent when the upstream source knows of no repository.
type RepoMetadata struct {
	Owner           string `json:"owner"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Host            Host   `json:"host"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	OpenIssuesCount int    `json:"open_issues_count"`
	Archived        bool   `json:"archived"`
	Fork            bool   `json:"fork"`
}

// Host is the hosting service a repository lives on (GitHub, GitLab, ...).
type Host struct {
	Name string `json:"name"`
}

// Advisory is a published security notice attached to a package.
// The UUID correlates it with the upstream advisory feed; records
// without one cannot be stored.
type Advisory struct {
	UUID        string     `json:"uuid"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	PublishedAt *time.Time `json:"published_at"`
	CvssScore   float64    `json:"cvss_score"`
}
