package api

// registries maps an ecosystem name to the registry identifier the API
// uses in its /registries/{registry} routes. The table is fixed: an
// ecosystem missing here has no known registry and version lookups for
// it are skipped without a request.
var registries = map[string]string{
	"actions":   "github actions",
	"cargo":     "crates.io",
	"clojars":   "clojars.org",
	"cocoapods": "cocoapods.org",
	"cran":      "cran.r-project.org",
	"golang":    "proxy.golang.org",
	"hackage":   "hackage.haskell.org",
	"hex":       "hex.pm",
	"homebrew":  "formulae.brew.sh",
	"maven":     "repo1.maven.org",
	"npm":       "npmjs.org",
	"nuget":     "nuget.org",
	"packagist": "packagist.org",
	"pub":       "pub.dev",
	"pypi":      "pypi.org",
	"rubygems":  "rubygems.org",
}

// RegistryFor resolves an ecosystem name to its registry identifier.
// The second return is false when the ecosystem has no mapping.
func RegistryFor(ecosystem string) (string, bool) {
	registry, ok := registries[ecosystem]
	return registry, ok
}

// Ecosystems returns the ecosystem names with a known registry.
func Ecosystems() []string {
	names := make([]string, 0, len(registries))
	for eco := range registries {
		names = append(names, eco)
	}
	return names
}
