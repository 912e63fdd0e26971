package cmd

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	packageurl "github.com/package-url/packageurl-go"
	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/store"
)

var lookupDB string

var lookupCmd = &cobra.Command{
	Use:   "lookup <purl>",
	Short: "Look up a package by its package URL",
	Long: `Look up one package by package URL and print it as JSON, with its
stored version numbers and advisories attached.

Example:
  critdb lookup pkg:npm/lodash`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instance, err := packageurl.FromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid package URL %q: %w", args[0], err)
		}
		// The snapshot keys packages by unversioned purl.
		instance.Version = ""

		st, err := store.Open(dbPath(lookupDB))
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer st.Close()

		pkg, err := st.GetPackageByPurl(instance.ToString())
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("package %s not in snapshot", instance.ToString())
		}
		if err != nil {
			return fmt.Errorf("looking up package: %w", err)
		}

		versions, err := st.VersionNumbers(pkg.ID)
		if err != nil {
			return fmt.Errorf("reading versions: %w", err)
		}
		advisories, err := st.Advisories(pkg.ID)
		if err != nil {
			return fmt.Errorf("reading advisories: %w", err)
		}

		response := struct {
			*store.Package
			Versions   []string         `json:"versions,omitempty"`
			Advisories []store.Advisory `json:"advisories,omitempty"`
		}{
			Package:    pkg,
			Versions:   versions,
			Advisories: advisories,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.Flags().StringVar(&lookupDB, "db", "", "snapshot path (default from config)")
}
