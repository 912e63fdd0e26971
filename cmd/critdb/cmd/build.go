package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/build"
)

var (
	buildOutput       string
	buildSkipVersions bool
	buildConcurrency  int
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a fresh snapshot of the critical-package catalog",
	Long: `Fetch the complete critical-package list and build the snapshot.

The build command:
- Deletes any previous snapshot at the output path
- Pages through the upstream critical-package list until exhausted
- Inserts packages, advisories and repository metadata in one transaction
- Fetches version numbers per package under bounded concurrency
- Records build statistics and writes a JSON summary sidecar`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildOutput != "" {
			cfg.Build.Output = buildOutput
		}
		if buildConcurrency > 0 {
			cfg.Build.Concurrency = buildConcurrency
		}

		opts := []build.Option{
			build.WithProgress(func(msg string) { logger.Info(msg) }),
		}
		if buildSkipVersions {
			opts = append(opts, build.SkipVersions())
		}

		result, err := build.New(cfg, opts...).Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}

		fmt.Println()
		fmt.Printf("Build complete!\n")
		fmt.Printf("  Packages:   %d\n", result.PackageCount)
		fmt.Printf("  Versions:   %d\n", result.VersionCount)
		fmt.Printf("  Advisories: %d\n", result.AdvisoryCount)
		fmt.Printf("  Duration:   %s\n", result.Duration.Round(time.Millisecond))
		fmt.Printf("  Database:   %s\n", result.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "snapshot output path (default from config)")
	buildCmd.Flags().BoolVar(&buildSkipVersions, "skip-versions", false, "skip the version-enrichment phase")
	buildCmd.Flags().IntVar(&buildConcurrency, "concurrency", 0, "version lookups in flight at once (default from config)")
}
