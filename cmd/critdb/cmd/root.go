package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "critdb",
	Short: "critdb - Local snapshot of critical open-source package metadata",
	Long: `critdb builds a queryable SQLite snapshot of the packages the
upstream aggregation service flags as critical infrastructure.

It fetches the full critical-package list page by page, enriches each
package with its known version numbers, and stores everything locally
with a full-text search index over names, descriptions and keywords.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Level:           level,
		})

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./critdb.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// dbPath resolves the snapshot path for read commands: the --db flag
// when set, the configured build output otherwise.
func dbPath(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.Build.Output
}
