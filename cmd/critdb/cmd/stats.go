package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/store"
)

var statsDB string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics for an existing snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(dbPath(statsDB))
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer st.Close()

		stats, err := st.Summarize()
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}

		fmt.Printf("Packages:   %d\n", stats.PackageCount)
		fmt.Printf("Versions:   %d\n", stats.VersionCount)
		fmt.Printf("Advisories: %d\n", stats.AdvisoryCount)
		if !stats.LastBuildAt.IsZero() {
			fmt.Printf("Built at:   %s\n", stats.LastBuildAt.Format("2006-01-02 15:04:05 MST"))
		}

		if len(stats.PerEcosystem) > 0 {
			fmt.Println("\nPer ecosystem:")
			printCounts(stats.PerEcosystem)
		}
		if len(stats.PerSeverity) > 0 {
			fmt.Println("\nAdvisories per severity:")
			printCounts(stats.PerSeverity)
		}
		return nil
	},
}

func printCounts(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-16s %d\n", k, counts[k])
	}
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsDB, "db", "", "snapshot path (default from config)")
}
