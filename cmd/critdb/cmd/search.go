package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/store"
)

var (
	searchDB    string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over package names, descriptions and keywords",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(dbPath(searchDB))
		if err != nil {
			return fmt.Errorf("opening snapshot: %w", err)
		}
		defer st.Close()

		results, err := st.Search(args[0], searchLimit)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("no matches")
			return nil
		}

		for _, res := range results {
			fmt.Printf("%s/%s", res.Ecosystem, res.Name)
			if res.Description != "" {
				fmt.Printf("\t%s", res.Description)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchDB, "db", "", "snapshot path (default from config)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
}
