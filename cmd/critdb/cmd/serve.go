package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/critdb/critdb/internal/server"
)

var (
	servePort int
	serveDB   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a snapshot over a read-only HTTP API",
	Long: `Start a local HTTP server over an existing snapshot.

Endpoints:
  GET /api/packages/:ecosystem/:name  Package with versions and advisories
  GET /api/lookup?purl=...            Package by package URL
  GET /api/search?query=...           Full-text search
  GET /api/stats                      Snapshot statistics
  GET /api/health                     Health check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(server.Config{
			Port:   servePort,
			DBPath: dbPath(serveDB),
		})
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to serve on")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "snapshot path (default from config)")
}
