package cli

import (
	"github.com/spf13/cobra"

	"github.com/scryer-dev/scryer/internal/server"
	"github.com/scryer-dev/scryer/pkg/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the query daemon",
	Long: `serve runs a long-lived HTTP daemon exposing /search, /detail, and
/status. The knowledge database is reopened automatically when the
ingestion pipeline rewrites it, and query sessions can persist across
restarts when a badger path is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7373", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	root, err := findProjectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	return srv.ListenAndServe(serveAddr)
}
