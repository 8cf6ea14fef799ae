package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the knowledge base contains",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	root, err := findProjectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	st, err := store.OpenReadOnly(cfg.DBPath(), cfg.Embeddings.Dims)
	if err != nil {
		return fmt.Errorf("failed to open knowledge database: %w", err)
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(stats)
	}

	fmt.Printf("Knowledge base: %s\n", cfg.DBPath())
	fmt.Printf("  Size:      %.1f MB\n", float64(stats.SizeBytes)/(1024*1024))
	fmt.Printf("  Vectors:   %d (%d dims)\n", stats.Vectors, stats.Dims)
	fmt.Printf("  Sessions:  %d events\n", stats.Sessions)
	fmt.Printf("  Functions: %d\n", stats.Functions)
	fmt.Printf("  Patterns:  %d\n", stats.Patterns)
	fmt.Printf("  Commits:   %d\n", stats.Commits)
	fmt.Printf("  Beliefs:   %d\n", stats.Beliefs)
	fmt.Printf("  Issues:    %d\n", stats.Issues)
	fmt.Printf("  CoChanges: %d pairs\n", stats.CoChanges)
	if len(cfg.Repos) > 0 {
		fmt.Printf("  Federated repos:\n")
		for _, r := range cfg.Repos {
			fmt.Printf("    %s -> %s\n", r.Name, r.Path)
		}
	}
	return nil
}
