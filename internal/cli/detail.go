package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/store"
)

var detailCmd = &cobra.Command{
	Use:   "detail <query-id> <rank>",
	Short: "Expand one result from an earlier query",
	Long: `detail fetches the full content behind a snippet: the complete event
payload, function documentation with co-change partners, a belief's
statement with its reach and support graph.

Rank is 1-based and refers to the ordering the query printed. Query ids
expire with the session cache; rerun the query if the id is gone.`,
	Args: cobra.ExactArgs(2),
	RunE: runDetail,
}

func runDetail(cmd *cobra.Command, args []string) error {
	queryID := args[0]
	rank, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("rank must be a number, got %q", args[1])
	}

	ctx := context.Background()
	logger := newLogger()

	root, err := findProjectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	// sessions written by search live in the shared persistent cache;
	// with related repos registered the federation dispatches the fetch
	// to whichever repo owns the ranked result
	var d *store.Detail
	if len(cfg.Repos) > 0 {
		fed, cleanup, fErr := buildFederation(cfg, logger, newSessionCache(cfg, logger))
		if fErr != nil {
			return fErr
		}
		defer cleanup()

		sd, dErr := fed.Detail(ctx, queryID, rank)
		if dErr != nil {
			return dErr
		}
		d = sd.Detail
	} else {
		engine, cleanup, eErr := openEngine(cfg, logger, newSessionCache(cfg, logger))
		if eErr != nil {
			return eErr
		}
		defer cleanup()

		var dErr error
		d, dErr = engine.Detail(ctx, queryID, rank)
		if dErr != nil {
			return dErr
		}
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(d)
	}

	fmt.Printf("%s (%s)\n\n%s\n", d.DocID, d.EventType, d.Full)
	if len(d.ReachFiles) > 0 {
		fmt.Printf("\nreach: %s\n", strings.Join(d.ReachFiles, ", "))
	}
	if len(d.Supports) > 0 {
		fmt.Printf("supports: %s\n", strings.Join(d.Supports, ", "))
	}
	if len(d.Attacks) > 0 {
		fmt.Printf("attacks: %s\n", strings.Join(d.Attacks, ", "))
	}
	if len(d.Imports) > 0 {
		fmt.Printf("imports: %s\n", strings.Join(d.Imports, ", "))
	}
	for _, p := range d.Partners {
		fmt.Printf("co-changes with %s (%d times)\n", p.File, p.Count)
	}
	return nil
}
