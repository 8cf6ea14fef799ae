package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/embed"
	"github.com/scryer-dev/scryer/pkg/retrieval"
	"github.com/scryer-dev/scryer/pkg/store"
)

var (
	// Global flags
	limit         int
	mode          string
	intent        string
	includeIssues bool
	allRepos      bool
	jsonOutput    bool
	verbose       bool
)

func Execute() error {
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "scryer [query]",
	Short: "Ask your repo what it knows - code, history, decisions, beliefs",
	Long: `scryer queries the knowledge base the ingestion pipeline builds from a
repository: extracted functions, commit history, session events, distilled
patterns and beliefs, plus a cross-project developer profile.

Several retrieval strategies answer in parallel (vector similarity, BM25,
co-change history, persona, beliefs) and their rankings are fused. Results
come back as snippets; use 'scryer detail <query-id> <rank>' to expand one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	rootCmd.Flags().StringVar(&mode, "mode", "fused", "Oracle selection: fused, lexical, semantic")
	rootCmd.Flags().StringVar(&intent, "intent", "", "Override intent classification (temporal, rationale, mechanism, definition)")
	rootCmd.Flags().BoolVar(&includeIssues, "issues", false, "Include forge issues and PRs")
	rootCmd.Flags().BoolVar(&allRepos, "all-repos", false, "Federate across registered related repos")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON (for agents)")

	rootCmd.AddCommand(detailCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// findProjectRoot walks up from dir looking for a .scryer data directory.
func findProjectRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if fi, err := os.Stat(filepath.Join(abs, config.DataDir)); err == nil && fi.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no %s directory found; run the ingestion pipeline first", config.DataDir)
		}
		abs = parent
	}
}

// newSessionCache opens the persistent session cache so query ids survive
// into a later detail invocation. When the badger directory is held by a
// running daemon this degrades to process memory; in that setup detail
// fetches belong on the daemon anyway.
func newSessionCache(cfg config.Config, logger *slog.Logger) retrieval.SessionCache {
	cache, err := retrieval.NewBadgerSessionCache(cfg.SessionCachePath(), cfg.SessionTTL())
	if err != nil {
		logger.Warn("persistent session cache unavailable, query ids will not outlive this process",
			"error", err)
		return retrieval.NewMemorySessionCache(cfg.Session.CacheSize, cfg.SessionTTL())
	}
	return cache
}

// openEngine wires a fully-armed engine for the repo at root. A non-nil
// sessions cache is handed to the engine, which closes it with the rest.
func openEngine(cfg config.Config, logger *slog.Logger, sessions retrieval.SessionCache) (*retrieval.Engine, func(), error) {
	st, err := store.OpenReadOnly(cfg.DBPath(), cfg.Embeddings.Dims)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open knowledge database: %w", err)
	}

	var persona *store.PersonaStore
	if p, err := store.OpenPersona(config.PersonaDBPath()); err == nil {
		persona = p
	} else {
		logger.Debug("persona database unavailable", "error", err)
	}

	embedder := embed.NewClient(cfg.Embeddings.Endpoint, cfg.Embeddings.Dims)
	opts := []retrieval.Option{retrieval.WithLogger(logger)}
	if sessions != nil {
		opts = append(opts, retrieval.WithSessionCache(sessions))
	}
	engine, err := retrieval.NewEngine(cfg, st, persona, embedder, opts...)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = engine.Close()
		if persona != nil {
			_ = persona.Close()
		}
		_ = st.Close()
	}
	return engine, cleanup, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	query := args[0]
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

	opts := retrieval.QueryOptions{
		Limit:         limit,
		Mode:          retrieval.Mode(mode),
		Intent:        intent,
		IncludeIssues: includeIssues,
	}

	var resp *retrieval.QueryResponse
	if allRepos && len(cfg.Repos) > 0 {
		resp, err = runFederated(ctx, cfg, logger, query, opts)
	} else {
		engine, cleanup, eErr := openEngine(cfg, logger, newSessionCache(cfg, logger))
		if eErr != nil {
			return eErr
		}
		defer cleanup()
		resp, err = engine.Query(ctx, query, opts)
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	return outputResponse(resp)
}

// buildFederation opens an engine per registered repo plus the local one.
// The shared sessions cache makes federated query ids resolvable by a
// later detail invocation; the returned cleanup closes everything
// including that cache.
func buildFederation(cfg config.Config, logger *slog.Logger, sessions retrieval.SessionCache) (*retrieval.Federation, func(), error) {
	engines := make(map[string]*retrieval.Engine)
	order := []string{"local"}
	var cleanups []func()

	local, cleanup, err := openEngine(cfg, logger, nil)
	if err != nil {
		_ = sessions.Close()
		return nil, nil, err
	}
	cleanups = append(cleanups, cleanup)
	engines["local"] = local

	for _, repo := range cfg.Repos {
		rcfg, err := config.Load(repo.Path)
		if err != nil {
			logger.Warn("skipping repo, config failed", "repo", repo.Name, "error", err)
			continue
		}
		engine, cleanup, err := openEngine(rcfg, logger, nil)
		if err != nil {
			logger.Warn("skipping repo", "repo", repo.Name, "error", err)
			continue
		}
		cleanups = append(cleanups, cleanup)
		engines[repo.Name] = engine
		order = append(order, repo.Name)
	}

	fed := retrieval.NewFederation(engines, order, cfg.Retrieval.RRFK, logger, sessions)
	allCleanup := func() {
		_ = fed.Close()
		for _, c := range cleanups {
			c()
		}
		_ = sessions.Close()
	}
	return fed, allCleanup, nil
}

// runFederated fuses the query across the local repo and every registered
// one.
func runFederated(ctx context.Context, cfg config.Config, logger *slog.Logger, query string, opts retrieval.QueryOptions) (*retrieval.QueryResponse, error) {
	fed, cleanup, err := buildFederation(cfg, logger, newSessionCache(cfg, logger))
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return fed.Query(ctx, query, opts)
}

func outputResponse(resp *retrieval.QueryResponse) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found")
		return nil
	}

	fmt.Printf("query %s (intent: %s)\n\n", resp.QueryID, resp.Intent)
	for _, r := range resp.Results {
		repo := ""
		if r.Repo != "" {
			repo = "[" + r.Repo + "] "
		}
		fmt.Printf("%2d. %s%s\n    %s\n", r.Rank, repo, r.DocID, r.Snippet)
	}
	fmt.Printf("\noracles: %v\n", resp.Participated)
	return nil
}
