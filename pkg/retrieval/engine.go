package retrieval

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/scryer-dev/scryer/pkg/config"
	"github.com/scryer-dev/scryer/pkg/store"
)

// Mode selects which oracles participate in a query.
type Mode string

const (
	ModeFused    Mode = "fused"
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
)

// Embedder is the query-embedding dependency; satisfied by embed.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryOptions tunes a single query.
type QueryOptions struct {
	Limit         int
	Mode          Mode
	Intent        string // override; empty means classify
	IncludeIssues bool
}

// SearchResult is one fused, snippeted hit.
type SearchResult struct {
	Rank    int      `json:"rank"`
	DocID   string   `json:"doc_id"`
	Snippet string   `json:"snippet"`
	Score   float64  `json:"score"`
	Oracles []string `json:"oracles"`
	Repo    string   `json:"repo,omitempty"`
}

// QueryResponse is the first step of the two-step protocol: snippets plus a
// query id that detail fetches reference.
type QueryResponse struct {
	QueryID      string         `json:"query_id"`
	Query        string         `json:"query"`
	Intent       string         `json:"intent"`
	Results      []SearchResult `json:"results"`
	Participated []string       `json:"participated"`
}

// Engine owns the oracle set, the fan-out pool, and the session cache.
type Engine struct {
	cfg      config.Config
	store    *store.Store
	persona  *store.PersonaStore
	embedder Embedder
	oracles  []Oracle
	sessions SessionCache
	pool     *ants.Pool
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger; default discards nothing but logs
// to slog's default handler.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSessionCache swaps the session store; the daemon passes a
// badger-backed cache here.
func WithSessionCache(c SessionCache) Option {
	return func(e *Engine) { e.sessions = c }
}

// WithOracles replaces the default oracle set; used by tests and by the
// federation layer.
func WithOracles(oracles ...Oracle) Option {
	return func(e *Engine) { e.oracles = oracles }
}

// WithClock overrides time for deterministic query ids in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the standard oracle set over a repo store. persona may be
// nil when the profile database is absent.
func NewEngine(cfg config.Config, s *store.Store, persona *store.PersonaStore, embedder Embedder, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		store:    s,
		persona:  persona,
		embedder: embedder,
		logger:   slog.Default(),
		now:      time.Now,
	}
	e.oracles = []Oracle{
		NewSemanticOracle(s, cfg.Retrieval.OverFetch),
		NewLexicalOracle(s),
		NewTemporalOracle(s),
		NewPersonaOracle(persona),
		NewBeliefOracle(s, cfg.Retrieval.BeliefOverFetch),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.sessions == nil {
		e.sessions = NewMemorySessionCache(cfg.Session.CacheSize, cfg.SessionTTL())
	}

	size := 2 * len(e.oracles)
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool and the session cache. The store handles
// stay with their creator.
func (e *Engine) Close() error {
	e.pool.Release()
	return e.sessions.Close()
}

// Query runs the full pipeline: embed once, fan out to every available
// oracle, fuse by weighted reciprocal rank, snippet, and record a session.
//
// Zero results is a normal outcome, not an error: as long as at least one
// oracle was available the response comes back with an empty result list
// and Participated naming the oracles that ran. Blank query text degrades
// the same way an embedding outage does, every channel simply finds
// nothing to match.
func (e *Engine) Query(ctx context.Context, text string, opts QueryOptions) (*QueryResponse, error) {
	text = strings.TrimSpace(text)
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Mode == "" {
		opts.Mode = ModeFused
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.QueryTimeout())
	defer cancel()

	q := Query{Text: text, IncludeIssues: opts.IncludeIssues}
	if opts.Mode != ModeLexical && text != "" {
		emb, err := e.embedder.Embed(ctx, text)
		if err != nil {
			e.logger.Warn("embedding unavailable, vector oracles will sit out",
				"error", err)
		} else {
			q.Embedding = emb
		}
	}

	oracles := e.selectOracles(ctx, opts.Mode)
	if len(oracles) == 0 {
		return nil, ErrNoOracles
	}

	rankings, participated := e.fanOut(ctx, oracles, q, opts.Limit)

	intent := ClassifyIntent(text)
	if opts.Intent != "" {
		intent = ParseIntent(opts.Intent)
	}

	fused := Fuse(rankings, e.cfg.Retrieval.RRFK, WeightsFor(intent))
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	session := &QuerySession{
		ID:      NewQueryID(e.now()),
		Query:   text,
		Intent:  intent.String(),
		Created: e.now(),
	}

	results := make([]SearchResult, 0, len(fused))
	for i, f := range fused {
		session.DocIDs = append(session.DocIDs, f.DocID)
		results = append(results, SearchResult{
			Rank:    i + 1,
			DocID:   f.DocID,
			Snippet: Snippet(eventTypeFor(f.DocID), f.Best.Content),
			Score:   f.Score,
			Oracles: f.Oracles,
		})
	}

	if err := e.sessions.Put(session); err != nil {
		e.logger.Warn("session cache write failed", "error", err)
	}

	e.logger.Info("query completed",
		"query_id", session.ID,
		"intent", intent.String(),
		"oracles", participated,
		"results", len(results))

	return &QueryResponse{
		QueryID:      session.ID,
		Query:        text,
		Intent:       intent.String(),
		Results:      results,
		Participated: participated,
	}, nil
}

// selectOracles filters by mode and availability.
func (e *Engine) selectOracles(ctx context.Context, mode Mode) []Oracle {
	var out []Oracle
	for _, o := range e.oracles {
		switch mode {
		case ModeLexical:
			if o.Name() != OracleLexical {
				continue
			}
		case ModeSemantic:
			if o.Name() != OracleSemantic {
				continue
			}
		}
		if !o.Available(ctx) {
			e.logger.Debug("oracle unavailable", "oracle", o.Name())
			continue
		}
		out = append(out, o)
	}
	return out
}

// fanOut queries every oracle concurrently with a per-oracle deadline.
// Failures are dropped, never fatal; an oracle that ran cleanly counts as
// participated even when it found nothing. Output preserves oracle
// registration order so fusion is deterministic.
func (e *Engine) fanOut(ctx context.Context, oracles []Oracle, q Query, limit int) ([]OracleRanking, []string) {
	type slot struct {
		results []OracleResult
		ran     bool
	}
	slots := make([]slot, len(oracles))
	var wg sync.WaitGroup

	for i, o := range oracles {
		i, o := i, o
		wg.Add(1)
		task := func() {
			defer wg.Done()
			octx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout())
			defer cancel()

			start := time.Now()
			results, err := o.Query(octx, q, limit)
			if err != nil {
				e.logger.Warn("oracle failed, continuing without it",
					"oracle", o.Name(), "error", err)
				return
			}
			e.logger.Debug("oracle answered",
				"oracle", o.Name(), "hits", len(results),
				"elapsed", time.Since(start))
			slots[i] = slot{results: results, ran: true}
		}
		if err := e.pool.Submit(task); err != nil {
			// pool saturated or released, degrade to inline
			task()
		}
	}
	wg.Wait()

	var rankings []OracleRanking
	var participated []string
	for i, s := range slots {
		if !s.ran {
			continue
		}
		participated = append(participated, oracles[i].Name())
		if len(s.results) == 0 {
			continue
		}
		rankings = append(rankings, OracleRanking{
			Oracle:  oracles[i].Name(),
			Results: s.results,
		})
	}
	return rankings, participated
}

// SearchDetail wraps a resolved detail with the repo it came from; Repo is
// empty outside federated queries.
type SearchDetail struct {
	Detail *store.Detail
	Repo   string
}

// Detail is the second step of the protocol: expand a prior result by
// (query id, 1-based rank).
func (e *Engine) Detail(ctx context.Context, queryID string, rank int) (*store.Detail, error) {
	session, ok := e.sessions.Get(queryID)
	if !ok {
		return nil, ErrUnknownQuery
	}
	docID, err := session.DocAt(rank)
	if err != nil {
		return nil, err
	}
	return e.DetailByDocID(ctx, docID)
}

// DetailByDocID resolves full content for a stable document id, routing
// persona ids to the profile database.
func (e *Engine) DetailByDocID(ctx context.Context, docID string) (*store.Detail, error) {
	if strings.HasPrefix(docID, "persona:") {
		if e.persona == nil {
			return nil, ErrNoOracles
		}
		return e.persona.Detail(ctx, docID)
	}
	return e.store.Detail(ctx, docID)
}

// eventTypeFor maps a doc id prefix to the event-type tag the snippet
// layer keys truncation rules on.
func eventTypeFor(docID string) string {
	kind, _ := store.ParseDocID(docID)
	switch kind {
	case "belief":
		return "belief.surface"
	case "commit":
		return "git.commit"
	case "file":
		return "git.co_change"
	case "pattern":
		return "pattern.surface"
	case "code":
		return "code.function"
	case "session":
		return "session.event"
	default:
		return "forge." + kind
	}
}
