package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Federation fans a query out across the local repo and every registered
// related repo, then fuses the per-repo fused lists with a second
// reciprocal-rank pass. Each repo engine keeps its own oracle set and
// weights; federation only sees their final orderings.
type Federation struct {
	engines      map[string]*Engine
	order        []string // deterministic fan-out and fusion order
	sessions     SessionCache
	ownsSessions bool
	logger       *slog.Logger
	rrfK         int
	now          func() time.Time
}

// NewFederation builds a federation over named engines. The first name in
// order is conventionally the local repo. sessions may be nil for an
// in-process cache; callers wanting detail fetches to work from a later
// process pass a persistent cache, which stays theirs to close.
func NewFederation(engines map[string]*Engine, order []string, rrfK int, logger *slog.Logger, sessions SessionCache) *Federation {
	if logger == nil {
		logger = slog.Default()
	}
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	owns := false
	if sessions == nil {
		sessions = NewMemorySessionCache(256, 30*time.Minute)
		owns = true
	}
	return &Federation{
		engines:      engines,
		order:        order,
		sessions:     sessions,
		ownsSessions: owns,
		logger:       logger,
		rrfK:         rrfK,
		now:          time.Now,
	}
}

// Query runs the query against every repo in parallel and rank-fuses the
// per-repo answers. A repo that errors is skipped, same contract as a
// failing oracle inside one repo.
func (f *Federation) Query(ctx context.Context, text string, opts QueryOptions) (*QueryResponse, error) {
	type repoAnswer struct {
		name string
		resp *QueryResponse
	}

	answers := make([]*repoAnswer, len(f.order))
	var wg sync.WaitGroup
	for i, name := range f.order {
		engine, ok := f.engines[name]
		if !ok {
			continue
		}
		i, name, engine := i, name, engine
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := engine.Query(ctx, text, opts)
			if err != nil {
				f.logger.Warn("repo skipped in federated query",
					"repo", name, "error", err)
				return
			}
			answers[i] = &repoAnswer{name: name, resp: resp}
		}()
	}
	wg.Wait()

	var rankings []OracleRanking
	var participated []string
	snippets := make(map[string]string)
	repoOf := make(map[string]string)
	intent := IntentGeneral.String()

	for _, a := range answers {
		if a == nil {
			continue
		}
		results := make([]OracleResult, 0, len(a.resp.Results))
		for _, r := range a.resp.Results {
			// qualify ids so the same path in two repos stays distinct
			qualified := a.name + "::" + r.DocID
			snippets[qualified] = r.Snippet
			repoOf[qualified] = a.name
			results = append(results, OracleResult{
				DocID:   qualified,
				Content: r.Snippet,
				Score:   r.Score,
			})
		}
		rankings = append(rankings, OracleRanking{Oracle: a.name, Results: results})
		for _, p := range a.resp.Participated {
			participated = append(participated, a.name+"/"+p)
		}
		intent = a.resp.Intent
	}
	if len(rankings) == 0 {
		return nil, ErrNoOracles
	}

	fused := Fuse(rankings, f.rrfK, nil)
	if opts.Limit > 0 && len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	session := &QuerySession{
		ID:      NewQueryID(f.now()),
		Query:   text,
		Intent:  intent,
		Created: f.now(),
	}

	out := make([]SearchResult, 0, len(fused))
	for i, fr := range fused {
		repo := repoOf[fr.DocID]
		plain := fr.DocID[len(repo)+2:]
		session.DocIDs = append(session.DocIDs, plain)
		session.Repos = append(session.Repos, repo)
		out = append(out, SearchResult{
			Rank:    i + 1,
			DocID:   plain,
			Snippet: snippets[fr.DocID],
			Score:   fr.Score,
			Oracles: fr.Oracles,
			Repo:    repo,
		})
	}

	sort.Strings(participated)

	if err := f.sessions.Put(session); err != nil {
		f.logger.Warn("session cache write failed", "error", err)
	}

	return &QueryResponse{
		QueryID:      session.ID,
		Query:        text,
		Intent:       intent,
		Results:      out,
		Participated: participated,
	}, nil
}

// Detail routes a (query id, rank) detail fetch to the repo that produced
// the result.
func (f *Federation) Detail(ctx context.Context, queryID string, rank int) (*SearchDetail, error) {
	session, ok := f.sessions.Get(queryID)
	if !ok {
		return nil, ErrUnknownQuery
	}
	docID, err := session.DocAt(rank)
	if err != nil {
		return nil, err
	}

	repo := session.RepoAt(rank)
	if repo == "" && len(f.order) > 0 {
		// single-repo session, recorded without repo tags
		repo = f.order[0]
	}
	engine, ok := f.engines[repo]
	if !ok {
		return nil, ErrUnknownQuery
	}
	d, err := engine.DetailByDocID(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &SearchDetail{Detail: d, Repo: repo}, nil
}

// Close releases the federation's own session cache; a cache handed in by
// the caller is left open, as are the member engines.
func (f *Federation) Close() error {
	if f.ownsSessions {
		return f.sessions.Close()
	}
	return nil
}
