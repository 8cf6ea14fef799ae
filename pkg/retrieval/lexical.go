package retrieval

import (
	"context"

	"github.com/scryer-dev/scryer/pkg/store"
)

// LexicalOracle answers by BM25 over the corpus FTS table. It is the one
// oracle that keeps working when the embedding server is down.
type LexicalOracle struct {
	store *store.Store
}

func NewLexicalOracle(s *store.Store) *LexicalOracle {
	return &LexicalOracle{store: s}
}

func (o *LexicalOracle) Name() string { return OracleLexical }

func (o *LexicalOracle) Available(ctx context.Context) bool {
	return o.store.HasRows(ctx, "corpus_fts")
}

func (o *LexicalOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	match := store.MatchQuery(q.Text)
	if match == "" {
		return nil, nil
	}

	hits, err := o.store.LexicalSearch(ctx, match, limit, q.IncludeIssues)
	if err != nil {
		return nil, err
	}

	results := make([]OracleResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, OracleResult{
			DocID:     h.DocID,
			Content:   h.Title,
			Score:     h.BM25,
			ScoreKind: "bm25",
		})
	}
	return results, nil
}
