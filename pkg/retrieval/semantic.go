package retrieval

import (
	"context"

	"github.com/scryer-dev/scryer/pkg/store"
)

// SemanticOracle answers by cosine similarity over the shared vector index.
// Beliefs are excluded here unconditionally: they get their own oracle with
// hybrid scoring, and letting them surface twice would double-count them in
// fusion.
type SemanticOracle struct {
	store     *store.Store
	overFetch int
}

// NewSemanticOracle builds the vector-search oracle. overFetch is the
// multiplier applied to the caller's limit before range filtering.
func NewSemanticOracle(s *store.Store, overFetch int) *SemanticOracle {
	if overFetch <= 0 {
		overFetch = 8
	}
	return &SemanticOracle{store: s, overFetch: overFetch}
}

func (o *SemanticOracle) Name() string { return OracleSemantic }

func (o *SemanticOracle) Available(ctx context.Context) bool {
	return o.store.HasVectors(ctx)
}

func (o *SemanticOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	if q.Embedding == nil {
		return nil, nil
	}

	ids, dists, err := o.store.VectorSearch(ctx, q.Embedding, limit*o.overFetch)
	if err != nil {
		return nil, err
	}

	results := make([]OracleResult, 0, limit)
	for i, id := range ids {
		if store.InBeliefRange(id) {
			continue
		}
		if store.InForgeRange(id) && !q.IncludeIssues {
			continue
		}

		rec, err := o.store.Resolve(ctx, id)
		if err != nil {
			// dangling vector, index ahead of structured tables
			continue
		}

		results = append(results, OracleResult{
			DocID:     rec.DocID,
			Content:   rec.Content,
			Score:     1.0 - dists[i],
			ScoreKind: "cosine",
			FilePath:  rec.FilePath,
			Timestamp: rec.Timestamp,
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
