package retrieval

import (
	"context"
	"fmt"

	"github.com/scryer-dev/scryer/pkg/store"
)

// PersonaOracle answers from the cross-project developer profile:
// preferences, habits, and past decisions recorded outside any single
// repository.
type PersonaOracle struct {
	persona *store.PersonaStore
}

func NewPersonaOracle(p *store.PersonaStore) *PersonaOracle {
	return &PersonaOracle{persona: p}
}

func (o *PersonaOracle) Name() string { return OraclePersona }

func (o *PersonaOracle) Available(ctx context.Context) bool {
	return o.persona != nil && o.persona.Available(ctx)
}

func (o *PersonaOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	match := store.MatchQuery(q.Text)
	if match == "" {
		return nil, nil
	}

	hits, err := o.persona.Search(ctx, match, limit)
	if err != nil {
		return nil, err
	}

	results := make([]OracleResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, OracleResult{
			DocID:     fmt.Sprintf("persona:%d", h.ID),
			Content:   h.Content,
			Score:     h.BM25,
			ScoreKind: "bm25",
		})
	}
	return results, nil
}
