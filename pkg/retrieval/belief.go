package retrieval

import (
	"context"
	"sort"

	"github.com/scryer-dev/scryer/pkg/store"
)

// Channel blend for hybrid belief scoring. Vector similarity dominates;
// the text channel mostly rescues beliefs whose phrasing diverges from the
// query embedding.
const (
	beliefVecWeight  = 0.7
	beliefTextWeight = 0.3
)

// BeliefOracle surfaces distilled beliefs with a private two-channel score:
// cosine similarity over the belief slice of the shared vector index,
// blended with max-normalized BM25 from the belief FTS table. Beliefs are a
// tiny fraction of the index, so the vector channel over-fetches far more
// aggressively than the semantic oracle before range filtering.
type BeliefOracle struct {
	store     *store.Store
	overFetch int
}

// NewBeliefOracle builds the belief oracle. overFetch is the vector-channel
// multiplier; the config default is 50.
func NewBeliefOracle(s *store.Store, overFetch int) *BeliefOracle {
	if overFetch <= 0 {
		overFetch = 50
	}
	return &BeliefOracle{store: s, overFetch: overFetch}
}

func (o *BeliefOracle) Name() string { return OracleBelief }

func (o *BeliefOracle) Available(ctx context.Context) bool {
	return o.store.HasRows(ctx, "beliefs")
}

func (o *BeliefOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	vecScores, err := o.vectorChannel(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	textScores, err := o.textChannel(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	slugs := make(map[string]struct{}, len(vecScores)+len(textScores))
	for slug := range vecScores {
		slugs[slug] = struct{}{}
	}
	for slug := range textScores {
		slugs[slug] = struct{}{}
	}
	if len(slugs) == 0 {
		return nil, nil
	}

	type scored struct {
		slug  string
		score float64
	}
	merged := make([]scored, 0, len(slugs))
	for slug := range slugs {
		combined := beliefVecWeight*vecScores[slug] + beliefTextWeight*textScores[slug]
		merged = append(merged, scored{slug: slug, score: combined})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].slug < merged[j].slug
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	results := make([]OracleResult, 0, len(merged))
	for _, m := range merged {
		b, err := o.store.BeliefBySlug(ctx, m.slug)
		if err != nil {
			continue
		}
		results = append(results, OracleResult{
			DocID:     "belief:" + b.Slug,
			Content:   store.FormatBelief(b),
			Score:     m.score,
			ScoreKind: "hybrid_belief",
			FilePath:  b.FilePath,
		})
	}
	return results, nil
}

// vectorChannel returns cosine similarities keyed by slug. Empty when the
// embedding is unavailable; the text channel still runs.
func (o *BeliefOracle) vectorChannel(ctx context.Context, q Query, limit int) (map[string]float64, error) {
	if q.Embedding == nil || !o.store.HasVectors(ctx) {
		return nil, nil
	}

	total, err := o.store.VectorCount(ctx)
	if err != nil {
		return nil, err
	}

	// beliefs drown in the shared index, so scan up to half of it, but
	// never fetch fewer than the caller's limit
	fetch := limit * o.overFetch
	if half := int(total / 2); fetch > half {
		fetch = half
	}
	if fetch < limit {
		fetch = limit
	}

	ids, dists, err := o.store.VectorSearch(ctx, q.Embedding, fetch)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for i, id := range ids {
		if !store.InBeliefRange(id) {
			continue
		}
		rowid, _ := store.RowIDOf(id)
		b, err := o.store.BeliefByRowID(ctx, rowid)
		if err != nil {
			continue
		}
		if _, seen := scores[b.Slug]; !seen {
			scores[b.Slug] = 1.0 - dists[i]
		}
	}
	return scores, nil
}

// textChannel returns BM25 scores keyed by slug, max-normalized to [0,1].
func (o *BeliefOracle) textChannel(ctx context.Context, q Query, limit int) (map[string]float64, error) {
	match := store.MatchQuery(q.Text)
	if match == "" {
		return nil, nil
	}

	hits, err := o.store.BeliefFTS(ctx, match, limit*2)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	max := hits[0].BM25
	for _, h := range hits {
		if h.BM25 > max {
			max = h.BM25
		}
	}
	if max <= 0 {
		max = 1
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if _, seen := scores[h.Slug]; !seen {
			scores[h.Slug] = h.BM25 / max
		}
	}
	return scores, nil
}
