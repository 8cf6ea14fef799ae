package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/scryer-dev/scryer/pkg/store"
)

// TemporalOracle answers from git co-change history: files that repeatedly
// changed together with files matching the query terms. Scores are raw
// co-change counts normalized to [0,1] by the max in the result set, so
// they compare within the list but not across queries.
type TemporalOracle struct {
	store *store.Store
}

func NewTemporalOracle(s *store.Store) *TemporalOracle {
	return &TemporalOracle{store: s}
}

func (o *TemporalOracle) Name() string { return OracleTemporal }

func (o *TemporalOracle) Available(ctx context.Context) bool {
	return o.store.HasRows(ctx, "co_changes")
}

func (o *TemporalOracle) Query(ctx context.Context, q Query, limit int) ([]OracleResult, error) {
	terms := coChangeTerms(q.Text)
	if len(terms) == 0 {
		return nil, nil
	}

	neighbors, err := o.store.CoChangeNeighbors(ctx, terms, limit)
	if err != nil {
		return nil, err
	}

	// drop neighbors that themselves match a query term, they are the
	// files the user is asking about rather than their partners
	filtered := neighbors[:0]
	for _, n := range neighbors {
		if matchesAnyTerm(n.File, terms) {
			continue
		}
		filtered = append(filtered, n)
	}

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	if len(filtered) == 0 {
		return nil, nil
	}

	max := float64(filtered[0].Count)
	results := make([]OracleResult, 0, len(filtered))
	for _, n := range filtered {
		results = append(results, OracleResult{
			DocID:     n.File,
			Content:   describeNeighbor(n),
			Score:     float64(n.Count) / max,
			ScoreKind: "co_change",
			FilePath:  n.File,
		})
	}
	return results, nil
}

// coChangeTerms keeps query tokens long enough to plausibly match a path
// fragment; two-letter words LIKE-match almost everything.
func coChangeTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		t = strings.Trim(t, `"'?.,!`)
		if len(t) > 2 {
			terms = append(terms, t)
		}
	}
	return terms
}

func matchesAnyTerm(file string, terms []string) bool {
	lower := strings.ToLower(file)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func describeNeighbor(n store.CoChangeNeighbor) string {
	related := ""
	if len(n.RelatedTo) > 0 {
		related = fmt.Sprintf(" with %s", n.RelatedTo[0])
	}
	return fmt.Sprintf("%s changed together%s %d times", n.File, related, n.Count)
}
