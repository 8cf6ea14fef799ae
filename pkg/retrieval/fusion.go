package retrieval

import "sort"

// DefaultRRFK is the standard reciprocal-rank-fusion damping constant.
const DefaultRRFK = 60

// OracleRanking is one oracle's ranked contribution to fusion.
type OracleRanking struct {
	Oracle  string
	Results []OracleResult
}

// FusedResult is one document after rank fusion. Oracles lists every
// strategy that surfaced the document, in first-contribution order.
type FusedResult struct {
	DocID   string
	Score   float64
	Oracles []string
	// Best is the representative per-oracle result: the hit from the oracle
	// that ranked this document highest.
	Best OracleResult
}

// Fuse merges per-oracle rankings with weighted reciprocal rank fusion:
// each document accumulates weight/(k + rank) over every list it appears
// in, rank counted from 1. Raw oracle scores never cross oracle
// boundaries.
//
// Ties break by contributing-oracle count, then doc id, so output order is
// deterministic across runs. A single input ranking degenerates to that
// oracle's own order.
func Fuse(rankings []OracleRanking, k int, weights map[string]float64) []FusedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	type acc struct {
		score    float64
		oracles  []string
		best     OracleResult
		bestRank int
	}
	byDoc := make(map[string]*acc)
	var order []string

	for _, ranking := range rankings {
		weight := 1.0
		if w, ok := weights[ranking.Oracle]; ok {
			weight = w
		}
		seen := make(map[string]struct{}, len(ranking.Results))
		for i, res := range ranking.Results {
			// a doc repeated within one list contributes once, at its
			// best rank
			if _, dup := seen[res.DocID]; dup {
				continue
			}
			seen[res.DocID] = struct{}{}
			rank := i + 1
			a, ok := byDoc[res.DocID]
			if !ok {
				a = &acc{best: res, bestRank: rank}
				byDoc[res.DocID] = a
				order = append(order, res.DocID)
			}
			a.score += weight / float64(k+rank)
			a.oracles = append(a.oracles, ranking.Oracle)
			if rank < a.bestRank {
				a.best = res
				a.bestRank = rank
			}
		}
	}

	fused := make([]FusedResult, 0, len(order))
	for _, docID := range order {
		a := byDoc[docID]
		fused = append(fused, FusedResult{
			DocID:   docID,
			Score:   a.score,
			Oracles: a.oracles,
			Best:    a.best,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if len(fused[i].Oracles) != len(fused[j].Oracles) {
			return len(fused[i].Oracles) > len(fused[j].Oracles)
		}
		return fused[i].DocID < fused[j].DocID
	})
	return fused
}
