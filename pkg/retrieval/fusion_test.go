package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ranking(oracle string, docs ...string) OracleRanking {
	results := make([]OracleResult, len(docs))
	for i, d := range docs {
		results[i] = OracleResult{DocID: d, Content: "content of " + d}
	}
	return OracleRanking{Oracle: oracle, Results: results}
}

func fusedOrder(fused []FusedResult) []string {
	out := make([]string, len(fused))
	for i, f := range fused {
		out[i] = f.DocID
	}
	return out
}

func TestFuseSingleOracleKeepsOrder(t *testing.T) {
	fused := Fuse([]OracleRanking{
		ranking("semantic", "a", "b", "c"),
	}, DefaultRRFK, nil)

	assert.Equal(t, []string{"a", "b", "c"}, fusedOrder(fused))
}

func TestFuseAgreementWins(t *testing.T) {
	// b is mid-ranked by both oracles, a and c each top one list
	fused := Fuse([]OracleRanking{
		ranking("semantic", "a", "b"),
		ranking("lexical", "c", "b"),
	}, DefaultRRFK, nil)

	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].DocID)
	assert.ElementsMatch(t, []string{"semantic", "lexical"}, fused[0].Oracles)
}

func TestFuseNeverInventsDocuments(t *testing.T) {
	inputs := []OracleRanking{
		ranking("semantic", "a", "b"),
		ranking("lexical", "b", "c"),
	}
	fused := Fuse(inputs, DefaultRRFK, nil)

	seen := map[string]bool{"a": true, "b": true, "c": true}
	for _, f := range fused {
		assert.True(t, seen[f.DocID], "fused output contains unknown doc %s", f.DocID)
	}
	assert.Len(t, fused, 3)
}

func TestFuseWeightShiftsRanking(t *testing.T) {
	rankings := []OracleRanking{
		ranking("semantic", "sem-top", "shared"),
		ranking("lexical", "lex-top", "shared"),
	}

	neutral := Fuse(rankings, DefaultRRFK, nil)
	boosted := Fuse(rankings, DefaultRRFK, map[string]float64{"lexical": 3.0})

	// under neutral weights shared accumulates from both lists and wins;
	// boosting lexical must put its topper above semantic's
	assert.Equal(t, "shared", neutral[0].DocID)

	posLex, posSem := -1, -1
	for i, f := range boosted {
		switch f.DocID {
		case "lex-top":
			posLex = i
		case "sem-top":
			posSem = i
		}
	}
	assert.Less(t, posLex, posSem)
}

func TestFuseDeterministicTieBreak(t *testing.T) {
	// z and a get identical contributions from one oracle each at the
	// same rank; doc id ordering must decide
	rankings := []OracleRanking{
		ranking("semantic", "z"),
		ranking("lexical", "a"),
	}

	for i := 0; i < 10; i++ {
		fused := Fuse(rankings, DefaultRRFK, nil)
		require.Len(t, fused, 2)
		assert.Equal(t, "a", fused[0].DocID)
		assert.Equal(t, "z", fused[1].DocID)
	}
}

func TestFuseRankContribution(t *testing.T) {
	fused := Fuse([]OracleRanking{
		ranking("semantic", "a", "b"),
	}, 60, nil)

	require.Len(t, fused, 2)
	assert.InDelta(t, 1.0/61.0, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62.0, fused[1].Score, 1e-12)
}

func TestFuseBestResultFromHighestRank(t *testing.T) {
	rankings := []OracleRanking{
		{Oracle: "semantic", Results: []OracleResult{
			{DocID: "x", Content: "deep", Score: 0.2},
		}},
		{Oracle: "lexical", Results: []OracleResult{
			{DocID: "y", Content: "other"},
			{DocID: "x", Content: "shallow", Score: 0.9},
		}},
	}
	fused := Fuse(rankings, DefaultRRFK, nil)

	for _, f := range fused {
		if f.DocID == "x" {
			// semantic ranked x first (rank 1), lexical only second
			assert.Equal(t, "deep", f.Best.Content)
		}
	}
}

func TestFuseDuplicateWithinOneOracleCountsOnce(t *testing.T) {
	fused := Fuse([]OracleRanking{
		ranking("semantic", "a", "a", "b"),
	}, 60, nil)

	require.Len(t, fused, 2)
	for _, f := range fused {
		if f.DocID == "a" {
			assert.InDelta(t, 1.0/61.0, f.Score, 1e-12,
				"repeat of the same doc must not accumulate")
			assert.Equal(t, []string{"semantic"}, f.Oracles)
		}
	}
}

func TestFuseEmptyInput(t *testing.T) {
	assert.Empty(t, Fuse(nil, DefaultRRFK, nil))
}
