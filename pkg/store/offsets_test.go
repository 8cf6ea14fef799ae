package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsetRangesDisjoint(t *testing.T) {
	require.NoError(t, CheckOffsets())

	// every id maps to exactly one type
	probes := []int64{0, SessionBase + 1, CodeBase, CodeBase + 1,
		PatternBase + 5, CommitBase + 9, BeliefBase + 42, ForgeBase + 7, IDLimit - 1}
	for _, id := range probes {
		hits := 0
		for _, r := range ranges {
			if id >= r.base && id < r.end {
				hits++
			}
		}
		assert.Equal(t, 1, hits, "id %d", id)
	}
}

func TestTypeOfID(t *testing.T) {
	cases := []struct {
		id   int64
		want ContentType
	}{
		{5, TypeSession},
		{CodeBase + 1, TypeCode},
		{PatternBase + 1, TypePattern},
		{CommitBase + 1, TypeCommit},
		{BeliefBase + 1, TypeBelief},
		{ForgeBase + 1, TypeForgeIssue},
	}
	for _, tc := range cases {
		got, err := TypeOfID(tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := TypeOfID(IDLimit)
	assert.Error(t, err)
	_, err = TypeOfID(-1)
	assert.Error(t, err)
}

func TestRowIDOfStripsBase(t *testing.T) {
	rowid, err := RowIDOf(BeliefBase + 17)
	require.NoError(t, err)
	assert.Equal(t, int64(17), rowid)

	rowid, err = RowIDOf(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rowid)
}

func TestRangePredicates(t *testing.T) {
	assert.True(t, InBeliefRange(BeliefBase))
	assert.True(t, InBeliefRange(ForgeBase-1))
	assert.False(t, InBeliefRange(ForgeBase))
	assert.True(t, InForgeRange(ForgeBase))
	assert.False(t, InForgeRange(BeliefBase))
}
