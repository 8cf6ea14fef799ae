package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		query string
		want  Intent
	}{
		{"when was the retry logic added", IntentTemporal},
		{"what changed recently in the parser", IntentTemporal},
		{"why did we decide to use sqlite", IntentRationale},
		{"reason for the timeout default", IntentRationale},
		{"how does the fusion step work", IntentMechanism},
		{"how is backpressure implemented", IntentMechanism},
		{"what is an oracle", IntentDefinition},
		{"explain the session cache", IntentDefinition},
		{"parser error handling", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyIntent(tc.query), "query: %q", tc.query)
	}
}

func TestWeightsForTemporalBoostsHistory(t *testing.T) {
	w := WeightsFor(IntentTemporal)
	assert.Equal(t, 2.0, w[OracleLexical])
	assert.Equal(t, 1.5, w[OracleTemporal])
	_, ok := w[OracleSemantic]
	assert.False(t, ok, "semantic stays neutral for temporal queries")
}

func TestWeightsForGeneralIsNeutral(t *testing.T) {
	assert.Empty(t, WeightsFor(IntentGeneral))
}

func TestParseIntentRoundTrip(t *testing.T) {
	for _, i := range []Intent{IntentGeneral, IntentTemporal, IntentRationale, IntentMechanism, IntentDefinition} {
		assert.Equal(t, i, ParseIntent(i.String()))
	}
	assert.Equal(t, IntentGeneral, ParseIntent("nonsense"))
}
