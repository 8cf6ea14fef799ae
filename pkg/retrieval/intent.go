package retrieval

import "strings"

// Intent is a coarse classification of what kind of answer a query wants.
// It only nudges fusion weights; every oracle still runs.
type Intent int

const (
	IntentGeneral Intent = iota
	IntentTemporal
	IntentRationale
	IntentMechanism
	IntentDefinition
)

func (i Intent) String() string {
	switch i {
	case IntentTemporal:
		return "temporal"
	case IntentRationale:
		return "rationale"
	case IntentMechanism:
		return "mechanism"
	case IntentDefinition:
		return "definition"
	default:
		return "general"
	}
}

// ParseIntent maps a user-supplied intent name back to its value. Unknown
// names fall back to general rather than erroring; the override is a hint.
func ParseIntent(s string) Intent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "temporal":
		return IntentTemporal
	case "rationale":
		return IntentRationale
	case "mechanism":
		return IntentMechanism
	case "definition":
		return IntentDefinition
	default:
		return IntentGeneral
	}
}

// ClassifyIntent guesses the intent from surface keywords. Deliberately
// crude: misclassification only shifts weights, it never hides results.
func ClassifyIntent(query string) Intent {
	q := strings.ToLower(query)

	hasAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	switch {
	case hasAny("when ", "when?", "history", " added", " changed", "timeline", "recently"):
		return IntentTemporal
	case hasAny("why ", "why?", "decided", "decision", "chose", "reason", "rationale"):
		return IntentRationale
	case strings.Contains(q, "how ") && hasAny("work", "implement", "does", "handle"):
		return IntentMechanism
	case hasAny("what is", "what are", "explain", "describe", "definition"):
		return IntentDefinition
	default:
		return IntentGeneral
	}
}

// Oracle name constants used by the weight tables and the engine wiring.
const (
	OracleSemantic = "semantic"
	OracleLexical  = "lexical"
	OracleTemporal = "temporal"
	OraclePersona  = "persona"
	OracleBelief   = "belief"
)

// intentWeights lists per-oracle multipliers per intent. Oracles absent
// from a row keep the neutral weight 1.0.
var intentWeights = map[Intent]map[string]float64{
	IntentTemporal: {
		OracleLexical:  2.0,
		OracleTemporal: 1.5,
	},
	IntentRationale: {
		OracleBelief:  1.5,
		OraclePersona: 1.5,
		OracleLexical: 1.5,
	},
	IntentMechanism: {
		OracleSemantic: 1.5,
	},
	IntentDefinition: {
		OracleBelief:  1.5,
		OracleLexical: 1.5,
	},
}

// WeightsFor returns the per-oracle fusion multipliers for an intent.
// The returned map may be sparse; missing oracles are weight 1.0.
func WeightsFor(intent Intent) map[string]float64 {
	w := intentWeights[intent]
	out := make(map[string]float64, len(w))
	for name, mult := range w {
		out[name] = mult
	}
	return out
}
