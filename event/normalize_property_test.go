package event_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/opsline-ai/incident-agent/event"
)

// genLeaf produces a scalar JSON leaf value: a short alpha string, a small
// int, or a bool, each mapped to the common `any` type so OneGenOf can mix
// them.
func genLeaf() gopter.Gen {
	return gen.OneGenOf(
		gen.AlphaString().Map(func(s string) any { return s }),
		gen.IntRange(-1000, 1000).Map(func(n int) any { return n }),
		gen.Bool().Map(func(b bool) any { return b }),
	)
}

var (
	payloadKeys       = []string{"alpha", "beta", "gamma", "created_at", "messageId"}
	payloadNestedKeys = []string{"x", "y", "z", "ts"}
)

// genPayload produces a two-level nested map[string]any with a handful of
// scalar keys (several of them volatile), one nested object, and one array
// of scalars, mirroring the shape of a real AgentEvent.Data payload closely
// enough to exercise NormalizeEventData's recursive case at every level.
func genPayload() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(len(payloadKeys), genLeaf()),
		gen.SliceOfN(len(payloadNestedKeys), genLeaf()),
		gen.SliceOf(genLeaf()),
	).Map(func(vals []any) map[string]any {
		flatVals := vals[0].([]any)
		nestedVals := vals[1].([]any)
		items := vals[2].([]any)

		out := make(map[string]any, len(payloadKeys)+2)
		for i, k := range payloadKeys {
			out[k] = flatVals[i]
		}
		nested := make(map[string]any, len(payloadNestedKeys))
		for i, k := range payloadNestedKeys {
			nested[k] = nestedVals[i]
		}
		out["nested"] = nested
		out["items"] = items
		return out
	})
}

// TestNormalizeEventDataIsIdempotentProperty checks the quantified invariant
// normalize(normalize(x)) == normalize(x) across randomly generated nested
// payloads, complementing the single literal fixture in
// TestNormalizeEventDataIsIdempotent.
func TestNormalizeEventDataIsIdempotentProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize(normalize(x)) == normalize(x)", prop.ForAll(
		func(payload map[string]any) bool {
			once := event.NormalizeEventData(payload)
			twice := event.NormalizeEventData(once)
			onceJSON, err := json.Marshal(once)
			if err != nil {
				return false
			}
			twiceJSON, err := json.Marshal(twice)
			if err != nil {
				return false
			}
			return string(onceJSON) == string(twiceJSON)
		},
		genPayload(),
	))

	properties.TestingRun(t)
}
