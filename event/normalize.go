// Package event turns an incident's append-only log into a deterministic,
// cache-friendly LM input. Every function here is a pure function of its
// arguments — no package-level state — so the same event slice always
// produces byte-identical output, which keeps the suggestion engine's
// prompt_cache_key useful across turns.
package event

import (
	"encoding/json"
	"sort"
)

// volatileKeys are stripped by NormalizeEventData because they vary between
// otherwise-identical payloads (wall-clock timestamps, message ids assigned
// by a chat adapter) and would otherwise defeat prompt caching.
var volatileKeys = map[string]struct{}{
	"created_at":     {},
	"createdAt":      {},
	"ts":             {},
	"timestamp":      {},
	"messageId":      {},
	"promptTs":       {},
	"promptThreadTs": {},
}

// NormalizeEventData strips volatile keys (see volatileKeys) from value at
// every level. The result's maps carry no key order of their own; sorted
// keys come from encoding/json when it is marshaled (see MarshalNormalized),
// so two logically identical payloads serialize to the same JSON. extraVolatileKeys lets callers (the suggestion
// engine, the evaluation harness) add turn-local volatile keys without
// modifying this package.
func NormalizeEventData(value any, extraVolatileKeys ...string) any {
	strip := volatileKeys
	if len(extraVolatileKeys) > 0 {
		strip = make(map[string]struct{}, len(volatileKeys)+len(extraVolatileKeys))
		for k := range volatileKeys {
			strip[k] = struct{}{}
		}
		for _, k := range extraVolatileKeys {
			strip[k] = struct{}{}
		}
	}
	return normalize(value, strip)
}

func normalize(value any, strip map[string]struct{}) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, vv := range v {
			if _, skip := strip[k]; skip {
				continue
			}
			out[k] = normalize(vv, strip)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, vv := range v {
			out[i] = normalize(vv, strip)
		}
		return out
	default:
		return v
	}
}

// MarshalNormalized normalizes value and renders it as canonical JSON with
// lexicographically ordered object keys at every level. encoding/json already
// sorts map[string]any keys when marshaling, so normalization only needs to
// strip volatile keys and recurse; this helper exists so callers don't have
// to remember that.
func MarshalNormalized(value any, extraVolatileKeys ...string) ([]byte, error) {
	return json.Marshal(NormalizeEventData(value, extraVolatileKeys...))
}

// sortedKeys is retained for callers that need an explicit lexicographic key
// order (e.g. building a deterministic summary line) rather than relying on
// encoding/json's own map ordering.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
