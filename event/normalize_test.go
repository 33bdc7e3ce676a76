package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/event"
)

func TestNormalizeEventDataIsIdempotent(t *testing.T) {
	value := map[string]any{
		"b":          1,
		"a":          2,
		"created_at": "2026-01-01T00:00:00Z",
		"nested": map[string]any{
			"z": 1,
			"y": 2,
			"ts": "volatile",
		},
	}
	once := event.NormalizeEventData(value)
	twice := event.NormalizeEventData(once)

	oneJSON, err := json.Marshal(once)
	require.NoError(t, err)
	twoJSON, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(oneJSON), string(twoJSON))
}

func TestNormalizeEventDataStripsVolatileKeys(t *testing.T) {
	value := map[string]any{
		"message":   "hello",
		"messageId": "abc123",
		"promptTs":  "1.2",
	}
	got := event.NormalizeEventData(value)
	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hello"}`, string(b))
}

func TestNormalizeEventDataKeyOrderIsLexicographic(t *testing.T) {
	value := map[string]any{"b": 1, "a": 2, "c": 3}
	b, err := event.MarshalNormalized(value)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(b))
}

func TestNormalizeEventDataExtraVolatileKeys(t *testing.T) {
	value := map[string]any{"message": "hi", "turnLocal": "drop-me"}
	got := event.NormalizeEventData(value, "turnLocal")
	b, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"hi"}`, string(b))
}
