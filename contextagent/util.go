package contextagent

import (
	"encoding/json"
	"fmt"

	"github.com/opsline-ai/incident-agent/incident"
)

// marshalBatch renders a slice of incident events as the literal JSON blob
// handed to the summarization call.
func marshalBatch(events []incident.AgentEvent) (string, error) {
	type wireEvent struct {
		ID   int64              `json:"id"`
		Type incident.EventType `json:"type"`
		Data incident.EventData `json:"data"`
	}
	out := make([]wireEvent, 0, len(events))
	for _, e := range events {
		out = append(out, wireEvent{ID: e.ID, Type: e.Type, Data: e.Data})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(raw), nil
}
