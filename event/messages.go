package event

import (
	"encoding/json"
	"fmt"

	"github.com/opsline-ai/incident-agent/incident"
)

// Role is the conversational role attached to a prompt message block.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged block of the LM input, in final prompt order.
type Message struct {
	Role    Role
	Content string
}

// turnBoundaryText is the synthetic marker BuildEventMessages inserts once
// per turn, immediately before the first unprocessed event.
const turnBoundaryText = "[TURN BOUNDARY]"

// BuildEventMessages renders events into a sequence of role-tagged prompt
// blocks. Suggestion-origin events (see AgentEvent.IsSuggestion) are
// emitted with role assistant so the LM sees its own prior proposals as
// assistant turns; everything else is emitted as role user. Internal agent
// bookkeeping events are summarized on one line; all other events are
// serialized as "<EVENT_TYPE>: <normalized JSON>".
//
// Exactly one synthetic assistant "[TURN BOUNDARY]" block is inserted
// immediately before the first event whose ID is greater than
// processedThroughID, but only when processedThroughID > 0 and such an
// event exists. This lets the LM distinguish events it has already reacted
// to from events new in this turn.
func BuildEventMessages(events []incident.AgentEvent, processedThroughID int64) []Message {
	boundaryIdx := -1
	if processedThroughID > 0 {
		for i, e := range events {
			if e.ID > processedThroughID {
				boundaryIdx = i
				break
			}
		}
	}

	out := make([]Message, 0, len(events)+1)
	for i, e := range events {
		if i == boundaryIdx {
			out = append(out, Message{Role: RoleAssistant, Content: turnBoundaryText})
		}
		out = append(out, formatEvent(e))
	}
	return out
}

// isInternal reports whether e is internal agent bookkeeping that should be
// rendered with the compact one-line summarizer rather than raw JSON.
func isInternal(e incident.AgentEvent) bool {
	switch e.Type {
	case incident.EventSimilarIncidentsDiscovered, incident.EventSimilarIncident, incident.EventContextAgentTriggered:
		return true
	}
	return e.IsSuggestion()
}

func formatEvent(e incident.AgentEvent) Message {
	role := RoleUser
	if e.IsSuggestion() {
		role = RoleAssistant
	}
	if isInternal(e) {
		return Message{Role: role, Content: summarizeInternal(e)}
	}
	normalized, err := MarshalNormalized(toJSONAny(e.Data))
	if err != nil {
		normalized = []byte(`{"error":"encode failure"}`)
	}
	return Message{Role: role, Content: fmt.Sprintf("%s: %s", e.Type, string(normalized))}
}

// toJSONAny round-trips data through JSON so NormalizeEventData always
// operates on map[string]any/[]any/scalar shapes regardless of the concrete
// Go struct an EventData variant uses.
func toJSONAny(data incident.EventData) any {
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]any{}
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// summarizeInternal renders a compact one-line summary for internal agent
// events, keeping the prompt short for high-frequency bookkeeping.
func summarizeInternal(e incident.AgentEvent) string {
	switch d := e.Data.(type) {
	case incident.SimilarIncidentsDiscoveredData:
		return fmt.Sprintf("[similar-incidents] investigated %d open / %d closed candidates, selected %d",
			d.OpenCandidateCount, d.ClosedCandidateCount, len(d.SelectedIncidentIDs))
	case incident.SimilarIncidentData:
		return fmt.Sprintf("[similar-incidents] %s (%s): %s", d.SimilarIncidentID, d.IncidentStatus, d.Summary)
	case incident.ContextAgentTriggeredData:
		return fmt.Sprintf("[context-agent] triggered through event %d (%s)", d.ToEventID, d.Trigger)
	case incident.StatusUpdateData:
		return fmt.Sprintf("[suggestion %s] update_status(%s): %s", e.DedupeKey(), d.Status, d.Message)
	case incident.SeverityUpdateData:
		return fmt.Sprintf("[suggestion %s] update_severity(%s)", e.DedupeKey(), d.Severity)
	case incident.AffectionUpdateData:
		return fmt.Sprintf("[suggestion %s] add_status_page_update(%s): %s", e.DedupeKey(), d.Status, d.Title)
	case incident.MessageAddedData:
		return fmt.Sprintf("[suggestion %s] %s", e.DedupeKey(), d.Message)
	default:
		return string(e.Type)
	}
}
