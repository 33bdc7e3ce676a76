package contextagent

import (
	"context"

	"github.com/opsline-ai/incident-agent/incident"
)

// IncidentSnapshot is the narrow view of an incident the context agent
// needs to build prompts: enough of the live event log to summarize, and
// the tenant scope for candidate loading.
type IncidentSnapshot struct {
	Incident incident.Incident
	Events   []incident.AgentEvent
}

// IncidentSink is the owning incident actor's surface as seen by the
// context agent. It is a separate, narrow interface (rather than a direct
// dependency on package incidentactor) so the two packages do not import
// one another.
type IncidentSink interface {
	// Snapshot returns the current state of incidentID.
	Snapshot(ctx context.Context, incidentID string) (IncidentSnapshot, error)

	// RecordInsightEvent appends a SIMILAR_INCIDENTS_DISCOVERED or
	// SIMILAR_INCIDENT event to incidentID's log, with insert-or-ignore
	// semantics keyed by dedupeKey.
	RecordInsightEvent(ctx context.Context, incidentID string, eventType incident.EventType, data incident.EventData, dedupeKey string) error
}
