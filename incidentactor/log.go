// Package incidentactor implements the Incident Actor: the sole writer of
// one incident's event log, and the trigger point for suggestion turns and
// similar-incidents context updates.
package incidentactor

import (
	"context"

	"github.com/opsline-ai/incident-agent/incident"
)

// Log is the append-only persistence contract for one incident's event
// log and its current Incident record. Append must be durable: Store
// implementations assign the event id and timestamp, and FindEventByDedupeKey
// backs the insert-or-ignore semantics recordAgentContextEvent and
// recordAgentInsightEvent require.
type Log interface {
	// LoadIncident returns the current Incident record.
	LoadIncident(ctx context.Context, incidentID string) (incident.Incident, error)

	// SaveIncident persists a mutated Incident record.
	SaveIncident(ctx context.Context, inc incident.Incident) error

	// ListEvents returns every event recorded for incidentID, in ID order.
	ListEvents(ctx context.Context, incidentID string) ([]incident.AgentEvent, error)

	// AppendEvent appends e to incidentID's log, assigning its ID and
	// CreatedAt.
	AppendEvent(ctx context.Context, incidentID string, e incident.AgentEvent) (incident.AgentEvent, error)

	// FindEventByDedupeKey looks up a previously appended event carrying
	// dedupeKey in its metadata. The second return value is false when no
	// such event exists.
	FindEventByDedupeKey(ctx context.Context, incidentID, dedupeKey string) (incident.AgentEvent, bool, error)
}
