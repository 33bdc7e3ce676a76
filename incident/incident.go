// Package incident defines the core data model for the incident operations
// core: the Incident record, its append-only event log, and the derived
// views (affection state, pending suggestion targets) folded from that log.
package incident

import (
	"errors"
	"time"
)

// Status is the incident lifecycle state.
type Status string

const (
	StatusOpen        Status = "open"
	StatusMitigating  Status = "mitigating"
	StatusResolved    Status = "resolved"
	StatusDeclined    Status = "declined"
)

// Severity is the incident severity classification.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Adapter identifies the origin surface of an event.
type Adapter string

const (
	AdapterSlack     Adapter = "slack"
	AdapterDashboard Adapter = "dashboard"
	AdapterFire      Adapter = "fire"
)

// ErrInvalidTransition is returned when a status mutation does not follow a
// legal edge in the lifecycle graph.
var ErrInvalidTransition = errors.New("INVALID_TRANSITION")

// Incident is the authoritative identity and lifecycle record for one
// incident. Mutable fields (Status, Severity) are only ever changed by the
// incident actor applying a canonical event; this struct is a point-in-time
// snapshot, not a live handle.
type Incident struct {
	// ID uniquely identifies the incident.
	ID string
	// TenantID scopes the incident to its owning tenant, used to bound the
	// similar-incidents candidate search to same-tenant incidents.
	TenantID string
	// CreatedAt records when the incident was opened.
	CreatedAt time.Time
	// Status is the current lifecycle position.
	Status Status
	// Severity is the current severity classification.
	Severity Severity
	// Title is a short human summary.
	Title string
	// Description is a longer free-text summary.
	Description string
	// Prompt is the original human description that opened the incident.
	Prompt string
	// Assignee references the operator currently responsible, if any.
	Assignee string
	// Source labels where the incident was declared from.
	Source Adapter
}

// transitions enumerates the legal directed edges of the lifecycle graph.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusMitigating, StatusResolved, StatusDeclined},
	StatusMitigating: {StatusResolved, StatusDeclined},
	StatusResolved:   {},
	StatusDeclined:   {},
}

// ValidStatusTransitions enumerates the legal exits from status. Terminal
// statuses (resolved, declined) return an empty, non-nil slice.
func ValidStatusTransitions(status Status) []Status {
	next, ok := transitions[status]
	if !ok {
		return []Status{}
	}
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether status has no outgoing transitions.
func IsTerminal(status Status) bool {
	return len(transitions[status]) == 0
}
