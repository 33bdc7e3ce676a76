package incident

import "time"

// SimilarIncidentCandidate is a historical incident (open or completed)
// considered by the similar-incidents context agent as a deep-dive target.
type SimilarIncidentCandidate struct {
	ID          string
	Title       string
	Description string
	Severity    Severity
	// Status is the live incident status when Completed is false.
	Status Status
	// TerminalStatus is the completed-incident terminal status (resolved or
	// declined) when Completed is true.
	TerminalStatus Status
	Completed      bool
	CreatedAt      time.Time
	// ResolvedAt is set only for completed candidates.
	ResolvedAt *time.Time
}
