package incident

import "time"

// TargetKind names one of the three suggestible action families.
type TargetKind string

const (
	TargetUpdateStatus          TargetKind = "update_status"
	TargetUpdateSeverity        TargetKind = "update_severity"
	TargetAddStatusPageUpdate   TargetKind = "add_status_page_update"
)

// Target is one pending or applied suggestion target: a proposed value for
// one of the three action families, plus when and where in the log it
// appeared.
type Target struct {
	// Value is the proposed/applied value (a Status, Severity, or
	// AffectionStatus string depending on Kind).
	Value string
	// CreatedAt is when the suggestion/application event was recorded.
	CreatedAt time.Time
	// EventIndex is the position of the originating event within the turn's
	// event slice (not the event ID), used by the staleness check in
	// spec.md §4.2 invariant 2 ("more than 20 events ago").
	EventIndex int
}

// SuggestionTargetState is the per-turn derived view of pending and applied
// targets for each of the three action families, folded from the event log.
// A pending target is cleared the moment a matching applied event for the
// same value is observed later in the log.
type SuggestionTargetState struct {
	Pending map[TargetKind][]Target
	Applied map[TargetKind][]Target
}

// NewSuggestionTargetState returns an empty state with initialized maps.
func NewSuggestionTargetState() SuggestionTargetState {
	return SuggestionTargetState{
		Pending: make(map[TargetKind][]Target),
		Applied: make(map[TargetKind][]Target),
	}
}

// PendingFor returns the pending targets recorded for kind, oldest first.
func (s SuggestionTargetState) PendingFor(kind TargetKind) []Target {
	return s.Pending[kind]
}

// IsPending reports whether value is currently pending for kind.
func (s SuggestionTargetState) IsPending(kind TargetKind, value string) (Target, bool) {
	for _, t := range s.Pending[kind] {
		if t.Value == value {
			return t, true
		}
	}
	return Target{}, false
}

// staleAfter and staleEventGap implement the "stale" definition from the
// GLOSSARY: a pending suggestion older than 10 minutes AND separated from
// the current event tail by more than 20 events.
const (
	staleAfter     = 10 * time.Minute
	staleEventGap  = 20
)

// IsStale reports whether a pending target counts as stale given the
// current time and the index of the most recent event in the turn.
func IsStale(t Target, now time.Time, latestEventIndex int) bool {
	return now.Sub(t.CreatedAt) > staleAfter && (latestEventIndex-t.EventIndex) > staleEventGap
}
