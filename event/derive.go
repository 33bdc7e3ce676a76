package event

import (
	"github.com/opsline-ai/incident-agent/incident"
)

// DeriveAffectionInfo folds the applied AFFECTION_UPDATE events in events
// into the current public status-page state. Suggestion-origin events are
// skipped: a proposed-but-not-applied affection change must never surface as
// the live public state. Events are assumed to already be in ID order (the
// log's total order).
func DeriveAffectionInfo(events []incident.AgentEvent) incident.AffectionInfo {
	var info incident.AffectionInfo
	for _, e := range events {
		if e.IsSuggestion() {
			continue // not yet applied; see DeriveSuggestionTargetState
		}
		d, ok := e.Data.(incident.AffectionUpdateData)
		if !ok {
			continue
		}
		info.HasAffection = true
		status := d.Status
		info.LastStatus = &status
		createdAt := e.CreatedAt
		info.LastUpdateAt = &createdAt
	}
	return info
}

// DeriveSuggestionTargetState folds STATUS_UPDATE, SEVERITY_UPDATE, and
// AFFECTION_UPDATE events to compute which proposed targets are still
// pending and which have been applied: a suggestion-tagged event of those
// types records a pending target, an untagged one an applied target. A pending target is cleared the moment a matching applied
// value is observed later in the log, per spec.md §3.
func DeriveSuggestionTargetState(events []incident.AgentEvent) incident.SuggestionTargetState {
	state := incident.NewSuggestionTargetState()
	pendingValue := func(kind incident.TargetKind, value string, at incident.AgentEvent, idx int) {
		state.Pending[kind] = append(state.Pending[kind], incident.Target{
			Value:      value,
			CreatedAt:  at.CreatedAt,
			EventIndex: idx,
		})
	}
	clearPending := func(kind incident.TargetKind, value string) {
		remaining := state.Pending[kind][:0]
		for _, t := range state.Pending[kind] {
			if t.Value == value {
				continue
			}
			remaining = append(remaining, t)
		}
		state.Pending[kind] = remaining
	}
	applyValue := func(kind incident.TargetKind, value string, at incident.AgentEvent, idx int) {
		clearPending(kind, value)
		state.Applied[kind] = append(state.Applied[kind], incident.Target{
			Value:      value,
			CreatedAt:  at.CreatedAt,
			EventIndex: idx,
		})
	}

	for i, e := range events {
		if e.IsSuggestion() {
			switch e.Type {
			case incident.EventStatusUpdate:
				if d, ok := e.Data.(incident.StatusUpdateData); ok {
					pendingValue(incident.TargetUpdateStatus, string(d.Status), e, i)
				}
			case incident.EventSeverityUpdate:
				if d, ok := e.Data.(incident.SeverityUpdateData); ok {
					pendingValue(incident.TargetUpdateSeverity, string(d.Severity), e, i)
				}
			case incident.EventAffectionUpdate:
				if d, ok := e.Data.(incident.AffectionUpdateData); ok {
					pendingValue(incident.TargetAddStatusPageUpdate, string(d.Status), e, i)
				}
			}
			continue
		}
		switch e.Type {
		case incident.EventStatusUpdate:
			if d, ok := e.Data.(incident.StatusUpdateData); ok {
				applyValue(incident.TargetUpdateStatus, string(d.Status), e, i)
			}
		case incident.EventSeverityUpdate:
			if d, ok := e.Data.(incident.SeverityUpdateData); ok {
				applyValue(incident.TargetUpdateSeverity, string(d.Severity), e, i)
			}
		case incident.EventAffectionUpdate:
			if d, ok := e.Data.(incident.AffectionUpdateData); ok {
				applyValue(incident.TargetAddStatusPageUpdate, string(d.Status), e, i)
			}
		}
	}
	return state
}

// LatestEventIndex returns the index of the last event in events, or -1 when
// events is empty. It is a small helper for callers computing staleness via
// incident.IsStale.
func LatestEventIndex(events []incident.AgentEvent) int {
	return len(events) - 1
}
