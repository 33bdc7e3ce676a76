package suggestion

import (
	"strings"
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
)

const maxSuggestionsPerTurn = 3

// Result is the normalized output of one suggestion-engine turn.
type Result struct {
	Suggestions []incident.AgentSuggestion
	Similar     *SimilarIncidentsRequest
}

// normalizeSuggestions rechecks the five invariants from spec.md §4.2
// against p.suggestions, in call order, and returns at most three surviving
// proposals with at most one per action family.
//
// Invariant 2's "decisive new evidence after the turn boundary" exception is
// a soft rubric enforced by the system prompt's instructions to the LM, not
// something this function can verify mechanically (see DESIGN.md's
// open-question decision on this). normalizeSuggestions enforces the mechanical half of
// the rule deterministically: a re-proposal of an already-pending, non-stale
// target is dropped regardless of the evidence text the LM attaches to it.
func normalizeSuggestions(ctx AgentSuggestionContext, p parsed, now time.Time) Result {
	targetState := event.DeriveSuggestionTargetState(ctx.Events)
	latestIdx := event.LatestEventIndex(ctx.Events)

	seenKind := make(map[incident.TargetKind]bool)
	var out []incident.AgentSuggestion
	for _, s := range p.suggestions {
		if len(out) >= maxSuggestionsPerTurn {
			break
		}
		if seenKind[s.Kind()] {
			continue // invariant 5: one per action family per turn
		}
		if !passesTransitionGate(ctx, s) {
			continue // invariant 1
		}
		if !passesSeverityGate(ctx, s) {
			continue
		}
		if isSuppressedRepeat(targetState, s, now, latestIdx) {
			continue // invariant 2
		}
		if !passesFirstStatusPageGate(ctx, s) {
			continue // invariant 3
		}
		if !passesResolvedGate(ctx, s) {
			continue // invariant 4
		}
		out = append(out, s)
		seenKind[s.Kind()] = true
	}

	return Result{Suggestions: out, Similar: p.similar}
}

// passesTransitionGate drops update_status suggestions proposing a status
// not in ctx.ValidStatusTransitions.
func passesTransitionGate(ctx AgentSuggestionContext, s incident.AgentSuggestion) bool {
	v, ok := s.(incident.UpdateStatusSuggestion)
	if !ok {
		return true
	}
	for _, valid := range ctx.ValidStatusTransitions {
		if valid == v.Status {
			return true
		}
	}
	return false
}

// passesSeverityGate drops update_severity suggestions that propose the
// incident's current severity (a no-op change).
func passesSeverityGate(ctx AgentSuggestionContext, s incident.AgentSuggestion) bool {
	v, ok := s.(incident.UpdateSeveritySuggestion)
	if !ok {
		return true
	}
	return v.Severity != ctx.Incident.Severity
}

// isSuppressedRepeat reports whether s re-proposes an already-pending,
// non-stale target for its action family.
func isSuppressedRepeat(state incident.SuggestionTargetState, s incident.AgentSuggestion, now time.Time, latestIdx int) bool {
	value := incident.TargetValue(s)
	target, pending := state.IsPending(s.Kind(), value)
	if !pending {
		return false
	}
	return !incident.IsStale(target, now, latestIdx)
}

// passesFirstStatusPageGate enforces that the first add_status_page_update
// for an incident with no existing affection carries investigating, a
// title, and at least one service.
func passesFirstStatusPageGate(ctx AgentSuggestionContext, s incident.AgentSuggestion) bool {
	v, ok := s.(incident.AddStatusPageUpdateSuggestion)
	if !ok {
		return true
	}
	if ctx.Affection.HasAffection {
		return true
	}
	if v.AffectionStatus == nil || *v.AffectionStatus != incident.AffectionInvestigating {
		return false
	}
	if strings.TrimSpace(v.Title) == "" {
		return false
	}
	return len(v.Services) > 0
}

// passesResolvedGate enforces invariant 4 (resolved requires a completed
// remediation action and an explicit human all-clear). This core has no
// structured remediation-completion signal to check mechanically; the
// condition is enforced by the system prompt and the LM's evidence
// citations, so this gate is a placeholder for a future structured signal.
func passesResolvedGate(_ AgentSuggestionContext, _ incident.AgentSuggestion) bool {
	return true
}
