package event

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
)

// Service names one catalog entry eligible to be cited as impacted in a
// status-page update.
type Service struct {
	ID   string
	Name string
}

// BuildContextUserMessage renders the service catalog as a single user
// message so the LM knows the valid `services[].id` values for
// add_status_page_update.
func BuildContextUserMessage(services []Service) Message {
	if len(services) == 0 {
		return Message{Role: RoleUser, Content: "No services are registered for this incident."}
	}
	sorted := append([]Service(nil), services...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	var b strings.Builder
	b.WriteString("Known services (id: name):\n")
	for _, s := range sorted {
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.Name)
	}
	return Message{Role: RoleUser, Content: strings.TrimRight(b.String(), "\n")}
}

// BuildStatusPageContextMessage renders the affection state with a relative
// time for LastUpdateAt so the LM can reason about status-page cadence
// without doing timestamp arithmetic itself.
func BuildStatusPageContextMessage(info incident.AffectionInfo, now time.Time) Message {
	if !info.HasAffection {
		return Message{Role: RoleUser, Content: "Status page: no public incident record exists yet."}
	}
	status := "unknown"
	if info.LastStatus != nil {
		status = string(*info.LastStatus)
	}
	rel := "unknown"
	if info.LastUpdateAt != nil {
		rel = relativeTime(now.Sub(*info.LastUpdateAt))
	}
	return Message{Role: RoleUser, Content: fmt.Sprintf(
		"Status page: public record exists, last status %q, last updated %s.", status, rel,
	)}
}

// BuildSuggestionStateContextMessage renders the pending and applied
// suggestion target state so the LM avoids re-proposing already-pending
// targets (spec.md §4.2 invariant 2).
func BuildSuggestionStateContextMessage(state incident.SuggestionTargetState) Message {
	var b strings.Builder
	b.WriteString("Suggestion state:\n")
	kinds := []incident.TargetKind{
		incident.TargetUpdateStatus,
		incident.TargetUpdateSeverity,
		incident.TargetAddStatusPageUpdate,
	}
	any := false
	for _, k := range kinds {
		if pending := state.Pending[k]; len(pending) > 0 {
			any = true
			values := make([]string, len(pending))
			for i, t := range pending {
				values[i] = t.Value
			}
			fmt.Fprintf(&b, "- %s: pending %s\n", k, strings.Join(values, ", "))
		}
		if applied := state.Applied[k]; len(applied) > 0 {
			any = true
			last := applied[len(applied)-1]
			fmt.Fprintf(&b, "- %s: last applied %s\n", k, last.Value)
		}
	}
	if !any {
		b.WriteString("- no pending or applied suggestions yet\n")
	}
	return Message{Role: RoleUser, Content: strings.TrimRight(b.String(), "\n")}
}

// BuildIncidentStateMessage renders the incident's current lifecycle
// position and the transitions legal from it.
func BuildIncidentStateMessage(inc incident.Incident, validTransitions []incident.Status) Message {
	names := make([]string, len(validTransitions))
	for i, s := range validTransitions {
		names[i] = string(s)
	}
	exits := "none (terminal)"
	if len(names) > 0 {
		exits = strings.Join(names, ", ")
	}
	return Message{Role: RoleUser, Content: fmt.Sprintf(
		"Incident state: status=%s severity=%s valid next statuses=[%s]",
		inc.Status, inc.Severity, exits,
	)}
}

// relativeTime renders d as a short human-relative phrase ("3m ago", "2h
// ago"), matching the coarse granularity an operator-facing prompt needs.
func relativeTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
