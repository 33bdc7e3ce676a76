package eval

import (
	"fmt"
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/suggestion"
)

// The scenarios below cover the seven numbered seeds from spec.md §8 across
// five Scenario fixtures (the CDN outage scenario carries three of its own
// turns for seeds 1-3), expressed as Go struct literals per SPEC_FULL.md
// §4.6 (matching the teacher's testscenarios convention of Go-constructor
// fixtures rather than YAML). Event timestamps use a fixed reference time so
// staleness and recency checks are reproducible regardless of when the
// harness runs.

var seedBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func evt(id int64, at time.Time, typ incident.EventType, data incident.EventData) incident.AgentEvent {
	return incident.AgentEvent{ID: id, Type: typ, Data: data, CreatedAt: at}
}

func msg(id int64, at time.Time, author, text string) incident.AgentEvent {
	return evt(id, at, incident.EventMessageAdded, incident.MessageAddedData{Message: text, Author: author})
}

func sugEvt(id int64, at time.Time, sugID string, typ incident.EventType, data incident.EventData) incident.AgentEvent {
	e := evt(id, at, typ, data)
	e.Metadata = &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: sugID}
	return e
}

func cdnServices() []event.Service {
	return []event.Service{{ID: "cdn", Name: "CDN Edge"}}
}

// Scenarios returns the full seed set, in spec.md §8 order.
func Scenarios() []Scenario {
	return []Scenario{
		cdnOutageScenario(),
		internalDemoDBCorruptionScenario(),
		pendingInvestigatingSpamScenario(),
		repeatSuppressionStaleTargetScenario(),
		noisyFalseAlarmScenario(),
	}
}

// cdnOutageScenario covers seeds 1-3: turns 1, 2, and 4 of a CDN outage.
func cdnOutageScenario() Scenario {
	inc := incident.Incident{
		ID: "inc-cdn-outage", TenantID: "tenant-1", CreatedAt: seedBase,
		Status: incident.StatusOpen, Severity: incident.SeverityMedium,
		Title: "CDN outage", Source: incident.AdapterDashboard,
	}

	turn1Events := []incident.AgentEvent{
		evt(1, seedBase, incident.EventIncidentCreated, incident.IncidentCreatedData{
			Title: inc.Title, Severity: incident.SeverityMedium, Source: incident.AdapterDashboard,
		}),
		msg(2, seedBase.Add(1*time.Minute), "oncall", "EU region returning 503s on static assets"),
		msg(3, seedBase.Add(2*time.Minute), "oncall", "US-West CDN also failing, same 503 pattern"),
		msg(4, seedBase.Add(3*time.Minute), "oncall", "Confirmed both EU and US-West edge nodes affected"),
	}

	turn1 := Turn{
		Name: "turn 1",
		Context: suggestion.AgentSuggestionContext{
			Incident: inc, Services: cdnServices(), Events: turn1Events,
			ProcessedThroughID: 0, ValidStatusTransitions: incident.ValidStatusTransitions(inc.Status),
		},
		Expectations: []Expectation{
			{Positive: false, Action: incident.TargetUpdateStatus, Constraint: "mitigating"},
			{Positive: false, Action: incident.TargetUpdateStatus, Constraint: "resolved"},
			{Positive: true, Action: incident.TargetAddStatusPageUpdate, Constraint: "affectionStatus=investigating"},
		},
	}

	incTurn2 := inc
	incTurn2.Severity = incident.SeverityHigh
	turn2Events := append(append([]incident.AgentEvent{}, turn1Events...),
		evt(5, seedBase.Add(5*time.Minute), incident.EventSeverityUpdate, incident.SeverityUpdateData{Severity: incident.SeverityHigh}),
		evt(6, seedBase.Add(6*time.Minute), incident.EventAffectionUpdate, incident.AffectionUpdateData{
			Status: incident.AffectionInvestigating, Title: "CDN outage - investigating", Services: []incident.ServiceImpact{{ID: "cdn", Impact: "major"}},
		}),
		msg(7, seedBase.Add(10*time.Minute), "oncall", "Rolled back CDN config"),
	)
	turn2 := Turn{
		Name: "turn 2",
		Context: suggestion.AgentSuggestionContext{
			Incident: incTurn2, Services: cdnServices(), Events: turn2Events,
			Affection:              event.DeriveAffectionInfo(turn2Events),
			ProcessedThroughID:     4,
			ValidStatusTransitions: incident.ValidStatusTransitions(incTurn2.Status),
		},
		Expectations: []Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "mitigating"},
			{Positive: false, Action: incident.TargetUpdateStatus, Constraint: "resolved"},
		},
	}

	incTurn4 := incTurn2
	incTurn4.Status = incident.StatusMitigating
	turn4Events := append(append([]incident.AgentEvent{}, turn2Events...),
		evt(8, seedBase.Add(11*time.Minute), incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating, Message: "rollback confirmed"}),
		msg(9, seedBase.Add(20*time.Minute), "oncall", "All regions 200 OK"),
		msg(10, seedBase.Add(21*time.Minute), "oncall", "Confirmed working, error rate 0%"),
	)
	turn4 := Turn{
		Name: "turn 4",
		Context: suggestion.AgentSuggestionContext{
			Incident: incTurn4, Services: cdnServices(), Events: turn4Events,
			Affection:              event.DeriveAffectionInfo(turn4Events),
			ProcessedThroughID:     7,
			ValidStatusTransitions: incident.ValidStatusTransitions(incTurn4.Status),
		},
		Expectations: []Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "resolved"},
		},
	}

	return Scenario{
		ID:          "cdn-outage",
		Description: "A multi-region CDN outage progressing from open through mitigating to resolved.",
		Turns:       []Turn{turn1, turn2, turn4},
	}
}

// internalDemoDBCorruptionScenario covers seed 4: an internal-only incident
// with no customer-facing impact, so no status-page update should fire.
func internalDemoDBCorruptionScenario() Scenario {
	inc := incident.Incident{
		ID: "inc-demo-db", TenantID: "tenant-1", CreatedAt: seedBase,
		Status: incident.StatusOpen, Severity: incident.SeverityMedium,
		Title: "Internal demo DB corruption", Source: incident.AdapterDashboard,
	}
	setupEvents := []incident.AgentEvent{
		evt(1, seedBase, incident.EventIncidentCreated, incident.IncidentCreatedData{
			Title: inc.Title, Severity: incident.SeverityMedium, Source: incident.AdapterDashboard,
		}),
		msg(2, seedBase.Add(1*time.Minute), "oncall", "Confirmed internal-only: demo DB corruption, no customer-facing impact"),
	}
	turn2Events := append(append([]incident.AgentEvent{}, setupEvents...),
		msg(3, seedBase.Add(5*time.Minute), "oncall", "Restored demo DB from backup, fix applied and verified, all internal consumers green"),
	)
	turn2 := Turn{
		Name: "turn 2",
		Context: suggestion.AgentSuggestionContext{
			Incident: inc, Services: nil, Events: turn2Events,
			ProcessedThroughID:     2,
			ValidStatusTransitions: incident.ValidStatusTransitions(inc.Status),
		},
		Expectations: []Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "mitigating"},
			{Positive: false, Action: incident.TargetAddStatusPageUpdate},
		},
	}
	return Scenario{
		ID:          "internal-demo-db-corruption",
		Description: "An internal-only incident with no external impact; status-page updates are never warranted.",
		Turns:       []Turn{turn2},
	}
}

// pendingInvestigatingSpamScenario covers seed 5: a pending investigating
// status-page suggestion with no matching applied event should suppress
// further add_status_page_update proposals across subsequent turns.
func pendingInvestigatingSpamScenario() Scenario {
	inc := incident.Incident{
		ID: "inc-spam", TenantID: "tenant-1", CreatedAt: seedBase,
		Status: incident.StatusOpen, Severity: incident.SeverityMedium,
		Title: "Elevated API latency", Source: incident.AdapterDashboard,
	}
	investigating := incident.AffectionInvestigating
	baseEvents := []incident.AgentEvent{
		evt(1, seedBase, incident.EventIncidentCreated, incident.IncidentCreatedData{
			Title: inc.Title, Severity: incident.SeverityMedium, Source: incident.AdapterDashboard,
		}),
		msg(2, seedBase.Add(1*time.Minute), "oncall", "p99 latency up 3x on the API gateway"),
		sugEvt(3, seedBase.Add(2*time.Minute), "sug-pending-1", incident.EventAffectionUpdate, incident.AffectionUpdateData{
			Status: investigating, Title: "Elevated API latency - investigating", Services: []incident.ServiceImpact{{ID: "api", Impact: "partial"}},
		}),
	}

	var turns []Turn
	chatter := []string{
		"Checking gateway pod CPU, nothing obvious yet",
		"Scaled gateway replicas from 4 to 8",
		"Latency still elevated, continuing investigation",
	}
	events := baseEvents
	for i, text := range chatter {
		turnNum := i + 2 // turns 2, 3, 4
		nextID := int64(len(events) + 1)
		processedThrough := events[len(events)-1].ID
		events = append(append([]incident.AgentEvent{}, events...),
			msg(nextID, seedBase.Add(time.Duration(5+i*5)*time.Minute), "oncall", text),
		)
		turns = append(turns, Turn{
			Name: fmt.Sprintf("turn %d", turnNum),
			Context: suggestion.AgentSuggestionContext{
				Incident: inc, Services: []event.Service{{ID: "api", Name: "API Gateway"}}, Events: events,
				Affection:              event.DeriveAffectionInfo(events),
				ProcessedThroughID:     processedThrough,
				ValidStatusTransitions: incident.ValidStatusTransitions(inc.Status),
			},
			Expectations: []Expectation{
				{Positive: false, Action: incident.TargetAddStatusPageUpdate},
			},
		})
	}

	return Scenario{
		ID:          "pending-investigating-spam",
		Description: "A pending investigating status-page suggestion with no applied match; later turns add only internal chatter.",
		Turns:       turns,
	}
}

// repeatSuppressionStaleTargetScenario covers seed 6: a pending mitigating
// suggestion old enough and far enough back in the log to count as stale,
// so a repeat proposal is expected despite the general repeat-suppression
// rule.
func repeatSuppressionStaleTargetScenario() Scenario {
	inc := incident.Incident{
		ID: "inc-stale", TenantID: "tenant-1", CreatedAt: seedBase,
		Status: incident.StatusOpen, Severity: incident.SeverityHigh,
		Title: "Database connection pool exhaustion", Source: incident.AdapterDashboard,
	}

	events := []incident.AgentEvent{
		evt(1, seedBase, incident.EventIncidentCreated, incident.IncidentCreatedData{
			Title: inc.Title, Severity: incident.SeverityHigh, Source: incident.AdapterDashboard,
		}),
		sugEvt(2, seedBase.Add(1*time.Minute), "sug-stale-1", incident.EventStatusUpdate, incident.StatusUpdateData{
			Status: incident.StatusMitigating, Message: "connection pool increase proposed",
		}),
	}
	// 20 events of internal chatter separate the stale suggestion from the
	// tail, and its CreatedAt is more than 10 minutes before "now".
	for i := 0; i < 20; i++ {
		events = append(events, msg(int64(3+i), seedBase.Add(time.Duration(2+i)*time.Minute), "oncall", "still monitoring connection pool metrics"))
	}
	events = append(events,
		msg(23, seedBase.Add(30*time.Minute), "oncall", "Connection pool still saturated, applying the same fix again"),
	)

	now := seedBase.Add(31 * time.Minute) // >10 minutes after the stale suggestion

	turn := Turn{
		Name: "turn 2",
		Now:  now,
		Context: suggestion.AgentSuggestionContext{
			Incident: inc, Services: nil, Events: events,
			ProcessedThroughID:     22,
			ValidStatusTransitions: incident.ValidStatusTransitions(inc.Status),
		},
		Expectations: []Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "mitigating (stale exception)"},
		},
	}
	return Scenario{
		ID:          "repeat-suppression-stale-target",
		Description: "A pending mitigating suggestion old enough and far enough back in the log to be stale; current evidence still warrants it.",
		Turns:       []Turn{turn},
	}
}

// noisyFalseAlarmScenario covers seed 7: ambiguous alerts resolved as a
// false alarm, where status should resolve but no status-page update is
// warranted since nothing was ever publicly posted.
func noisyFalseAlarmScenario() Scenario {
	inc := incident.Incident{
		ID: "inc-false-alarm", TenantID: "tenant-1", CreatedAt: seedBase,
		Status: incident.StatusOpen, Severity: incident.SeverityLow,
		Title: "Intermittent alert noise", Source: incident.AdapterDashboard,
	}
	setupEvents := []incident.AgentEvent{
		evt(1, seedBase, incident.EventIncidentCreated, incident.IncidentCreatedData{
			Title: inc.Title, Severity: incident.SeverityLow, Source: incident.AdapterDashboard,
		}),
		msg(2, seedBase.Add(1*time.Minute), "oncall", "Getting scattered alerts across three services, unclear if related"),
	}
	turn2Events := append(append([]incident.AgentEvent{}, setupEvents...),
		msg(3, seedBase.Add(10*time.Minute), "oncall", "False alarm across the board"),
		msg(4, seedBase.Add(11*time.Minute), "oncall", "Everything stable, no real issue found"),
	)
	turn2 := Turn{
		Name: "turn 2",
		Context: suggestion.AgentSuggestionContext{
			Incident: inc, Services: nil, Events: turn2Events,
			ProcessedThroughID:     2,
			ValidStatusTransitions: incident.ValidStatusTransitions(inc.Status),
		},
		Expectations: []Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "resolved"},
			{Positive: false, Action: incident.TargetAddStatusPageUpdate},
		},
	}
	return Scenario{
		ID:          "noisy-false-alarm",
		Description: "Ambiguous alerts that resolve as a false alarm with no public-facing signal ever posted.",
		Turns:       []Turn{turn2},
	}
}
