package suggestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/incident"
)

func evt(id int64, typ incident.EventType, data incident.EventData, meta *incident.EventMetadata, at time.Time) incident.AgentEvent {
	return incident.AgentEvent{ID: id, Type: typ, Data: data, CreatedAt: at, Metadata: meta}
}

func TestNormalizeDropsIllegalTransition(t *testing.T) {
	ctx := AgentSuggestionContext{
		Incident:               incident.Incident{Status: incident.StatusResolved, Severity: incident.SeverityMedium},
		ValidStatusTransitions: incident.ValidStatusTransitions(incident.StatusResolved),
	}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.UpdateStatusSuggestion{EvidenceText: "e", Status: incident.StatusMitigating},
	}}
	res := normalizeSuggestions(ctx, p, time.Now())
	assert.Empty(t, res.Suggestions)
}

func TestNormalizeDropsNoOpSeverity(t *testing.T) {
	ctx := AgentSuggestionContext{Incident: incident.Incident{Severity: incident.SeverityHigh}}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.UpdateSeveritySuggestion{EvidenceText: "e", Severity: incident.SeverityHigh},
	}}
	res := normalizeSuggestions(ctx, p, time.Now())
	assert.Empty(t, res.Suggestions)
}

func TestNormalizeCapsAtThreeAndDedupesByFamily(t *testing.T) {
	ctx := AgentSuggestionContext{
		Incident:               incident.Incident{Status: incident.StatusOpen, Severity: incident.SeverityMedium},
		ValidStatusTransitions: incident.ValidStatusTransitions(incident.StatusOpen),
	}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.UpdateStatusSuggestion{EvidenceText: "e1", Status: incident.StatusMitigating},
		incident.UpdateStatusSuggestion{EvidenceText: "e2", Status: incident.StatusResolved},
		incident.UpdateSeveritySuggestion{EvidenceText: "e3", Severity: incident.SeverityHigh},
		incident.AddStatusPageUpdateSuggestion{EvidenceText: "e4", Message: "m", AffectionStatus: ptr(incident.AffectionInvestigating), Title: "t", Services: []incident.ServiceImpact{{ID: "svc", Impact: "major"}}},
	}}
	res := normalizeSuggestions(ctx, p, time.Now())
	require.Len(t, res.Suggestions, 3)
	assert.Equal(t, incident.TargetUpdateStatus, res.Suggestions[0].Kind())
	assert.Equal(t, incident.TargetUpdateSeverity, res.Suggestions[1].Kind())
	assert.Equal(t, incident.TargetAddStatusPageUpdate, res.Suggestions[2].Kind())
}

func TestNormalizeRejectsFirstStatusPageWithoutRequiredFields(t *testing.T) {
	ctx := AgentSuggestionContext{Affection: incident.AffectionInfo{HasAffection: false}}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.AddStatusPageUpdateSuggestion{EvidenceText: "e", Message: "m"},
	}}
	res := normalizeSuggestions(ctx, p, time.Now())
	assert.Empty(t, res.Suggestions)
}

func TestNormalizeAllowsFirstStatusPageWithRequiredFields(t *testing.T) {
	ctx := AgentSuggestionContext{Affection: incident.AffectionInfo{HasAffection: false}}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.AddStatusPageUpdateSuggestion{
			EvidenceText: "e", Message: "m",
			AffectionStatus: ptr(incident.AffectionInvestigating),
			Title:           "CDN outage",
			Services:        []incident.ServiceImpact{{ID: "svc-a", Impact: "major"}},
		},
	}}
	res := normalizeSuggestions(ctx, p, time.Now())
	require.Len(t, res.Suggestions, 1)
}

func TestNormalizeSuppressesNonStaleRepeat(t *testing.T) {
	now := time.Now()
	sugMeta := &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: "s1"}
	events := []incident.AgentEvent{
		evt(1, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating}, sugMeta, now.Add(-2*time.Minute)),
	}
	ctx := AgentSuggestionContext{
		Incident:               incident.Incident{Status: incident.StatusOpen},
		ValidStatusTransitions: incident.ValidStatusTransitions(incident.StatusOpen),
		Events:                 events,
	}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.UpdateStatusSuggestion{EvidenceText: "e", Status: incident.StatusMitigating},
	}}
	res := normalizeSuggestions(ctx, p, now)
	assert.Empty(t, res.Suggestions)
}

func TestNormalizeAllowsStaleRepeat(t *testing.T) {
	now := time.Now()
	sugMeta := &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: "s1"}
	old := now.Add(-20 * time.Minute)
	events := []incident.AgentEvent{
		evt(1, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating}, sugMeta, old),
	}
	for i := int64(2); i <= 25; i++ {
		events = append(events, evt(i, incident.EventMessageAdded, incident.MessageAddedData{Message: "chatter"}, nil, old))
	}
	ctx := AgentSuggestionContext{
		Incident:               incident.Incident{Status: incident.StatusOpen},
		ValidStatusTransitions: incident.ValidStatusTransitions(incident.StatusOpen),
		Events:                 events,
	}
	p := parsed{suggestions: []incident.AgentSuggestion{
		incident.UpdateStatusSuggestion{EvidenceText: "e", Status: incident.StatusMitigating},
	}}
	res := normalizeSuggestions(ctx, p, now)
	require.Len(t, res.Suggestions, 1)
}

func ptr[T any](v T) *T { return &v }
