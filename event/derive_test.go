package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
)

func TestDeriveAffectionInfoNoEvents(t *testing.T) {
	info := event.DeriveAffectionInfo(nil)
	assert.False(t, info.HasAffection)
	assert.Nil(t, info.LastStatus)
}

func TestDeriveAffectionInfoFoldsLatest(t *testing.T) {
	events := []incident.AgentEvent{
		mkEvent(1, incident.EventAffectionUpdate, incident.AffectionUpdateData{Status: incident.AffectionInvestigating}, nil),
		mkEvent(2, incident.EventAffectionUpdate, incident.AffectionUpdateData{Status: incident.AffectionMitigating}, nil),
	}
	info := event.DeriveAffectionInfo(events)
	require.True(t, info.HasAffection)
	require.NotNil(t, info.LastStatus)
	assert.Equal(t, incident.AffectionMitigating, *info.LastStatus)
}

func TestDeriveAffectionInfoSkipsSuggestionOrigin(t *testing.T) {
	sugMeta := &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: "s1"}
	events := []incident.AgentEvent{
		mkEvent(1, incident.EventAffectionUpdate, incident.AffectionUpdateData{Status: incident.AffectionMitigating}, sugMeta),
	}
	info := event.DeriveAffectionInfo(events)
	assert.False(t, info.HasAffection, "a proposed-but-not-applied affection change must not surface as the live public state")

	state := event.DeriveSuggestionTargetState(events)
	pending := state.PendingFor(incident.TargetAddStatusPageUpdate)
	require.Len(t, pending, 1)
	assert.Equal(t, "mitigating", pending[0].Value)
}

func TestDeriveSuggestionTargetStatePendingThenApplied(t *testing.T) {
	sugMeta := &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: "s1"}
	events := []incident.AgentEvent{
		mkEvent(1, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating}, sugMeta),
	}
	state := event.DeriveSuggestionTargetState(events)
	pending := state.PendingFor(incident.TargetUpdateStatus)
	require.Len(t, pending, 1)
	assert.Equal(t, "mitigating", pending[0].Value)
	assert.Empty(t, state.Applied[incident.TargetUpdateStatus])

	events = append(events, mkEvent(2, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating}, nil))
	state = event.DeriveSuggestionTargetState(events)
	assert.Empty(t, state.PendingFor(incident.TargetUpdateStatus))
	require.Len(t, state.Applied[incident.TargetUpdateStatus], 1)
}

func TestDeriveSuggestionTargetStateDifferentValueDoesNotClear(t *testing.T) {
	sugMeta := &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: "s1"}
	events := []incident.AgentEvent{
		mkEvent(1, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusMitigating}, sugMeta),
		mkEvent(2, incident.EventStatusUpdate, incident.StatusUpdateData{Status: incident.StatusResolved}, nil),
	}
	state := event.DeriveSuggestionTargetState(events)
	pending := state.PendingFor(incident.TargetUpdateStatus)
	require.Len(t, pending, 1)
	assert.Equal(t, "mitigating", pending[0].Value)
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	fresh := incident.Target{CreatedAt: now.Add(-5 * time.Minute), EventIndex: 0}
	assert.False(t, incident.IsStale(fresh, now, 25))

	oldButRecentEvents := incident.Target{CreatedAt: now.Add(-20 * time.Minute), EventIndex: 10}
	assert.False(t, incident.IsStale(oldButRecentEvents, now, 15))

	stale := incident.Target{CreatedAt: now.Add(-20 * time.Minute), EventIndex: 0}
	assert.True(t, incident.IsStale(stale, now, 25))
}
