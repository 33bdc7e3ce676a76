package suggestion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

func TestParseFunctionCallsCoercesEachToolKind(t *testing.T) {
	calls := []llm.FunctionCall{
		{Name: toolUpdateStatus, Arguments: json.RawMessage(`{"evidence":"e1","status":"mitigating","message":"m"}`)},
		{Name: toolUpdateSeverity, Arguments: json.RawMessage(`{"evidence":"e2","severity":"high"}`)},
		{Name: toolAddStatusPageUpdate, Arguments: json.RawMessage(`{"evidence":"e3","message":"m","affectionStatus":"investigating","title":"t","services":[{"id":"svc","impact":"major"}]}`)},
		{Name: toolSimilarIncidents, Arguments: json.RawMessage(`{"evidence":"e4","reason":"r"}`)},
	}
	p := parseFunctionCalls(calls)
	require.Len(t, p.suggestions, 3)
	require.NotNil(t, p.similar)
	assert.Equal(t, "r", p.similar.Reason)

	status, ok := p.suggestions[0].(incident.UpdateStatusSuggestion)
	require.True(t, ok)
	assert.Equal(t, incident.StatusMitigating, status.Status)

	statusPage, ok := p.suggestions[2].(incident.AddStatusPageUpdateSuggestion)
	require.True(t, ok)
	require.NotNil(t, statusPage.AffectionStatus)
	assert.Equal(t, incident.AffectionInvestigating, *statusPage.AffectionStatus)
	assert.Equal(t, "svc", statusPage.Services[0].ID)
}

func TestParseFunctionCallsDropsSchemaInvalid(t *testing.T) {
	calls := []llm.FunctionCall{
		{Name: toolUpdateStatus, Arguments: json.RawMessage(`{"evidence":"e","status":"declined","message":"m"}`)},
	}
	p := parseFunctionCalls(calls)
	assert.Empty(t, p.suggestions)
}

func TestParseFunctionCallsDropsMissingEvidence(t *testing.T) {
	calls := []llm.FunctionCall{
		{Name: toolUpdateSeverity, Arguments: json.RawMessage(`{"evidence":"","severity":"high"}`)},
	}
	p := parseFunctionCalls(calls)
	assert.Empty(t, p.suggestions)
}

func TestParseFunctionCallsKeepsOnlyFirstSimilarRequest(t *testing.T) {
	calls := []llm.FunctionCall{
		{Name: toolSimilarIncidents, Arguments: json.RawMessage(`{"evidence":"e1","reason":"first"}`)},
		{Name: toolSimilarIncidents, Arguments: json.RawMessage(`{"evidence":"e2","reason":"second"}`)},
	}
	p := parseFunctionCalls(calls)
	require.NotNil(t, p.similar)
	assert.Equal(t, "first", p.similar.Reason)
}
