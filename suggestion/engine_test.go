package suggestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

type stubClient struct {
	resp llm.Response
	err  error
	last llm.Request
}

func (s *stubClient) Respond(_ context.Context, req llm.Request) (llm.Response, error) {
	s.last = req
	return s.resp, s.err
}

func TestGenerateIncidentSuggestionsNormalizesToolCalls(t *testing.T) {
	stub := &stubClient{resp: llm.Response{
		FunctionCalls: []llm.FunctionCall{
			{Name: toolUpdateStatus, Arguments: json.RawMessage(`{"evidence":"rollback deployed","status":"mitigating","message":"rolled back"}`)},
		},
	}}
	ctx := AgentSuggestionContext{
		Incident:               incident.Incident{ID: "inc-1", Status: incident.StatusOpen, Severity: incident.SeverityHigh},
		ValidStatusTransitions: incident.ValidStatusTransitions(incident.StatusOpen),
	}
	res, err := GenerateIncidentSuggestions(context.Background(), stub, ctx, Options{Model: "gpt-5"})
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "gpt-5", stub.last.Model)
}

func TestGenerateIncidentSuggestionsPropagatesTransportError(t *testing.T) {
	stub := &stubClient{err: errors.New("boom")}
	ctx := AgentSuggestionContext{Incident: incident.Incident{ID: "inc-1"}}
	_, err := GenerateIncidentSuggestions(context.Background(), stub, ctx, Options{Model: "gpt-5"})
	assert.Error(t, err)
}

func TestGenerateIncidentSuggestionsDropsInvalidCallsWithoutError(t *testing.T) {
	stub := &stubClient{resp: llm.Response{
		FunctionCalls: []llm.FunctionCall{
			{Name: toolUpdateStatus, Arguments: json.RawMessage(`not json`)},
		},
	}}
	ctx := AgentSuggestionContext{Incident: incident.Incident{ID: "inc-1"}}
	res, err := GenerateIncidentSuggestions(context.Background(), stub, ctx, Options{Model: "gpt-5"})
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
}
