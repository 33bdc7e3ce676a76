package openaiapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openai/openai-go/v2/option"
	rs "github.com/openai/openai-go/v2/responses"

	"github.com/opsline-ai/incident-agent/llm"
)

type stubResponsesClient struct {
	lastParams rs.ResponseNewParams
	resp       *rs.Response
	err        error
}

func (s *stubResponsesClient) New(_ context.Context, body rs.ResponseNewParams, _ ...option.RequestOption) (*rs.Response, error) {
	s.lastParams = body
	return s.resp, s.err
}

func decodeResponse(t *testing.T, raw string) *rs.Response {
	t.Helper()
	var resp rs.Response
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

func TestRespondExtractsFunctionCall(t *testing.T) {
	stub := &stubResponsesClient{resp: decodeResponse(t, `{
		"id": "resp_1",
		"output": [
			{"type": "function_call", "call_id": "call_1", "name": "propose_status_update", "arguments": "{\"status\":\"mitigating\"}"}
		],
		"usage": {"input_tokens": 100, "output_tokens": 20, "input_tokens_details": {"cached_tokens": 40}}
	}`)}
	cl, err := New(stub, Options{DefaultModel: "gpt-5"})
	require.NoError(t, err)

	resp, err := cl.Respond(context.Background(), llm.Request{
		Input: []llm.InputItem{
			{Role: llm.InputSystem, Content: "be concise"},
			{Role: llm.InputUser, Content: "what changed?"},
		},
		Tools: []llm.ToolDefinition{{Name: "propose_status_update", Description: "d", Schema: json.RawMessage(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls, 1)
	assert.Equal(t, "propose_status_update", resp.FunctionCalls[0].Name)
	assert.Equal(t, "call_1", resp.FunctionCalls[0].CallID)
	assert.JSONEq(t, `{"status":"mitigating"}`, string(resp.FunctionCalls[0].Arguments))
	assert.Equal(t, 100, resp.Usage.InputTokens)
	assert.Equal(t, 40, resp.Usage.CachedInputTokens)

	assert.Len(t, stub.lastParams.Tools, 1)
}

func TestRespondRejectsEmptyInput(t *testing.T) {
	cl, err := New(&stubResponsesClient{}, Options{DefaultModel: "gpt-5"})
	require.NoError(t, err)
	_, err = cl.Respond(context.Background(), llm.Request{})
	assert.Error(t, err)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubResponsesClient{}, Options{})
	assert.Error(t, err)
}
