package anthropicapi

import (
	"context"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/llm"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestRespondExtractsToolUse(t *testing.T) {
	stub := &stubMessagesClient{
		resp: &sdk.Message{
			ID: "msg_1",
			Content: []sdk.ContentBlockUnion{
				{Type: "text", Text: "looking into it"},
				{Type: "tool_use", ID: "call_1", Name: "propose_status_update", Input: []byte(`{"status":"mitigating"}`)},
			},
			Usage: sdk.Usage{InputTokens: 50, OutputTokens: 12, CacheReadInputTokens: 5},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 1024})
	require.NoError(t, err)

	resp, err := cl.Respond(context.Background(), llm.Request{
		Input: []llm.InputItem{
			{Role: llm.InputSystem, Content: "be concise"},
			{Role: llm.InputUser, Content: "what changed?"},
		},
		Tools: []llm.ToolDefinition{{Name: "propose_status_update", Description: "d", Schema: []byte(`{"type":"object"}`)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.FunctionCalls, 1)
	assert.Equal(t, "propose_status_update", resp.FunctionCalls[0].Name)
	assert.Equal(t, "call_1", resp.FunctionCalls[0].CallID)
	assert.Equal(t, "looking into it", resp.Text)
	assert.Equal(t, 50, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.CachedInputTokens)

	require.Len(t, stub.lastParams.System, 1)
	assert.Equal(t, "be concise", stub.lastParams.System[0].Text)
	require.Len(t, stub.lastParams.Messages, 1)
}

func TestRespondRejectsEmptyInput(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 1024})
	require.NoError(t, err)
	_, err = cl.Respond(context.Background(), llm.Request{})
	assert.Error(t, err)
}

func TestNewRequiresMaxTokens(t *testing.T) {
	_, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-sonnet-4-5"})
	assert.Error(t, err)
}
