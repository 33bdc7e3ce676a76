package bedrockapi

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/llm"
)

type stubRuntimeClient struct {
	lastInput *bedrockruntime.ConverseInput
	out       *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubRuntimeClient) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	return s.out, s.err
}

func TestRespondExtractsToolUse(t *testing.T) {
	stub := &stubRuntimeClient{
		out: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role: brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberText{Value: "looking into it"},
						&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
							ToolUseId: aws.String("call_1"),
							Name:      aws.String("propose_status_update"),
							Input:     document.NewLazyDocument(map[string]any{"status": "mitigating"}),
						}},
					},
				},
			},
			Usage: &brtypes.TokenUsage{
				InputTokens:          aws.Int32(50),
				OutputTokens:         aws.Int32(12),
				CacheReadInputTokens: aws.Int32(5),
			},
		},
	}
	cl, err := New(stub, Options{DefaultModel: "anthropic.claude-3-5-sonnet", MaxTokens: 1024})
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

	require.NotNil(t, stub.lastInput)
	require.Len(t, stub.lastInput.System, 1)
	require.Len(t, stub.lastInput.Messages, 1)
}

func TestRespondRejectsEmptyInput(t *testing.T) {
	cl, err := New(&stubRuntimeClient{}, Options{DefaultModel: "anthropic.claude-3-5-sonnet"})
	require.NoError(t, err)
	_, err = cl.Respond(context.Background(), llm.Request{})
	assert.Error(t, err)
}

func TestNewRequiresDefaultModel(t *testing.T) {
	_, err := New(&stubRuntimeClient{}, Options{})
	assert.Error(t, err)
}

func TestNewRequiresRuntimeClient(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "anthropic.claude-3-5-sonnet"})
	assert.Error(t, err)
}
