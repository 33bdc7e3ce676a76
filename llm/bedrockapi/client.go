// Package bedrockapi provides a third llm.Client binding, backed by the AWS
// Bedrock Converse API, selectable alongside llm/openaiapi and
// llm/anthropicapi via configuration. It translates llm.Request into a
// bedrockruntime.ConverseInput call and maps the response's content blocks
// and usage back into llm.Response.
package bedrockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/opsline-ai/incident-agent/llm"
)

type (
	// RuntimeClient captures the subset of the AWS Bedrock runtime client used
	// by the adapter, so callers can pass either the real client or a mock in
	// tests. It is satisfied by *bedrockruntime.Client.
	RuntimeClient interface {
		Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	}

	// Options configures the Bedrock adapter.
	Options struct {
		// DefaultModel is used when llm.Request.Model is empty.
		DefaultModel string

		// MaxTokens is the completion cap sent when a request does not
		// specify its own. When zero or negative, the adapter omits
		// MaxTokens so Bedrock applies its own default.
		MaxTokens int

		// Temperature is used when a request does not specify its own.
		Temperature float32
	}

	// Client implements llm.Client on top of AWS Bedrock Converse.
	Client struct {
		runtime      RuntimeClient
		defaultModel string
		maxTokens    int
		temperature  float32
	}
)

// New builds a Bedrock-backed client from the provided runtime client and
// configuration options.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrockapi: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrockapi: default model identifier is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		maxTokens:    opts.MaxTokens,
		temperature:  opts.Temperature,
	}, nil
}

// NewFromConfig constructs a client using an AWS config's default Bedrock
// runtime client (e.g. built from config.LoadDefaultConfig).
func NewFromConfig(cfg aws.Config, opts Options) (*Client, error) {
	return New(bedrockruntime.NewFromConfig(cfg), opts)
}

// Respond issues a single non-streaming Converse request and translates the
// response's content blocks into an llm.Response. Only tool_use blocks are
// consumed as function calls; text blocks are concatenated into
// Response.Text.
func (c *Client) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	input, nameMap, err := c.prepareInput(req)
	if err != nil {
		return llm.Response{}, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return llm.Response{}, fmt.Errorf("bedrockapi: %w: %w", llm.ErrRateLimited, err)
		}
		return llm.Response{}, fmt.Errorf("bedrockapi: converse: %w", err)
	}
	return translateResponse(out, nameMap)
}

func (c *Client) prepareInput(req llm.Request) (*bedrockruntime.ConverseInput, map[string]string, error) {
	if len(req.Input) == 0 {
		return nil, nil, errors.New("bedrockapi: at least one input item is required")
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, nil, errors.New("bedrockapi: model identifier is required")
	}

	messages, system, err := encodeInput(req.Input)
	if err != nil {
		return nil, nil, err
	}

	toolConfig, nameMap, err := encodeTools(req.Tools, req.ToolChoice)
	if err != nil {
		return nil, nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	if cfg := c.inferenceConfig(); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input, nameMap, nil
}

// encodeInput maps llm.InputItem blocks into Bedrock Converse messages.
// System blocks become top-level SystemContentBlock entries; user/assistant
// blocks become conversation turns of a single text content block each,
// mirroring the single-text-part message shape event.BuildEventMessages
// produces.
func encodeInput(items []llm.InputItem) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	messages := make([]brtypes.Message, 0, len(items))
	system := make([]brtypes.SystemContentBlock, 0, len(items))
	for _, it := range items {
		switch it.Role {
		case llm.InputSystem:
			if it.Content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: it.Content})
			}
		case llm.InputUser:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: it.Content}},
			})
		case llm.InputAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: it.Content}},
			})
		default:
			return nil, nil, fmt.Errorf("bedrockapi: unsupported input role %q", it.Role)
		}
	}
	if len(messages) == 0 {
		return nil, nil, errors.New("bedrockapi: at least one user/assistant message is required")
	}
	return messages, system, nil
}

// encodeTools translates llm.ToolDefinition values into a Bedrock
// ToolConfiguration. It returns a name map from the sanitized provider-visible
// tool name back to the canonical llm.ToolDefinition.Name, since Bedrock
// restricts tool names to [a-zA-Z0-9_-]+ while this system's tool names are
// already snake_case and need no sanitizing in practice; the map exists so a
// future tool name change does not silently misattribute tool_use blocks.
func encodeTools(defs []llm.ToolDefinition, choice llm.ToolChoice) (*brtypes.ToolConfiguration, map[string]string, error) {
	if len(defs) == 0 {
		return nil, nil, nil
	}
	tools := make([]brtypes.Tool, 0, len(defs))
	nameMap := make(map[string]string, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, nil, errors.New("bedrockapi: tool definition missing name")
		}
		if d.Description == "" {
			return nil, nil, fmt.Errorf("bedrockapi: tool %q is missing description", d.Name)
		}
		nameMap[d.Name] = d.Name
		spec := brtypes.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(d.Schema)},
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: spec})
	}
	cfg := &brtypes.ToolConfiguration{Tools: tools}
	switch choice {
	case "", llm.ToolChoiceAuto:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAuto{Value: brtypes.AutoToolChoice{}}
	case llm.ToolChoiceRequired:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	case llm.ToolChoiceNone:
		// Bedrock has no "none" tool choice; omitting ToolChoice with tools
		// still present preserves the configuration for existing tool_use /
		// tool_result blocks without forcing a new call.
	default:
		return nil, nil, fmt.Errorf("bedrockapi: unsupported tool choice %q", choice)
	}
	return cfg, nameMap, nil
}

func toDocument(schema json.RawMessage) document.Interface {
	if len(schema) == 0 {
		return document.NewLazyDocument(map[string]any{"type": "object"})
	}
	var decoded any
	if err := json.Unmarshal(schema, &decoded); err != nil {
		return document.NewLazyDocument(map[string]any{"type": "object"})
	}
	return document.NewLazyDocument(decoded)
}

func (c *Client) inferenceConfig() *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	if c.maxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(c.maxTokens)) //nolint:gosec // bounded by caller configuration
	}
	if c.temperature > 0 {
		cfg.Temperature = aws.Float32(c.temperature)
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}
	return &cfg
}

// isRateLimited reports whether err represents a Bedrock throttling
// condition, via either a provider error code or an HTTP 429 response.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return true
	}
	return false
}

func translateResponse(out *bedrockruntime.ConverseOutput, nameMap map[string]string) (llm.Response, error) {
	if out == nil {
		return llm.Response{}, errors.New("bedrockapi: nil response")
	}
	resp := llm.Response{}
	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}
	var text string
	for _, block := range msg.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			name := ""
			if v.Value.Name != nil {
				name = *v.Value.Name
				if canonical, ok := nameMap[name]; ok {
					name = canonical
				}
			}
			var id string
			if v.Value.ToolUseId != nil {
				id = *v.Value.ToolUseId
			}
			args, err := json.Marshal(decodeDocument(v.Value.Input))
			if err != nil {
				return llm.Response{}, fmt.Errorf("bedrockapi: re-encode tool_use input: %w", err)
			}
			resp.FunctionCalls = append(resp.FunctionCalls, llm.FunctionCall{
				CallID:    id,
				Name:      name,
				Arguments: args,
			})
		}
	}
	resp.Text = text
	if out.Usage != nil {
		resp.Usage = llm.Usage{
			InputTokens:       int(ptrValue(out.Usage.InputTokens)),
			OutputTokens:      int(ptrValue(out.Usage.OutputTokens)),
			CachedInputTokens: int(ptrValue(out.Usage.CacheReadInputTokens)),
		}
	}
	return resp, nil
}

func decodeDocument(doc document.Interface) any {
	if doc == nil {
		return map[string]any{}
	}
	var v any
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return map[string]any{}
	}
	return v
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}
