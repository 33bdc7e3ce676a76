// Package anthropicapi provides an alternate llm.Client implementation
// backed by the Anthropic Claude Messages API, selectable in place of
// llm/openaiapi via configuration. It translates llm.Request into
// sdk.MessageNewParams calls using github.com/anthropics/anthropic-sdk-go and
// maps the response's content blocks and usage back into llm.Response.
package anthropicapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/opsline-ai/incident-agent/llm"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK client used by
	// the adapter, so callers can pass either a real client or a mock in
	// tests.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures optional behavior of the Anthropic adapter.
	Options struct {
		// DefaultModel is used when llm.Request.Model is empty.
		DefaultModel string

		// MaxTokens is the completion cap sent on every request; the
		// Messages API requires it to be set and positive.
		MaxTokens int
	}

	// Client implements llm.Client on top of Anthropic Claude Messages.
	Client struct {
		msg          MessagesClient
		defaultModel string
		maxTokens    int
	}
)

// New builds an Anthropic-backed client from the provided Messages client
// and configuration options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropicapi: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropicapi: default model identifier is required")
	}
	if opts.MaxTokens <= 0 {
		return nil, errors.New("anthropicapi: max tokens must be positive")
	}
	return &Client{msg: msg, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropicapi: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel, MaxTokens: maxTokens})
}

// Respond issues a single non-streaming Messages.New request and translates
// the response's content blocks into an llm.Response. Only tool_use blocks
// are consumed as function calls; text blocks are concatenated into
// Response.Text.
func (c *Client) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return llm.Response{}, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropicapi: messages.new: %w", err)
	}
	return translateResponse(msg)
}

func (c *Client) prepareParams(req llm.Request) (*sdk.MessageNewParams, error) {
	if len(req.Input) == 0 {
		return nil, errors.New("anthropicapi: at least one input item is required")
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, errors.New("anthropicapi: model identifier is required")
	}

	msgs, system, err := encodeInput(req.Input)
	if err != nil {
		return nil, err
	}
	params := sdk.MessageNewParams{
		MaxTokens: int64(c.maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	tc, err := encodeToolChoice(req.ToolChoice)
	if err != nil {
		return nil, err
	}
	params.ToolChoice = tc
	return &params, nil
}

// encodeInput maps llm.InputItem blocks into Anthropic Messages. System
// blocks become top-level TextBlockParam system entries; user/assistant
// blocks become conversation turns of a single text block each, mirroring
// the single-text-part shape produced by event.BuildEventMessages.
func encodeInput(items []llm.InputItem) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(items))
	system := make([]sdk.TextBlockParam, 0, len(items))
	for _, it := range items {
		switch it.Role {
		case llm.InputSystem:
			if it.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: it.Content})
			}
		case llm.InputUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(it.Content)))
		case llm.InputAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(it.Content)))
		default:
			return nil, nil, fmt.Errorf("anthropicapi: unsupported input role %q", it.Role)
		}
	}
	if len(conversation) == 0 {
		return nil, nil, errors.New("anthropicapi: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func encodeTools(defs []llm.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("anthropicapi: tool definition missing name")
		}
		if d.Description == "" {
			return nil, fmt.Errorf("anthropicapi: tool %q is missing description", d.Name)
		}
		var schema map[string]any
		if len(d.Schema) > 0 {
			if err := json.Unmarshal(d.Schema, &schema); err != nil {
				return nil, fmt.Errorf("anthropicapi: tool %q schema: %w", d.Name, err)
			}
		}
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, d.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(d.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func encodeToolChoice(choice llm.ToolChoice) (sdk.ToolChoiceUnionParam, error) {
	switch choice {
	case "", llm.ToolChoiceAuto:
		return sdk.ToolChoiceUnionParam{}, nil
	case llm.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	case llm.ToolChoiceRequired:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	default:
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropicapi: unsupported tool choice %q", choice)
	}
}

func translateResponse(msg *sdk.Message) (llm.Response, error) {
	if msg == nil {
		return llm.Response{}, errors.New("anthropicapi: nil response")
	}
	out := llm.Response{ResponseID: msg.ID}
	var text string
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			out.FunctionCalls = append(out.FunctionCalls, llm.FunctionCall{
				CallID:    block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	out.Text = text
	out.Usage = llm.Usage{
		InputTokens:       int(msg.Usage.InputTokens),
		OutputTokens:      int(msg.Usage.OutputTokens),
		CachedInputTokens: int(msg.Usage.CacheReadInputTokens),
	}
	return out, nil
}
