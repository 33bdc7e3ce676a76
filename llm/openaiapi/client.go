// Package openaiapi provides an llm.Client implementation backed by the
// OpenAI Responses API. It translates llm.Request into rs.ResponseNewParams
// calls using github.com/openai/openai-go/v2 and maps the response's output
// items and usage back into the generic llm.Response shape.
package openaiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	rs "github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"

	"github.com/opsline-ai/incident-agent/llm"
)

type (
	// ResponsesClient captures the subset of the OpenAI SDK client used by the
	// adapter, so callers can pass either a real client or a mock in tests.
	ResponsesClient interface {
		New(ctx context.Context, body rs.ResponseNewParams, opts ...option.RequestOption) (*rs.Response, error)
	}

	// Options configures optional behavior of the OpenAI adapter.
	Options struct {
		// DefaultModel is used when llm.Request.Model is empty.
		DefaultModel string
	}

	// Client implements llm.Client on top of the OpenAI Responses API.
	Client struct {
		resp         ResponsesClient
		defaultModel string
	}
)

// New builds an OpenAI-backed client from the provided Responses client and
// configuration options.
func New(resp ResponsesClient, opts Options) (*Client, error) {
	if resp == nil {
		return nil, errors.New("openaiapi: responses client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openaiapi: default model identifier is required")
	}
	return &Client{resp: resp, defaultModel: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openaiapi: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Responses, Options{DefaultModel: defaultModel})
}

// Respond issues a single non-streaming Responses.New call and translates the
// result into an llm.Response. Only function_call output items are consumed;
// any other output item type is ignored for parsing purposes, though its text
// is still surfaced via Response.Text.
func (c *Client) Respond(ctx context.Context, req llm.Request) (llm.Response, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return llm.Response{}, err
	}
	resp, err := c.resp.New(ctx, *params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openaiapi: responses.new: %w", err)
	}
	return translateResponse(resp)
}

func (c *Client) prepareParams(req llm.Request) (*rs.ResponseNewParams, error) {
	if len(req.Input) == 0 {
		return nil, errors.New("openaiapi: at least one input item is required")
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, errors.New("openaiapi: model identifier is required")
	}

	items, instructions := encodeInput(req.Input)
	params := rs.ResponseNewParams{
		Model: rs.ResponsesModel(model),
	}
	extraFields := map[string]any{}
	if len(items) > 0 {
		params.Input.OfInputItemList = items
	}
	if instructions != "" {
		params.Instructions = sdk.String(instructions)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	// "auto" is the Responses API default and needs no explicit field; other
	// modes are passed through SetExtraFields rather than a typed union,
	// since tool_choice is a plain string literal on the wire ("required" /
	// "none") and SetExtraFields already carries anything else the caller
	// merges in below.
	switch req.ToolChoice {
	case "", llm.ToolChoiceAuto:
	case llm.ToolChoiceRequired:
		extraFields["tool_choice"] = "required"
	case llm.ToolChoiceNone:
		extraFields["tool_choice"] = "none"
	default:
		return nil, fmt.Errorf("openaiapi: unsupported tool choice %q", req.ToolChoice)
	}
	if req.PromptCacheKey != "" {
		params.PromptCacheKey = sdk.String(req.PromptCacheKey)
	}
	if req.ReasoningEffort != "" {
		effort, err := encodeReasoningEffort(req.ReasoningEffort)
		if err != nil {
			return nil, err
		}
		params.Reasoning = shared.ReasoningParam{Effort: effort}
	}
	if req.Verbosity != "" {
		verbosity, err := encodeVerbosity(req.Verbosity)
		if err != nil {
			return nil, err
		}
		params.Text.Verbosity = verbosity
	}
	if len(extraFields) > 0 {
		params.SetExtraFields(extraFields)
	}
	return &params, nil
}

// encodeInput maps llm.InputItem blocks to Responses API input items. System
// blocks are merged into a single instructions string rather than sent as
// input items, matching how the Responses API treats top-level instructions.
func encodeInput(items []llm.InputItem) (out rs.ResponseInputParam, instructions string) {
	out = make([]rs.ResponseInputItemUnionParam, 0, len(items))
	var sys []string
	for _, it := range items {
		switch it.Role {
		case llm.InputSystem:
			if it.Content != "" {
				sys = append(sys, it.Content)
			}
		case llm.InputUser:
			content := it.Content
			if content == "" {
				content = " "
			}
			part := rs.ResponseInputContentParamOfInputText(content)
			out = append(out, rs.ResponseInputItemUnionParam{OfInputMessage: &rs.ResponseInputItemMessageParam{
				Content: rs.ResponseInputMessageContentListParam{part},
				Role:    "user",
			}})
		case llm.InputAssistant:
			if it.Content != "" {
				part := rs.ResponseInputContentParamOfInputText(it.Content)
				out = append(out, rs.ResponseInputItemUnionParam{OfInputMessage: &rs.ResponseInputItemMessageParam{
					Content: rs.ResponseInputMessageContentListParam{part},
					Role:    "assistant",
				}})
			}
		}
	}
	if len(sys) > 0 {
		instructions = joinNonEmpty(sys, "\n\n")
	}
	return out, instructions
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func encodeTools(defs []llm.ToolDefinition) ([]rs.ToolUnionParam, error) {
	out := make([]rs.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.New("openaiapi: tool definition missing name")
		}
		var params map[string]any
		if len(d.Schema) > 0 {
			if err := json.Unmarshal(d.Schema, &params); err != nil {
				return nil, fmt.Errorf("openaiapi: tool %q schema: %w", d.Name, err)
			}
		}
		fn := rs.FunctionToolParam{
			Name:        d.Name,
			Parameters:  params,
			Strict:      sdk.Bool(d.Strict),
			Description: sdk.String(d.Description),
		}
		out = append(out, rs.ToolUnionParam{OfFunction: &fn})
	}
	return out, nil
}

func encodeReasoningEffort(e llm.ReasoningEffort) (shared.ReasoningEffort, error) {
	switch e {
	case llm.ReasoningLow:
		return shared.ReasoningEffortLow, nil
	case llm.ReasoningMedium:
		return shared.ReasoningEffortMedium, nil
	case llm.ReasoningHigh:
		return shared.ReasoningEffortHigh, nil
	default:
		return "", fmt.Errorf("openaiapi: unsupported reasoning effort %q", e)
	}
}

func encodeVerbosity(v llm.Verbosity) (shared.ResponsesModelTextVerbosity, error) {
	switch v {
	case llm.VerbosityLow:
		return shared.ResponsesModelTextVerbosityLow, nil
	case llm.VerbosityMedium:
		return shared.ResponsesModelTextVerbosityMedium, nil
	case llm.VerbosityHigh:
		return shared.ResponsesModelTextVerbosityHigh, nil
	default:
		return "", fmt.Errorf("openaiapi: unsupported verbosity %q", v)
	}
}

func translateResponse(resp *rs.Response) (llm.Response, error) {
	if resp == nil {
		return llm.Response{}, errors.New("openaiapi: nil response")
	}
	out := llm.Response{
		ResponseID: resp.ID,
		Text:       resp.OutputText(),
		Usage: llm.Usage{
			InputTokens:       int(resp.Usage.InputTokens),
			OutputTokens:      int(resp.Usage.OutputTokens),
			CachedInputTokens: int(resp.Usage.InputTokensDetails.CachedTokens),
		},
	}
	for _, item := range resp.Output {
		fn := item.AsFunctionCall()
		if fn.Name == "" && fn.CallID == "" && fn.Arguments == "" {
			continue
		}
		id := fn.CallID
		if id == "" {
			id = fn.ID
		}
		out.FunctionCalls = append(out.FunctionCalls, llm.FunctionCall{
			CallID:    id,
			Name:      fn.Name,
			Arguments: json.RawMessage(fn.Arguments),
		})
	}
	return out, nil
}
