// Package suggestion implements the suggestion engine: prompt assembly
// against an incident's event log, a single strict-tool LM call, and
// normalization of the result against the invariants in spec.md §4.2.
package suggestion

import (
	"context"
	"time"

	"github.com/opsline-ai/incident-agent/llm"
)

// Options configures one GenerateIncidentSuggestions call.
type Options struct {
	// Model is the LM model identifier to request.
	Model string
	// ReasoningEffort controls latent reasoning depth for this call.
	ReasoningEffort llm.ReasoningEffort
	// Now is injected for deterministic tests; callers leave it zero in
	// production and the engine substitutes time.Now().
	Now time.Time
}

// Trace carries the normalized Result alongside the raw provider response
// and call latency. The evaluation harness needs the raw tool calls, token
// usage, response id, and latency per run (spec.md §4.6); ordinary callers
// only need Result, so GenerateIncidentSuggestions stays the narrow entry
// point and Trace is additive.
type Trace struct {
	Result   Result
	Response llm.Response
	Latency  time.Duration
}

// GenerateIncidentSuggestionsTrace is GenerateIncidentSuggestions plus the
// raw provider response and elapsed latency, for callers that record
// provider-level detail rather than just the normalized result.
func GenerateIncidentSuggestionsTrace(ctx context.Context, client llm.Client, sugCtx AgentSuggestionContext, opts Options) (Trace, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	req := buildRequest(sugCtx, now, opts.Model, opts.ReasoningEffort)
	start := time.Now()
	resp, err := client.Respond(ctx, req)
	if err != nil {
		return Trace{}, err
	}
	elapsed := time.Since(start)

	p := parseFunctionCalls(resp.FunctionCalls)
	result := normalizeSuggestions(sugCtx, p, now)
	return Trace{Result: result, Response: resp, Latency: elapsed}, nil
}

// GenerateIncidentSuggestions is the suggestion engine's public contract: one
// LM call per turn, producing at most three normalized suggestions and at
// most one similar-incidents request.
func GenerateIncidentSuggestions(ctx context.Context, client llm.Client, sugCtx AgentSuggestionContext, opts Options) (Result, error) {
	t, err := GenerateIncidentSuggestionsTrace(ctx, client, sugCtx, opts)
	if err != nil {
		return Result{}, err
	}
	return t.Result, nil
}
