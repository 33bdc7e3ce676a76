package suggestion

import (
	"fmt"
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

// AgentSuggestionContext is the input to one suggestion-engine turn: a
// snapshot of everything the LM needs to propose this turn's suggestions.
type AgentSuggestionContext struct {
	Incident               incident.Incident
	Services               []event.Service
	Affection              incident.AffectionInfo
	Events                 []incident.AgentEvent
	ProcessedThroughID     int64
	ValidStatusTransitions []incident.Status
	// Prompt is set when this turn was triggered by a direct human question
	// rather than new incident events; nil for ordinary event-driven turns.
	Prompt *string
}

const systemPrompt = `You are the suggestion engine for an incident operations system. Given an incident's event log, you may propose at most three actions using the available tools, plus at most one similar_incidents request.

Rules you MUST follow:
1. Never propose a status transition outside the valid next statuses listed in the incident state message.
2. Never re-propose an action/target pair that is already pending, unless decisive new evidence appears after the turn boundary, or the pending suggestion is stale (more than 10 minutes old and more than 20 events old).
3. The first status-page update for an incident with no existing public record must include affectionStatus=investigating, a title, and at least one impacted service.
4. Only propose status=resolved when a remediation action has completed AND a human has given an explicit all-clear; any in-progress signal blocks it.
5. Cite the specific events backing each proposal in the evidence field. Do not propose anything without clear evidence.

If nothing warrants a new proposal, call no tools.`

const suggestionSentinel = "Return suggestions."

// buildRequest assembles the fixed-order LM request for one suggestion turn.
// Order is: system prompt -> services context -> event messages -> status
// page context -> suggestion-state context -> incident-state context ->
// the direct human prompt (only when ctx.Prompt is set) -> literal sentinel
// user message. This order, and the prompt_cache_key
// derivation, are deliberately stable for prompt-cache reuse (spec.md §4.2).
func buildRequest(ctx AgentSuggestionContext, now time.Time, model string, effort llm.ReasoningEffort) llm.Request {
	targetState := event.DeriveSuggestionTargetState(ctx.Events)

	items := []llm.InputItem{
		{Role: llm.InputSystem, Content: systemPrompt},
		toInput(event.BuildContextUserMessage(ctx.Services)),
	}
	for _, m := range event.BuildEventMessages(ctx.Events, ctx.ProcessedThroughID) {
		items = append(items, toInput(m))
	}
	items = append(items,
		toInput(event.BuildStatusPageContextMessage(ctx.Affection, now)),
		toInput(event.BuildSuggestionStateContextMessage(targetState)),
		toInput(event.BuildIncidentStateMessage(ctx.Incident, ctx.ValidStatusTransitions)),
	)
	if ctx.Prompt != nil && *ctx.Prompt != "" {
		items = append(items, llm.InputItem{Role: llm.InputUser, Content: *ctx.Prompt})
	}
	items = append(items, llm.InputItem{Role: llm.InputUser, Content: suggestionSentinel})

	return llm.Request{
		Model:           model,
		Input:           items,
		Tools:           toolDefinitions(),
		ToolChoice:      llm.ToolChoiceAuto,
		PromptCacheKey:  promptCacheKey(ctx.Incident.ID),
		ReasoningEffort: effort,
		Verbosity:       llm.VerbosityLow,
	}
}

func toInput(m event.Message) llm.InputItem {
	role := llm.InputUser
	if m.Role == event.RoleAssistant {
		role = llm.InputAssistant
	}
	return llm.InputItem{Role: role, Content: m.Content}
}

// promptCacheKey derives a stable cache key from the incident id, matching
// the "is:v1:<incidentId[:12]>:<incidentId[-8:]>" scheme in spec.md §4.2.
func promptCacheKey(incidentID string) string {
	head := incidentID
	if len(head) > 12 {
		head = head[:12]
	}
	tail := incidentID
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return fmt.Sprintf("is:v1:%s:%s", head, tail)
}
