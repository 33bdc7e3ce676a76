package promptworkflow

import (
	"fmt"
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

const systemPrompt = `You are handling one direct human instruction about an incident.

If the instruction explicitly asks you to change the incident's status, severity, or post a
status-page update, call exactly one of update_status, update_severity, or
add_status_page_update with the requested change.

If the instruction asks a question that historical incidents might answer (e.g. "has this
happened before", "what fixed it last time"), call prompt_similar_incidents instead.

Otherwise, do not call any tool: reply in plain text.

Call at most one tool.`

// buildFetchRequest assembles the fixed-order fetch-step LM request: system
// prompt -> services context -> event messages -> status-page context ->
// incident-state context -> the literal question.
func buildFetchRequest(out contextOutput, question string, model string, now time.Time) llm.Request {
	input := []llm.InputItem{{Role: llm.InputSystem, Content: systemPrompt}}
	input = append(input, toInput(event.BuildContextUserMessage(out.Services)))

	for _, m := range event.BuildEventMessages(out.Events, 0) {
		input = append(input, toInput(m))
	}

	input = append(input, toInput(event.BuildStatusPageContextMessage(out.Affection, now)))
	input = append(input, toInput(event.BuildIncidentStateMessage(out.Incident, incident.ValidStatusTransitions(out.Incident.Status))))
	input = append(input, llm.InputItem{Role: llm.InputUser, Content: question})

	return llm.Request{
		Model:          model,
		Input:          input,
		Tools:          toolDefinitions(),
		ToolChoice:     llm.ToolChoiceAuto,
		PromptCacheKey: promptCacheKey(out.Incident.ID),
	}
}

func toInput(m event.Message) llm.InputItem {
	role := llm.InputUser
	if m.Role == event.RoleAssistant {
		role = llm.InputAssistant
	}
	return llm.InputItem{Role: role, Content: m.Content}
}

func promptCacheKey(incidentID string) string {
	if len(incidentID) <= 12 {
		return fmt.Sprintf("pw:v1:%s:%s", incidentID, incidentID)
	}
	return fmt.Sprintf("pw:v1:%s:%s", incidentID[:12], incidentID[len(incidentID)-8:])
}
