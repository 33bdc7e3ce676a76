package contextagent

import (
	"fmt"
	"strings"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

// skipSummary is the literal token the summarization call returns when an
// event batch is not worth a user-visible step.
const skipSummary = "SKIP"

const summarizationSystemPrompt = `You maintain a compact, user-visible history of one incident for later ` +
	`lookup by other investigations. Given a batch of new raw events, either return a single short ` +
	`sentence summarizing what changed, or return exactly the literal text SKIP if the batch is not ` +
	`worth recording (e.g. a routine status-page echo with nothing new). Never fabricate detail not ` +
	`present in the events.`

const investigateSystemPrompt = `You are deciding which historical incidents are worth a closer look for ` +
	`the incident described in the step history below. Call investigate_incident once per candidate ` +
	`worth investigating, naming its id and a short reason. Call it zero times if nothing looks relevant.`

const deepDiveSystemPrompt = `Compare the candidate historical incident against the current incident. ` +
	`Call report_similarity exactly once with your verdict. Only set isSimilar true when the overlap is ` +
	`specific (same service, same failure mode, same root cause family) rather than superficial.`

const answerSystemPrompt = `Answer the question using only facts present in the step history below. Do ` +
	`not speculate beyond what the events and prior steps establish. If the history does not contain ` +
	`the answer, say so plainly.`

func stepsToInput(steps []Step) []llm.InputItem {
	out := make([]llm.InputItem, 0, len(steps))
	for _, step := range steps {
		out = append(out, llm.InputItem{Role: stepRoleToInputRole(step.Role), Content: step.Content})
	}
	return out
}

func stepRoleToInputRole(role StepRole) llm.InputRole {
	switch role {
	case StepRoleSystem:
		return llm.InputSystem
	case StepRoleUser:
		return llm.InputUser
	default:
		return llm.InputAssistant
	}
}

// buildSummarizationRequest renders the dedicated summarization call for
// one addContext batch.
func buildSummarizationRequest(steps []Step, batchJSON string, model string) llm.Request {
	input := make([]llm.InputItem, 0, len(steps)+2)
	input = append(input, llm.InputItem{Role: llm.InputSystem, Content: summarizationSystemPrompt})
	input = append(input, stepsToInput(steps)...)
	input = append(input, llm.InputItem{Role: llm.InputUser, Content: batchJSON})

	return llm.Request{
		Model:           model,
		Input:           input,
		ReasoningEffort: llm.ReasoningLow,
		Verbosity:       llm.VerbosityLow,
	}
}

// buildInvestigateRequest renders the per-iteration investigation call.
func buildInvestigateRequest(steps []Step, candidates []incident.SimilarIncidentCandidate, model string) llm.Request {
	input := make([]llm.InputItem, 0, len(steps)+2)
	input = append(input, llm.InputItem{Role: llm.InputSystem, Content: investigateSystemPrompt})
	input = append(input, stepsToInput(steps)...)
	input = append(input, llm.InputItem{Role: llm.InputUser, Content: renderCandidateList(candidates)})

	return llm.Request{
		Model:           model,
		Input:           input,
		Tools:           []llm.ToolDefinition{investigateTool()},
		ToolChoice:      llm.ToolChoiceAuto,
		ReasoningEffort: llm.ReasoningMedium,
		Verbosity:       llm.VerbosityLow,
	}
}

func renderCandidateList(candidates []incident.SimilarIncidentCandidate) string {
	var b strings.Builder
	b.WriteString("Candidates:\n")
	for _, c := range candidates {
		status := string(c.Status)
		if c.Completed {
			status = "completed:" + string(c.TerminalStatus)
		}
		fmt.Fprintf(&b, "- %s (%s, severity=%s): %s\n", c.ID, status, c.Severity, c.Title)
	}
	return b.String()
}

// buildDeepDiveRequest renders one candidate's strict-schema similarity
// comparison call.
func buildDeepDiveRequest(currentSummary string, candidate incident.SimilarIncidentCandidate, model string) llm.Request {
	input := []llm.InputItem{
		{Role: llm.InputSystem, Content: deepDiveSystemPrompt},
		{Role: llm.InputUser, Content: "Current incident:\n" + currentSummary},
		{Role: llm.InputUser, Content: "Candidate incident:\n" + renderCandidateList([]incident.SimilarIncidentCandidate{candidate})},
	}

	return llm.Request{
		Model:           model,
		Input:           input,
		Tools:           []llm.ToolDefinition{reportSimilarityTool()},
		ToolChoice:      llm.ToolChoiceRequired,
		ReasoningEffort: llm.ReasoningMedium,
		Verbosity:       llm.VerbosityLow,
	}
}

// buildAnswerRequest renders the constrained addPrompt answer call.
func buildAnswerRequest(steps []Step, question string, model string) llm.Request {
	input := make([]llm.InputItem, 0, len(steps)+2)
	input = append(input, llm.InputItem{Role: llm.InputSystem, Content: answerSystemPrompt})
	input = append(input, stepsToInput(steps)...)
	input = append(input, llm.InputItem{Role: llm.InputUser, Content: question})

	return llm.Request{
		Model:           model,
		Input:           input,
		ReasoningEffort: llm.ReasoningMedium,
		Verbosity:       llm.VerbosityMedium,
	}
}
