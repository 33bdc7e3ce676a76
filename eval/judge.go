package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/llm"
)

const toolGradeTurn = "grade_turn"

const gradeTurnSchemaSource = `{
	"type": "object",
	"properties": {
		"overall": {"type": "string", "enum": ["pass", "fail", "borderline"]},
		"score": {"type": "number", "minimum": 0, "maximum": 1},
		"summary": {"type": "string", "minLength": 1},
		"expectations": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"expectation": {"type": "string", "minLength": 1},
					"result": {"type": "string", "enum": ["met", "not_met", "unclear"]},
					"reason": {"type": "string", "minLength": 1}
				},
				"required": ["expectation", "result", "reason"],
				"additionalProperties": false
			}
		},
		"positives": {"type": "array", "items": {"type": "string"}},
		"issues": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["overall", "score", "summary", "expectations", "positives", "issues"],
	"additionalProperties": false
}`

var gradeTurnSchema = compileGradeTurnSchema()

func compileGradeTurnSchema() *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(gradeTurnSchemaSource), &doc); err != nil {
		panic(fmt.Sprintf("eval: unmarshal grade_turn schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	resource := toolGradeTurn + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		panic(fmt.Sprintf("eval: add grade_turn schema resource: %v", err))
	}
	schema, err := c.Compile(resource)
	if err != nil {
		panic(fmt.Sprintf("eval: compile grade_turn schema: %v", err))
	}
	return schema
}

// JudgeVerdict is one expectation-level grade within a Judgement.
type JudgeVerdict struct {
	Expectation string `json:"expectation"`
	Result      string `json:"result"` // "met" | "not_met" | "unclear"
	Reason      string `json:"reason"`
}

// Judgement is the LM-as-judge grade for one run, matching the grade_turn
// tool's schema.
type Judgement struct {
	Overall      string         `json:"overall"` // "pass" | "fail" | "borderline"
	Score        float64        `json:"score"`
	Summary      string         `json:"summary"`
	Expectations []JudgeVerdict `json:"expectations"`
	Positives    []string       `json:"positives"`
	Issues       []string       `json:"issues"`
}

const judgeSystemPrompt = `You are grading one turn of an incident-suggestion agent against a fixed set of expectations. You will be given the incident's event log up to this turn, the agent's suggestions for this turn, and the literal expectations it must satisfy.

For each expectation, decide whether the agent's suggestions met it, failed to meet it, or leave it unclear. Note any additional positives (good judgment beyond the expectations) and issues (concerning behavior, even if no expectation directly names it).

Call grade_turn exactly once with your full assessment.`

// JudgeTurn asks client to grade one turn's run against its expectations,
// given the turn's rendered event transcript for context.
func JudgeTurn(ctx context.Context, client llm.Client, turn Turn, run RunCapture, model string) (Judgement, error) {
	req := llm.Request{
		Model: model,
		Input: []llm.InputItem{
			{Role: llm.InputSystem, Content: judgeSystemPrompt},
			{Role: llm.InputUser, Content: renderTurnForJudge(turn, run)},
		},
		Tools: []llm.ToolDefinition{
			{
				Name:        toolGradeTurn,
				Description: "Report the grade for this turn.",
				Schema:      json.RawMessage(gradeTurnSchemaSource),
				Strict:      true,
			},
		},
		ToolChoice: llm.ToolChoiceRequired,
	}

	resp, err := client.Respond(ctx, req)
	if err != nil {
		return Judgement{}, err
	}
	for _, call := range resp.FunctionCalls {
		if call.Name != toolGradeTurn {
			continue
		}
		var doc any
		if err := json.Unmarshal(call.Arguments, &doc); err != nil {
			return Judgement{}, fmt.Errorf("eval: unmarshal grade_turn arguments: %w", err)
		}
		if err := gradeTurnSchema.Validate(doc); err != nil {
			return Judgement{}, fmt.Errorf("eval: grade_turn arguments failed validation: %w", err)
		}
		var j Judgement
		if err := json.Unmarshal(call.Arguments, &j); err != nil {
			return Judgement{}, fmt.Errorf("eval: decode grade_turn arguments: %w", err)
		}
		return j, nil
	}
	return Judgement{}, llm.ErrNoToolCall
}

// renderTurnForJudge produces the judge-facing transcript: an incident
// header line, the turn's event log as event.BuildEventMessages renders it,
// the turn's literal expectations (the same strings the artifact records),
// and each of the run's suggestions as "kind: evidence".
func renderTurnForJudge(turn Turn, run RunCapture) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Incident: %s (%s, severity %s)\n", turn.Context.Incident.Title, turn.Context.Incident.Status, turn.Context.Incident.Severity)
	b.WriteString("\nEvent log:\n")
	for _, m := range event.BuildEventMessages(turn.Context.Events, turn.Context.ProcessedThroughID) {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	b.WriteString("\nExpectations:\n")
	for _, exp := range turn.Expectations {
		fmt.Fprintf(&b, "- %s\n", exp.String())
	}
	b.WriteString("\nAgent suggestions this turn:\n")
	if len(run.Suggestions) == 0 {
		b.WriteString("(none)\n")
	}
	for _, s := range run.Suggestions {
		fmt.Fprintf(&b, "- %s: %s\n", s.Kind(), s.Evidence())
	}
	return b.String()
}
