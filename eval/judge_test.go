package eval_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/eval"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

func TestJudgeTurnParsesValidGradeCall(t *testing.T) {
	stub := &stubClient{resp: llm.Response{
		FunctionCalls: []llm.FunctionCall{
			{Name: "grade_turn", Arguments: json.RawMessage(`{
				"overall": "pass",
				"score": 0.9,
				"summary": "good call",
				"expectations": [{"expectation": "Should suggest update_status (mitigating).", "result": "met", "reason": "proposed mitigating"}],
				"positives": ["cited clear evidence"],
				"issues": []
			}`)},
		},
	}}
	turn := eval.Turn{
		Context: suggestionContext(),
		Expectations: []eval.Expectation{
			{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "mitigating"},
		},
	}
	run := eval.RunCapture{
		Suggestions: []incident.AgentSuggestion{
			incident.UpdateStatusSuggestion{Status: incident.StatusMitigating, EvidenceText: "rollback confirmed"},
		},
	}

	j, err := eval.JudgeTurn(context.Background(), stub, turn, run, "gpt-5")
	require.NoError(t, err)
	assert.Equal(t, "pass", j.Overall)
	assert.Equal(t, 0.9, j.Score)
	require.Len(t, j.Expectations, 1)
	assert.Equal(t, "met", j.Expectations[0].Result)
}

func TestJudgeTurnNoToolCallReturnsError(t *testing.T) {
	stub := &stubClient{resp: llm.Response{}}
	_, err := eval.JudgeTurn(context.Background(), stub, eval.Turn{}, eval.RunCapture{}, "gpt-5")
	assert.ErrorIs(t, err, llm.ErrNoToolCall)
}

func TestJudgeTurnInvalidArgumentsFailValidation(t *testing.T) {
	stub := &stubClient{resp: llm.Response{
		FunctionCalls: []llm.FunctionCall{
			{Name: "grade_turn", Arguments: json.RawMessage(`{"overall": "not-a-valid-enum"}`)},
		},
	}}
	_, err := eval.JudgeTurn(context.Background(), stub, eval.Turn{}, eval.RunCapture{}, "gpt-5")
	assert.Error(t, err)
}
