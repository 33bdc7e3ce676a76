package eval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
	"github.com/opsline-ai/incident-agent/suggestion"
)

// RunCapture records one suggestion-engine invocation against a Turn.
type RunCapture struct {
	RunIndex       int
	Suggestions    []incident.AgentSuggestion
	Similar        *suggestion.SimilarIncidentsRequest
	ResponseID     string
	Usage          llm.Usage
	Latency        time.Duration
	RawToolCalls   []llm.FunctionCall
	ExpectationHit []bool // parallel to Turn.Expectations; true if met
	Err            error
}

// TurnCapture bundles every run of one Turn.
type TurnCapture struct {
	Turn Turn
	Runs []RunCapture
}

// ScenarioCapture bundles every turn of one Scenario.
type ScenarioCapture struct {
	Scenario Scenario
	Turns    []TurnCapture
}

// RunnerOptions configures a replay.
type RunnerOptions struct {
	Model           string
	ReasoningEffort llm.ReasoningEffort
	Runs            int // invocations per turn; defaults to 1
}

// RunScenario replays every turn of s against client, Runs times per turn,
// and evaluates each run's suggestions against the turn's expectations.
func RunScenario(ctx context.Context, client llm.Client, s Scenario, opts RunnerOptions) (ScenarioCapture, error) {
	runs := opts.Runs
	if runs <= 0 {
		runs = 1
	}

	result := ScenarioCapture{Scenario: s}
	for _, turn := range s.Turns {
		tc := TurnCapture{Turn: turn}
		now := turn.Now
		if now.IsZero() {
			now = time.Now()
		}
		for i := 0; i < runs; i++ {
			trace, err := suggestion.GenerateIncidentSuggestionsTrace(ctx, client, turn.Context, suggestion.Options{
				Model:           opts.Model,
				ReasoningEffort: opts.ReasoningEffort,
				Now:             now,
			})
			if err != nil {
				tc.Runs = append(tc.Runs, RunCapture{RunIndex: i, Err: err})
				continue
			}
			rc := RunCapture{
				RunIndex:     i,
				Suggestions:  trace.Result.Suggestions,
				Similar:      trace.Result.Similar,
				ResponseID:   trace.Response.ResponseID,
				Usage:        trace.Response.Usage,
				Latency:      trace.Latency,
				RawToolCalls: trace.Response.FunctionCalls,
			}
			rc.ExpectationHit = evaluateExpectations(turn.Expectations, rc.Suggestions)
			tc.Runs = append(tc.Runs, rc)
		}
		result.Turns = append(result.Turns, tc)
	}
	return result, nil
}

// RunAll replays every scenario in scenarios in order.
func RunAll(ctx context.Context, client llm.Client, scenarios []Scenario, opts RunnerOptions) ([]ScenarioCapture, error) {
	out := make([]ScenarioCapture, 0, len(scenarios))
	for _, s := range scenarios {
		c, err := RunScenario(ctx, client, s, opts)
		if err != nil {
			return out, fmt.Errorf("scenario %s: %w", s.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// evaluateExpectations reports, for each expectation, whether suggestions
// satisfies it. A suggestion matches when its kind is Action and, if
// Constraint is set, its incident.TargetValue equals Constraint's first word
// with any "affectionStatus=" prefix removed. A positive expectation is met
// when some suggestion matches; a negative expectation is met when none does.
func evaluateExpectations(expectations []Expectation, suggestions []incident.AgentSuggestion) []bool {
	hits := make([]bool, len(expectations))
	for i, exp := range expectations {
		found := false
		for _, s := range suggestions {
			if s.Kind() != exp.Action {
				continue
			}
			if f := strings.Fields(exp.Constraint); len(f) > 0 {
				if incident.TargetValue(s) != strings.TrimPrefix(f[0], "affectionStatus=") {
					continue
				}
			}
			found = true
			break
		}
		if exp.Positive {
			hits[i] = found
		} else {
			hits[i] = !found
		}
	}
	return hits
}

// duplicateSignature returns the dedupe signature
// "action:target[:services-sorted]" for one suggestion, used by the
// duplicate-suggestion-rate metric.
func duplicateSignature(s incident.AgentSuggestion) string {
	sig := string(s.Kind()) + ":" + incident.TargetValue(s)
	v, ok := s.(incident.AddStatusPageUpdateSuggestion)
	if !ok || len(v.Services) == 0 {
		return sig
	}
	ids := make([]string, 0, len(v.Services))
	for _, svc := range v.Services {
		ids = append(ids, svc.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sig += ":" + id
	}
	return sig
}
