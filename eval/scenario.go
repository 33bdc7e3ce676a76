// Package eval implements the evaluation harness: scenario replay against
// the suggestion engine, optional LM-as-judge grading, and deterministic
// metrics computed from the resulting artifact (spec.md §4.6, §8).
package eval

import (
	"fmt"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/suggestion"
)

// Expectation is one literal assertion a scenario turn carries, of the form
// "Should [NOT] suggest <action>[ (<constraints>)]." (spec.md §4.6).
// Scenario fixtures build Expectation as a struct literal; String renders
// the canonical text form stored in the artifact and shown to the judge.
type Expectation struct {
	// Positive is true for "Should suggest", false for "Should NOT suggest".
	Positive bool
	// Action is the suggestion action family this expectation concerns.
	Action incident.TargetKind
	// Constraint is optional free text rendered in parens, e.g.
	// "affectionStatus=investigating".
	Constraint string
}

// String renders the literal expectation text.
func (e Expectation) String() string {
	verb := "Should suggest "
	if !e.Positive {
		verb = "Should NOT suggest "
	}
	s := verb + string(e.Action)
	if e.Constraint != "" {
		s += fmt.Sprintf(" (%s)", e.Constraint)
	}
	return s + "."
}

// Turn is one suggestion-engine invocation within a scenario: a fully-formed
// input context plus the expectations its output must satisfy.
type Turn struct {
	// Name identifies the turn within its scenario, e.g. "turn 1".
	Name string
	// Context is the AgentSuggestionContext fed to the suggestion engine
	// for this turn, unchanged by the harness.
	Context suggestion.AgentSuggestionContext
	// Now is the reference time threaded into suggestion.Options.Now for
	// this turn. Zero means the runner falls back to time.Now(); scenarios
	// that depend on staleness (spec.md §8 seed 6) set this explicitly so
	// they replay deterministically regardless of when the harness runs.
	Now time.Time
	// Expectations are checked against each run's normalized suggestions.
	Expectations []Expectation
}

// Scenario is a closed, ordered sequence of turns against one synthetic
// incident, used to exercise and quantify suggestion-engine behavior.
type Scenario struct {
	ID          string
	Description string
	Turns       []Turn
}
