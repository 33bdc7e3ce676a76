package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsline-ai/incident-agent/eval"
	"github.com/opsline-ai/incident-agent/incident"
)

func TestExpectationStringPositive(t *testing.T) {
	e := eval.Expectation{Positive: true, Action: incident.TargetUpdateStatus, Constraint: "mitigating"}
	assert.Equal(t, "Should suggest update_status (mitigating).", e.String())
}

func TestExpectationStringNegativeNoConstraint(t *testing.T) {
	e := eval.Expectation{Positive: false, Action: incident.TargetAddStatusPageUpdate}
	assert.Equal(t, "Should NOT suggest add_status_page_update.", e.String())
}

func TestScenariosCoverSevenSeeds(t *testing.T) {
	scenarios := eval.Scenarios()
	turnCount := 0
	for _, s := range scenarios {
		turnCount += len(s.Turns)
	}
	assert.Len(t, scenarios, 5)
	assert.Equal(t, 9, turnCount, "nine turns covering the seven seeds across five scenario fixtures")
}

func TestRepeatSuppressionStaleTargetScenarioSetsNow(t *testing.T) {
	for _, s := range eval.Scenarios() {
		if s.ID != "repeat-suppression-stale-target" {
			continue
		}
		assert.False(t, s.Turns[0].Now.IsZero(), "stale-target scenario must pin a reference time")
		return
	}
	t.Fatal("repeat-suppression-stale-target scenario not found")
}
