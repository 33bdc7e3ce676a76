package eval

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/llm"
)

// artifactVersion is the schema version written to every Artifact (spec.md
// §4.6): bump it whenever a field is added or a meaning changes, so stored
// artifacts remain self-describing across harness versions.
const artifactVersion = 3

// Artifact is the complete, serializable record of one evaluation run: every
// scenario replayed, every run's raw capture, the resulting metrics, and an
// optional LM-as-judge pass per run.
type Artifact struct {
	Version     int                `json:"version"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Model       string             `json:"model"`
	JudgeModel  string             `json:"judgeModel,omitempty"`
	Scenarios   []ScenarioArtifact `json:"scenarios"`
	Metrics     Metrics            `json:"metrics"`
}

// ScenarioArtifact is the serialized form of one ScenarioCapture.
type ScenarioArtifact struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Turns       []TurnArtifact  `json:"turns"`
}

// TurnArtifact is the serialized form of one TurnCapture.
type TurnArtifact struct {
	Name         string       `json:"name"`
	Expectations []string     `json:"expectations"`
	Runs         []RunArtifact `json:"runs"`
}

// RunArtifact is the serialized form of one RunCapture, plus its optional
// judge verdict.
type RunArtifact struct {
	RunIndex       int               `json:"runIndex"`
	ResponseID     string            `json:"responseId,omitempty"`
	Suggestions    []json.RawMessage `json:"suggestions"`
	Similar        *SimilarArtifact  `json:"similar,omitempty"`
	Usage          llm.Usage         `json:"usage"`
	LatencyMS      int64             `json:"latencyMs"`
	ExpectationHit []bool            `json:"expectationHit"`
	Error          string            `json:"error,omitempty"`
	Judgement      *Judgement        `json:"judgement,omitempty"`
}

// SimilarArtifact is the serialized form of a SimilarIncidentsRequest.
type SimilarArtifact struct {
	Evidence string `json:"evidence"`
	Reason   string `json:"reason"`
}

// BuildArtifact renders captures and metrics into a serializable Artifact.
// judgements, when non-nil, maps "scenarioID/turnName/runIndex" to its
// Judgement; callers that skip the judge pass (--skip-judge) pass nil.
func BuildArtifact(model, judgeModel string, generatedAt time.Time, captures []ScenarioCapture, metrics Metrics, judgements map[string]Judgement) (Artifact, error) {
	a := Artifact{
		Version:     artifactVersion,
		GeneratedAt: generatedAt,
		Model:       model,
		JudgeModel:  judgeModel,
		Metrics:     metrics,
	}

	for _, sc := range captures {
		sa := ScenarioArtifact{ID: sc.Scenario.ID, Description: sc.Scenario.Description}
		for _, tc := range sc.Turns {
			ta := TurnArtifact{Name: tc.Turn.Name}
			for _, exp := range tc.Turn.Expectations {
				ta.Expectations = append(ta.Expectations, exp.String())
			}
			for _, run := range tc.Runs {
				ra := RunArtifact{
					RunIndex:       run.RunIndex,
					ResponseID:     run.ResponseID,
					Usage:          run.Usage,
					LatencyMS:      run.Latency.Milliseconds(),
					ExpectationHit: run.ExpectationHit,
				}
				if run.Err != nil {
					ra.Error = run.Err.Error()
				}
				for _, s := range run.Suggestions {
					raw, err := event.MarshalNormalized(s)
					if err != nil {
						return Artifact{}, err
					}
					ra.Suggestions = append(ra.Suggestions, raw)
				}
				if run.Similar != nil {
					ra.Similar = &SimilarArtifact{Evidence: run.Similar.Evidence, Reason: run.Similar.Reason}
				}
				if judgements != nil {
					if j, ok := judgements[JudgementKey(sc.Scenario.ID, tc.Turn.Name, run.RunIndex)]; ok {
						jCopy := j
						ra.Judgement = &jCopy
					}
				}
				ta.Runs = append(ta.Runs, ra)
			}
			sa.Turns = append(sa.Turns, ta)
		}
		a.Scenarios = append(a.Scenarios, sa)
	}
	return a, nil
}

// JudgementKey derives the map key BuildArtifact and its callers use to look
// up a run's Judgement in the judgements map passed to BuildArtifact.
func JudgementKey(scenarioID, turnName string, runIndex int) string {
	return scenarioID + "/" + turnName + "/" + strconv.Itoa(runIndex)
}
