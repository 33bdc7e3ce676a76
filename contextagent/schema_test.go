package contextagent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateArgumentsInvestigateIncident(t *testing.T) {
	err := validateArguments(toolInvestigateIncident, json.RawMessage(`{"candidateId":"inc-9","reason":"same service"}`))
	assert.NoError(t, err)
}

func TestValidateArgumentsInvestigateIncidentMissingReason(t *testing.T) {
	err := validateArguments(toolInvestigateIncident, json.RawMessage(`{"candidateId":"inc-9"}`))
	assert.Error(t, err)
}

func TestValidateArgumentsReportSimilarity(t *testing.T) {
	err := validateArguments(toolReportSimilarity, json.RawMessage(`{"isSimilar":true,"similarities":"a","learnings":"b"}`))
	assert.NoError(t, err)
}

func TestValidateArgumentsReportSimilarityRejectsAdditionalProperties(t *testing.T) {
	err := validateArguments(toolReportSimilarity, json.RawMessage(`{"isSimilar":true,"similarities":"a","learnings":"b","extra":1}`))
	assert.Error(t, err)
}

func TestInvestigateToolIsStrict(t *testing.T) {
	def := investigateTool()
	assert.True(t, def.Strict)
	assert.Equal(t, toolInvestigateIncident, def.Name)
}
