package contextagent

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/opsline-ai/incident-agent/llm"
)

const (
	toolInvestigateIncident = "investigate_incident"
	toolReportSimilarity    = "report_similarity"
)

var toolSchemaSource = map[string]string{
	toolInvestigateIncident: `{
		"type": "object",
		"properties": {
			"candidateId": {"type": "string", "minLength": 1},
			"reason": {"type": "string", "minLength": 1}
		},
		"required": ["candidateId", "reason"],
		"additionalProperties": false
	}`,
	toolReportSimilarity: `{
		"type": "object",
		"properties": {
			"isSimilar": {"type": "boolean"},
			"similarities": {"type": "string"},
			"learnings": {"type": "string"}
		},
		"required": ["isSimilar", "similarities", "learnings"],
		"additionalProperties": false
	}`,
}

// compiledSchemas holds the compiled form of every tool schema, built once
// at init so a malformed schema fails fast at process start.
var compiledSchemas = compileAll()

func compileAll() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(toolSchemaSource))
	for name, src := range toolSchemaSource {
		schema, err := compileOne(name, src)
		if err != nil {
			panic(fmt.Sprintf("contextagent: compiling schema for %q: %v", name, err))
		}
		out[name] = schema
	}
	return out
}

func compileOne(name, src string) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(resource)
}

func validateArguments(tool string, raw json.RawMessage) error {
	schema, ok := compiledSchemas[tool]
	if !ok {
		return fmt.Errorf("contextagent: unknown tool %q", tool)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return schema.Validate(doc)
}

func schemaBytes(tool string) json.RawMessage {
	return json.RawMessage(toolSchemaSource[tool])
}

// investigateTool is the tool definition offered to the per-iteration
// investigation call. The LM may call it any number of times in one
// response, once per candidate worth a deep-dive.
func investigateTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        toolInvestigateIncident,
		Description: "Name one historical candidate incident worth a deep-dive comparison, with a short reason.",
		Schema:      schemaBytes(toolInvestigateIncident),
		Strict:      true,
	}
}

// reportSimilarityTool forces a deep-dive call to answer with a strict
// {isSimilar, similarities, learnings} shape.
func reportSimilarityTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        toolReportSimilarity,
		Description: "Report whether the candidate incident is usefully similar to the current one.",
		Schema:      schemaBytes(toolReportSimilarity),
		Strict:      true,
	}
}
