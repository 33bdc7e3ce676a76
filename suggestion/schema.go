package suggestion

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// toolSchemaSource holds the raw JSON Schema source for each
// suggestion-engine tool, keyed by tool name. All four require an evidence string citing specific
// events, per spec.md §4.2.
var toolSchemaSource = map[string]string{
	toolUpdateStatus: `{
		"type": "object",
		"properties": {
			"evidence": {"type": "string", "minLength": 1},
			"status": {"type": "string", "enum": ["mitigating", "resolved"]},
			"message": {"type": "string", "minLength": 1}
		},
		"required": ["evidence", "status", "message"],
		"additionalProperties": false
	}`,
	toolUpdateSeverity: `{
		"type": "object",
		"properties": {
			"evidence": {"type": "string", "minLength": 1},
			"severity": {"type": "string", "enum": ["low", "medium", "high"]}
		},
		"required": ["evidence", "severity"],
		"additionalProperties": false
	}`,
	toolAddStatusPageUpdate: `{
		"type": "object",
		"properties": {
			"evidence": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1},
			"affectionStatus": {"type": "string", "enum": ["investigating", "mitigating", "resolved", "update"]},
			"title": {"type": "string"},
			"services": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"impact": {"type": "string", "enum": ["partial", "major"]}
					},
					"required": ["id", "impact"],
					"additionalProperties": false
				}
			}
		},
		"required": ["evidence", "message"],
		"additionalProperties": false
	}`,
	toolSimilarIncidents: `{
		"type": "object",
		"properties": {
			"evidence": {"type": "string", "minLength": 1},
			"reason": {"type": "string", "minLength": 1}
		},
		"required": ["evidence", "reason"],
		"additionalProperties": false
	}`,
}

// compiledSchemas holds the compiled form of every tool schema, built once at
// init so a malformed schema fails fast at process start rather than on the
// first suggestion turn.
var compiledSchemas = compileAll()

func compileAll() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(toolSchemaSource))
	for name, src := range toolSchemaSource {
		schema, err := compileOne(name, src)
		if err != nil {
			panic(fmt.Sprintf("suggestion: compiling schema for %q: %v", name, err))
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

// validateArguments validates raw function-call arguments against the named
// tool's compiled schema.
func validateArguments(tool string, raw json.RawMessage) error {
	schema, ok := compiledSchemas[tool]
	if !ok {
		return fmt.Errorf("suggestion: unknown tool %q", tool)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	return schema.Validate(doc)
}

// schemaBytes returns the raw JSON Schema for tool, used to populate
// llm.ToolDefinition.Schema.
func schemaBytes(tool string) json.RawMessage {
	return json.RawMessage(toolSchemaSource[tool])
}
