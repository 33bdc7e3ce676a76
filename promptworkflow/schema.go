package promptworkflow

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/opsline-ai/incident-agent/llm"
)

// Tool names for the prompt toolset (spec.md §4.5 step 3). Distinct from
// the suggestion engine's identically-named tools: these are driven by an
// explicit human instruction rather than inferred from event evidence, so
// their schemas omit the evidence field.
const (
	toolUpdateStatus           = "update_status"
	toolUpdateSeverity         = "update_severity"
	toolPromptSimilarIncidents = "prompt_similar_incidents"
	toolAddStatusPageUpdate    = "add_status_page_update"
)

var toolDescriptions = map[string]string{
	toolUpdateStatus:           "Change the incident's lifecycle status, as explicitly instructed.",
	toolUpdateSeverity:         "Change the incident's severity classification, as explicitly instructed.",
	toolPromptSimilarIncidents: "Forward the human's question to the similar-incidents agent instead of answering directly.",
	toolAddStatusPageUpdate:    "Post a public status-page update, as explicitly instructed.",
}

var toolOrder = []string{
	toolUpdateStatus,
	toolUpdateSeverity,
	toolPromptSimilarIncidents,
	toolAddStatusPageUpdate,
}

var toolSchemaSource = map[string]string{
	toolUpdateStatus: `{
		"type": "object",
		"properties": {
			"status": {"type": "string", "enum": ["mitigating", "resolved", "declined"]},
			"message": {"type": "string", "minLength": 1}
		},
		"required": ["status", "message"],
		"additionalProperties": false
	}`,
	toolUpdateSeverity: `{
		"type": "object",
		"properties": {
			"severity": {"type": "string", "enum": ["low", "medium", "high"]}
		},
		"required": ["severity"],
		"additionalProperties": false
	}`,
	toolPromptSimilarIncidents: `{
		"type": "object",
		"properties": {
			"question": {"type": "string", "minLength": 1}
		},
		"required": ["question"],
		"additionalProperties": false
	}`,
	toolAddStatusPageUpdate: `{
		"type": "object",
		"properties": {
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
		"required": ["message"],
		"additionalProperties": false
	}`,
}

var compiledSchemas = compileAll()

func compileAll() map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(toolSchemaSource))
	for name, src := range toolSchemaSource {
		schema, err := compileOne(name, src)
		if err != nil {
			panic(fmt.Sprintf("promptworkflow: compiling schema for %q: %v", name, err))
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
		return fmt.Errorf("promptworkflow: unknown tool %q", tool)
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

// toolDefinitions returns the prompt toolset in fixed order, each carrying
// its compiled strict JSON schema.
func toolDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(toolOrder))
	for _, name := range toolOrder {
		defs = append(defs, llm.ToolDefinition{
			Name:        name,
			Description: toolDescriptions[name],
			Schema:      schemaBytes(name),
			Strict:      true,
		})
	}
	return defs
}
