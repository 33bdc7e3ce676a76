package suggestion

import "github.com/opsline-ai/incident-agent/llm"

// Tool names for the suggestion engine's four strict-schema functions.
const (
	toolUpdateStatus        = "update_status"
	toolUpdateSeverity      = "update_severity"
	toolAddStatusPageUpdate = "add_status_page_update"
	toolSimilarIncidents    = "similar_incidents"
)

var toolDescriptions = map[string]string{
	toolUpdateStatus:        "Propose changing the incident's lifecycle status. Only legal next statuses may be proposed.",
	toolUpdateSeverity:      "Propose changing the incident's severity classification.",
	toolAddStatusPageUpdate: "Propose posting a public status-page update for this incident.",
	toolSimilarIncidents:    "Request that the similar-incidents context agent search historical incidents for useful precedent. Not an action on the incident itself.",
}

// toolOrder fixes the order tools are listed in the request, matching the
// table in spec.md §4.2.
var toolOrder = []string{
	toolUpdateStatus,
	toolUpdateSeverity,
	toolAddStatusPageUpdate,
	toolSimilarIncidents,
}

// toolDefinitions returns the four suggestion-engine tool definitions in
// fixed order, each carrying its compiled strict JSON schema.
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
