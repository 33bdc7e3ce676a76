package suggestion

import (
	"encoding/json"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

// SimilarIncidentsRequest is the non-action tool call asking the incident
// actor to forward a historical-precedent search to the similar-incidents
// context agent.
type SimilarIncidentsRequest struct {
	Evidence string
	Reason   string
}

// parsed is the raw, not-yet-normalized result of one LM call: candidate
// suggestions in call order, plus at most one similar-incidents request.
type parsed struct {
	suggestions []incident.AgentSuggestion
	similar     *SimilarIncidentsRequest
}

// parseFunctionCalls walks resp.FunctionCalls and coerces each into a tagged
// incident.AgentSuggestion (or the SimilarIncidentsRequest), dropping any
// call that fails schema validation or omits evidence. Parsing never
// returns an error to its caller (spec.md §7): malformed calls are simply
// excluded from the result.
func parseFunctionCalls(calls []llm.FunctionCall) parsed {
	var out parsed
	for _, call := range calls {
		if err := validateArguments(call.Name, call.Arguments); err != nil {
			continue
		}
		switch call.Name {
		case toolUpdateStatus:
			var args struct {
				Evidence string `json:"evidence"`
				Status   string `json:"status"`
				Message  string `json:"message"`
			}
			if json.Unmarshal(call.Arguments, &args) != nil || args.Evidence == "" {
				continue
			}
			out.suggestions = append(out.suggestions, incident.UpdateStatusSuggestion{
				EvidenceText: args.Evidence,
				Status:       incident.Status(args.Status),
				Message:      args.Message,
			})
		case toolUpdateSeverity:
			var args struct {
				Evidence string `json:"evidence"`
				Severity string `json:"severity"`
			}
			if json.Unmarshal(call.Arguments, &args) != nil || args.Evidence == "" {
				continue
			}
			out.suggestions = append(out.suggestions, incident.UpdateSeveritySuggestion{
				EvidenceText: args.Evidence,
				Severity:     incident.Severity(args.Severity),
			})
		case toolAddStatusPageUpdate:
			var args struct {
				Evidence        string                  `json:"evidence"`
				Message         string                  `json:"message"`
				AffectionStatus *string                 `json:"affectionStatus"`
				Title           string                  `json:"title"`
				Services        []incident.ServiceImpact `json:"services"`
			}
			if json.Unmarshal(call.Arguments, &args) != nil || args.Evidence == "" {
				continue
			}
			var status *incident.AffectionStatus
			if args.AffectionStatus != nil {
				s := incident.AffectionStatus(*args.AffectionStatus)
				status = &s
			}
			out.suggestions = append(out.suggestions, incident.AddStatusPageUpdateSuggestion{
				EvidenceText:    args.Evidence,
				Message:         args.Message,
				AffectionStatus: status,
				Title:           args.Title,
				Services:        args.Services,
			})
		case toolSimilarIncidents:
			var args struct {
				Evidence string `json:"evidence"`
				Reason   string `json:"reason"`
			}
			if json.Unmarshal(call.Arguments, &args) != nil || args.Evidence == "" {
				continue
			}
			if out.similar == nil {
				out.similar = &SimilarIncidentsRequest{Evidence: args.Evidence, Reason: args.Reason}
			}
		}
	}
	return out
}
