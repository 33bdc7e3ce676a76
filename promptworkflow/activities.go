package promptworkflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsline-ai/incident-agent/contextagent"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/incidentactor"
	"github.com/opsline-ai/incident-agent/llm"
)

// IncidentActor is the Incident Actor's surface as seen by the Prompt
// Workflow. incidentactor.Actor satisfies this directly.
type IncidentActor interface {
	GetAgentContext(ctx context.Context, incidentID string) (incidentactor.AgentContext, error)
	UpdateStatus(ctx context.Context, incidentID string, status incident.Status, message string) error
	SetSeverity(ctx context.Context, incidentID string, severity incident.Severity) error
	UpdateAffection(ctx context.Context, incidentID string, status incident.AffectionStatus, title string, services []incident.ServiceImpact) error
	AddMessage(ctx context.Context, incidentID, message, author string, adapter incident.Adapter) error
}

// Reactor posts/removes a visual acknowledgement on the adapter message
// that triggered a prompt run (Slack's emoji-reaction affordance). Optional:
// a nil Reactor makes AddReactionActivity/RemoveReactionActivity no-ops.
type Reactor interface {
	AddReaction(ctx context.Context, channel, messageTS, emoji string) error
	RemoveReaction(ctx context.Context, channel, messageTS, emoji string) error
}

// ContextAgentRouter is the similar-incidents agent's surface as seen by
// the Prompt Workflow, routed by incident id (contextagent.Registry
// satisfies this).
type ContextAgentRouter interface {
	AddPrompt(ctx context.Context, incidentID string, in contextagent.AddPromptInput) (*contextagent.AddPromptResult, error)
}

const reactionEmoji = "eyes"

// Activities bundles the Prompt Workflow's activity implementations. Each
// exported method is registered with the Temporal worker individually.
type Activities struct {
	Actor        IncidentActor
	ContextAgent ContextAgentRouter
	LLM          llm.Client
	Reactor      Reactor
	Model        string
}

// ContextActivity implements step 1 ("context"): load the agent context
// snapshot the fetch step and the apply-* steps both need.
func (a *Activities) ContextActivity(ctx context.Context, incidentID string) (contextOutput, error) {
	snapshot, err := a.Actor.GetAgentContext(ctx, incidentID)
	if err != nil {
		return contextOutput{}, fmt.Errorf("promptworkflow: context: %w", err)
	}
	return contextOutput{
		Incident:  snapshot.Incident,
		Services:  snapshot.Services,
		Affection: snapshot.Affection,
		Events:    snapshot.Events,
	}, nil
}

// AddReactionActivity implements step 2 ("add-reaction"). A no-op when the
// workflow's adapter is not slack, or no Reactor is configured.
func (a *Activities) AddReactionActivity(ctx context.Context, in PromptInput) error {
	if in.Adapter != incident.AdapterSlack || a.Reactor == nil || in.Channel == "" || in.MessageTS == "" {
		return nil
	}
	return a.Reactor.AddReaction(ctx, in.Channel, in.MessageTS, reactionEmoji)
}

// RemoveReactionActivity implements step 5 ("remove-reaction"), always run.
func (a *Activities) RemoveReactionActivity(ctx context.Context, in PromptInput) error {
	if in.Adapter != incident.AdapterSlack || a.Reactor == nil || in.Channel == "" || in.MessageTS == "" {
		return nil
	}
	return a.Reactor.RemoveReaction(ctx, in.Channel, in.MessageTS, reactionEmoji)
}

// FetchActivity implements step 3 ("fetch"): one LM call against the
// prompt toolset, returning at most one parsed tool call or the model's
// plain-text reply.
func (a *Activities) FetchActivity(ctx context.Context, out contextOutput, question string, requestedAt time.Time) (fetchOutput, error) {
	req := buildFetchRequest(out, question, a.Model, requestedAt)
	resp, err := a.LLM.Respond(ctx, req)
	if err != nil {
		return fetchOutput{}, fmt.Errorf("promptworkflow: fetch: %w", err)
	}

	for _, call := range resp.FunctionCalls {
		if err := validateArguments(call.Name, call.Arguments); err != nil {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			continue
		}
		return fetchOutput{Tool: call.Name, Args: args}, nil
	}
	return fetchOutput{Text: resp.Text}, nil
}

// ApplyStatusActivity implements the "apply-status" branch.
func (a *Activities) ApplyStatusActivity(ctx context.Context, incidentID string, status incident.Status, message string) (string, error) {
	if err := a.Actor.UpdateStatus(ctx, incidentID, status, message); err != nil {
		return "", fmt.Errorf("promptworkflow: apply-status: %w", err)
	}
	return fmt.Sprintf("Status updated to %s: %s", status, message), nil
}

// ApplySeverityActivity implements the "apply-severity" branch.
func (a *Activities) ApplySeverityActivity(ctx context.Context, incidentID string, severity incident.Severity) (string, error) {
	if err := a.Actor.SetSeverity(ctx, incidentID, severity); err != nil {
		return "", fmt.Errorf("promptworkflow: apply-severity: %w", err)
	}
	return fmt.Sprintf("Severity updated to %s", severity), nil
}

// ApplyAffectionInput carries the add_status_page_update tool call's
// arguments through to the Actor.
type ApplyAffectionInput struct {
	IncidentID string
	Status     incident.AffectionStatus
	Title      string
	Services   []incident.ServiceImpact
}

// ApplyAffectionActivity implements the "apply-affection" branch.
func (a *Activities) ApplyAffectionActivity(ctx context.Context, in ApplyAffectionInput) (string, error) {
	if err := a.Actor.UpdateAffection(ctx, in.IncidentID, in.Status, in.Title, in.Services); err != nil {
		return "", fmt.Errorf("promptworkflow: apply-affection: %w", err)
	}
	return "Status page updated: " + in.Title, nil
}

// SimilarActivity implements the "similar" branch: forward the question to
// the similar-incidents agent.
func (a *Activities) SimilarActivity(ctx context.Context, incidentID, question string, requestedAt time.Time) (string, error) {
	result, err := a.ContextAgent.AddPrompt(ctx, incidentID, contextagent.AddPromptInput{
		Question:    question,
		RequestedAt: requestedAt,
	})
	if err != nil {
		return "", fmt.Errorf("promptworkflow: similar: %w", err)
	}
	if result == nil {
		return "The similar-incidents agent has not investigated this incident yet.", nil
	}
	return result.Answer, nil
}

// SimilarRespondActivity implements the "similar-respond" branch: append
// the similar-incidents agent's answer as a message on the incident.
func (a *Activities) SimilarRespondActivity(ctx context.Context, incidentID, answer string) (string, error) {
	if err := a.Actor.AddMessage(ctx, incidentID, answer, "similar-incidents-agent", incident.AdapterDashboard); err != nil {
		return "", fmt.Errorf("promptworkflow: similar-respond: %w", err)
	}
	return answer, nil
}

// RespondActivity implements the "respond" branch: append the LM's plain
// text as a message on the incident.
func (a *Activities) RespondActivity(ctx context.Context, incidentID, text string) (string, error) {
	if err := a.Actor.AddMessage(ctx, incidentID, text, "incident-agent", incident.AdapterDashboard); err != nil {
		return "", fmt.Errorf("promptworkflow: respond: %w", err)
	}
	return text, nil
}
