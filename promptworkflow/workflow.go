// Package promptworkflow implements the Prompt Workflow: a step-checkpointed
// Temporal pipeline that converts one human prompt into exactly one
// observable effect on an incident (spec.md §4.5).
package promptworkflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/opsline-ai/incident-agent/incident"
)

// stepRetryPolicy bounds every step to 3 attempts with ~1-3s geometric
// backoff, per spec.md §4.5.
var stepRetryPolicy = &temporal.RetryPolicy{
	InitialInterval:    time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    3 * time.Second,
	MaximumAttempts:    3,
}

var stepActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Second,
	RetryPolicy:         stepRetryPolicy,
}

// Workflow is the Prompt Workflow's entry point.
func Workflow(ctx workflow.Context, in PromptInput) (PromptResult, error) {
	ctx = workflow.WithActivityOptions(ctx, stepActivityOptions)
	var a *Activities

	var out contextOutput
	if err := workflow.ExecuteActivity(ctx, a.ContextActivity, in.IncidentID).Get(ctx, &out); err != nil {
		return PromptResult{}, fmt.Errorf("promptworkflow: context step: %w", err)
	}

	if in.Adapter == incident.AdapterSlack {
		if err := workflow.ExecuteActivity(ctx, a.AddReactionActivity, in).Get(ctx, nil); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: add-reaction step: %w", err)
		}
	}

	result, fetchErr := runFetchAndApply(ctx, a, in, out)

	// remove-reaction always runs, finally-equivalent to add-reaction,
	// regardless of whether the apply branch succeeded.
	if in.Adapter == incident.AdapterSlack {
		_ = workflow.ExecuteActivity(ctx, a.RemoveReactionActivity, in).Get(ctx, nil)
	}

	if fetchErr != nil {
		return PromptResult{}, fetchErr
	}
	return result, nil
}

func runFetchAndApply(ctx workflow.Context, a *Activities, in PromptInput, out contextOutput) (PromptResult, error) {
	var fetched fetchOutput
	if err := workflow.ExecuteActivity(ctx, a.FetchActivity, out, in.Question, in.RequestedAt).Get(ctx, &fetched); err != nil {
		return PromptResult{}, fmt.Errorf("promptworkflow: fetch step: %w", err)
	}

	switch fetched.Tool {
	case toolUpdateStatus:
		status, _ := fetched.Args["status"].(string)
		message, _ := fetched.Args["message"].(string)
		var msg string
		if err := workflow.ExecuteActivity(ctx, a.ApplyStatusActivity, in.IncidentID, incident.Status(status), message).Get(ctx, &msg); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: apply-status step: %w", err)
		}
		return PromptResult{Effect: EffectStatus, Message: msg}, nil

	case toolUpdateSeverity:
		severity, _ := fetched.Args["severity"].(string)
		var msg string
		if err := workflow.ExecuteActivity(ctx, a.ApplySeverityActivity, in.IncidentID, incident.Severity(severity)).Get(ctx, &msg); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: apply-severity step: %w", err)
		}
		return PromptResult{Effect: EffectSeverity, Message: msg}, nil

	case toolAddStatusPageUpdate:
		applyIn := ApplyAffectionInput{IncidentID: in.IncidentID, Title: titleArg(fetched.Args)}
		if status, ok := fetched.Args["affectionStatus"].(string); ok {
			applyIn.Status = incident.AffectionStatus(status)
		}
		applyIn.Services = servicesArg(fetched.Args)
		var msg string
		if err := workflow.ExecuteActivity(ctx, a.ApplyAffectionActivity, applyIn).Get(ctx, &msg); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: apply-affection step: %w", err)
		}
		return PromptResult{Effect: EffectAffection, Message: msg}, nil

	case toolPromptSimilarIncidents:
		question, _ := fetched.Args["question"].(string)
		if question == "" {
			question = in.Question
		}
		var answer string
		if err := workflow.ExecuteActivity(ctx, a.SimilarActivity, in.IncidentID, question, in.RequestedAt).Get(ctx, &answer); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: similar step: %w", err)
		}
		var msg string
		if err := workflow.ExecuteActivity(ctx, a.SimilarRespondActivity, in.IncidentID, answer).Get(ctx, &msg); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: similar-respond step: %w", err)
		}
		return PromptResult{Effect: EffectSimilar, Message: msg}, nil

	default:
		var msg string
		if err := workflow.ExecuteActivity(ctx, a.RespondActivity, in.IncidentID, fetched.Text).Get(ctx, &msg); err != nil {
			return PromptResult{}, fmt.Errorf("promptworkflow: respond step: %w", err)
		}
		return PromptResult{Effect: EffectReply, Message: msg}, nil
	}
}

func titleArg(args map[string]any) string {
	if v, ok := args["title"].(string); ok {
		return v
	}
	return ""
}

func servicesArg(args map[string]any) []incident.ServiceImpact {
	raw, ok := args["services"].([]any)
	if !ok {
		return nil
	}
	out := make([]incident.ServiceImpact, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		impact, _ := m["impact"].(string)
		if id == "" {
			continue
		}
		out = append(out, incident.ServiceImpact{ID: id, Impact: impact})
	}
	return out
}
