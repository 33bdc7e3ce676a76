// Package contextagent implements the similar-incidents context agent: a
// per-incident durable actor with its own event-sourced "steps" log. It
// summarizes new incident events, decides which historical candidates to
// investigate, runs deep-dive LM calls, and emits structured insight events
// back into the owning incident's log via an IncidentSink.
package contextagent

import (
	"context"
	"time"
)

// StepRole is the conversational role of one context-agent step.
type StepRole string

const (
	StepRoleSystem       StepRole = "system"
	StepRoleUser         StepRole = "user"
	StepRoleAssistant    StepRole = "assistant"
	StepRoleTool         StepRole = "tool"
	StepRoleFunctionCall StepRole = "function_call"
)

// StepSource identifies which part of the agent produced a step.
type StepSource string

const (
	SourceSystem     StepSource = "system"
	SourceContext    StepSource = "context"
	SourcePrompt     StepSource = "prompt"
	SourceRunner     StepSource = "runner"
	SourceToolResult StepSource = "tool-result"
)

// Step is one entry in a context agent's local step log.
type Step struct {
	ID                int64
	IncidentID        string
	Role              StepRole
	Content           string
	Name              string
	ToolCallID        string
	Source            StepSource
	ContextToEventID  *int64
	RunID             string
	CreatedAt         time.Time
}

// Batch records one addContext call's bookkeeping: the event-log watermark
// it was requested at, and which steps (if any) it appended.
type Batch struct {
	IncidentID           string
	ToEventID            int64
	Trigger              string
	RequestedAt          time.Time
	AppendedStepStartID  *int64
	AppendedStepEndID    *int64
}

// Store persists one context agent's steps and batches. Implementations
// must enforce that at most one Step with Source=system exists per
// incident (spec.md §8), and that at most one Batch exists per
// (incidentID, toEventID) pair (idempotent addContext).
type Store interface {
	// EnsureSystemStep inserts the singleton system step for incidentID if
	// it does not already exist, returning the existing or newly created
	// step.
	EnsureSystemStep(ctx context.Context, incidentID, content string, now time.Time) (Step, error)

	// AppendStep appends one step to incidentID's log and returns it with
	// its assigned ID and CreatedAt.
	AppendStep(ctx context.Context, step Step) (Step, error)

	// ListSteps returns every step recorded for incidentID, in ID order.
	ListSteps(ctx context.Context, incidentID string) ([]Step, error)

	// LoadBatch looks up a previously recorded batch for (incidentID,
	// toEventID). The second return value is false when no such batch
	// exists.
	LoadBatch(ctx context.Context, incidentID string, toEventID int64) (Batch, bool, error)

	// RecordBatch inserts a new batch row. Callers must have already
	// checked LoadBatch to avoid violating the per-(incidentID,toEventID)
	// uniqueness invariant.
	RecordBatch(ctx context.Context, batch Batch) error
}
