package contextagent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

// RunStatus is the agent's alarm-loop single-flight state.
type RunStatus string

const (
	RunIdle    RunStatus = "idle"
	RunRunning RunStatus = "running"
)

// Freshness describes how up to date an addPrompt answer is with respect
// to the incident's event log.
type Freshness string

const (
	FreshnessFresh      Freshness = "fresh"
	FreshnessInProgress Freshness = "in_progress"
	FreshnessEmpty      Freshness = "empty"
)

// ErrIncidentIDMismatch is returned when a call to an already-bound Agent
// names a different incident id than the one it bound to on first use.
var ErrIncidentIDMismatch = errors.New("AGENT_INCIDENT_ID_MISMATCH")

const systemStepContent = "You are the similar-incidents investigator for one incident. " +
	"You summarize new events, decide which historical incidents deserve a closer look, and report " +
	"confirmed similarities back into the incident log."

// AddContextInput is one addContext call.
type AddContextInput struct {
	IncidentID  string
	ToEventID   int64
	Events      []incident.AgentEvent
	Trigger     string
	RequestedAt time.Time
}

// AddContextResult is the result of addContext.
type AddContextResult struct {
	Deduped bool
}

// AddPromptInput is one addPrompt call.
type AddPromptInput struct {
	Question    string
	RequestedAt time.Time
}

// AddPromptResult is the result of addPrompt.
type AddPromptResult struct {
	Answer      string
	Freshness   Freshness
	AsOfEventID int64
}

// Options configures an Agent instance.
type Options struct {
	Model    string
	TenantID string
}

// Agent is one incident's similar-incidents context agent: a durable actor
// with its own steps/contexts log, bound to exactly one incident id on
// first use.
type Agent struct {
	mu sync.Mutex

	store  Store
	client llm.Client
	sink   IncidentSink
	source CandidateSource
	opts   Options

	incidentID           string
	lastProcessedEventID int64
	maxQueuedToEventID   int64
	runStatus            RunStatus
	candidatesLoaded     bool
	candidates           []incident.SimilarIncidentCandidate
	promptPending        bool
}

// New returns an unbound Agent. It binds to an incident id on the first
// AddContext call; AddPrompt does not bind and returns nil until then.
func New(store Store, client llm.Client, sink IncidentSink, source CandidateSource, opts Options) *Agent {
	return &Agent{store: store, client: client, sink: sink, source: source, opts: opts, runStatus: RunIdle}
}

// AddContext implements the addContext contract. It is idempotent by
// ToEventID: a call whose ToEventID has already been queued, or for which
// a contexts row already exists, returns Deduped=true without side
// effects.
func (a *Agent) AddContext(ctx context.Context, in AddContextInput) (AddContextResult, error) {
	if err := a.bind(ctx, in.IncidentID, in.RequestedAt); err != nil {
		return AddContextResult{}, err
	}

	a.mu.Lock()
	if in.ToEventID <= a.maxQueuedToEventID {
		a.mu.Unlock()
		return AddContextResult{Deduped: true}, nil
	}
	a.mu.Unlock()

	if _, ok, err := a.store.LoadBatch(ctx, in.IncidentID, in.ToEventID); err != nil {
		return AddContextResult{}, fmt.Errorf("contextagent: load batch: %w", err)
	} else if ok {
		return AddContextResult{Deduped: true}, nil
	}

	steps, err := a.store.ListSteps(ctx, in.IncidentID)
	if err != nil {
		return AddContextResult{}, fmt.Errorf("contextagent: list steps: %w", err)
	}

	batchJSON, err := marshalBatch(in.Events)
	if err != nil {
		return AddContextResult{}, fmt.Errorf("contextagent: marshal batch: %w", err)
	}

	var startID, endID *int64
	summary, sumErr := a.summarize(ctx, steps, batchJSON)
	if sumErr == nil && summary != "" && summary != skipSummary {
		eventID := in.ToEventID
		step, err := a.store.AppendStep(ctx, Step{
			IncidentID:       in.IncidentID,
			Role:             StepRoleUser,
			Content:          summary,
			Source:           SourceContext,
			ContextToEventID: &eventID,
			CreatedAt:        in.RequestedAt,
		})
		if err != nil {
			return AddContextResult{}, fmt.Errorf("contextagent: append context step: %w", err)
		}
		startID, endID = &step.ID, &step.ID
	}
	// Summarization failure is non-fatal: the batch is still recorded
	// below, just without a summary step.

	if err := a.store.RecordBatch(ctx, Batch{
		IncidentID:          in.IncidentID,
		ToEventID:           in.ToEventID,
		Trigger:             in.Trigger,
		RequestedAt:         in.RequestedAt,
		AppendedStepStartID: startID,
		AppendedStepEndID:   endID,
	}); err != nil {
		return AddContextResult{}, fmt.Errorf("contextagent: record batch: %w", err)
	}

	a.mu.Lock()
	if in.ToEventID > a.maxQueuedToEventID {
		a.maxQueuedToEventID = in.ToEventID
	}
	a.mu.Unlock()

	a.triggerProcessing(ctx)
	return AddContextResult{}, nil
}

// AddPrompt implements the addPrompt contract. It returns a nil result
// until the agent is bound to an incident.
func (a *Agent) AddPrompt(ctx context.Context, in AddPromptInput) (*AddPromptResult, error) {
	a.mu.Lock()
	incidentID := a.incidentID
	a.mu.Unlock()
	if incidentID == "" {
		return nil, nil
	}

	steps, err := a.store.ListSteps(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("contextagent: list steps: %w", err)
	}

	answer, err := a.answer(ctx, steps, in.Question)
	if err != nil {
		return nil, fmt.Errorf("contextagent: answer prompt: %w", err)
	}

	if _, err := a.store.AppendStep(ctx, Step{
		IncidentID: incidentID,
		Role:       StepRoleUser,
		Content:    in.Question,
		Source:     SourcePrompt,
		CreatedAt:  in.RequestedAt,
	}); err != nil {
		return nil, fmt.Errorf("contextagent: append prompt question: %w", err)
	}
	if _, err := a.store.AppendStep(ctx, Step{
		IncidentID: incidentID,
		Role:       StepRoleAssistant,
		Content:    answer,
		Source:     SourcePrompt,
		CreatedAt:  in.RequestedAt,
	}); err != nil {
		return nil, fmt.Errorf("contextagent: append prompt answer: %w", err)
	}

	a.mu.Lock()
	a.promptPending = true
	freshness, asOf := a.freshnessLocked()
	a.mu.Unlock()

	a.triggerProcessing(ctx)

	return &AddPromptResult{Answer: answer, Freshness: freshness, AsOfEventID: asOf}, nil
}

// Cleanup discards all local state held by the agent (an admin hook; the
// owning incident's event log is untouched).
func (a *Agent) Cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.incidentID = ""
	a.lastProcessedEventID = 0
	a.maxQueuedToEventID = 0
	a.runStatus = RunIdle
	a.candidatesLoaded = false
	a.candidates = nil
	a.promptPending = false
}

// ExportData returns every step recorded for the bound incident, for
// administrative inspection.
func (a *Agent) ExportData(ctx context.Context) ([]Step, error) {
	a.mu.Lock()
	incidentID := a.incidentID
	a.mu.Unlock()
	if incidentID == "" {
		return nil, nil
	}
	return a.store.ListSteps(ctx, incidentID)
}

func (a *Agent) bind(ctx context.Context, incidentID string, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.incidentID == "" {
		a.incidentID = incidentID
		if _, err := a.store.EnsureSystemStep(ctx, incidentID, systemStepContent, now); err != nil {
			a.incidentID = ""
			return fmt.Errorf("contextagent: ensure system step: %w", err)
		}
		return nil
	}
	if a.incidentID != incidentID {
		return ErrIncidentIDMismatch
	}
	return nil
}

// freshnessLocked must be called with a.mu held.
func (a *Agent) freshnessLocked() (Freshness, int64) {
	if a.runStatus == RunRunning {
		return FreshnessInProgress, a.lastProcessedEventID
	}
	if a.lastProcessedEventID == a.maxQueuedToEventID && a.lastProcessedEventID == 0 {
		return FreshnessEmpty, 0
	}
	return FreshnessFresh, a.lastProcessedEventID
}
