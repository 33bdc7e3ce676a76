package incidentactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel/codes"

	"github.com/opsline-ai/incident-agent/contextagent"
	"github.com/opsline-ai/incident-agent/event"
	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
	"github.com/opsline-ai/incident-agent/suggestion"
	"github.com/opsline-ai/incident-agent/telemetry"
)

// ContextAgent is the similar-incidents agent's surface as seen by the
// Incident Actor.
type ContextAgent interface {
	AddContext(ctx context.Context, in contextagent.AddContextInput) (contextagent.AddContextResult, error)
}

// ServiceCatalog resolves the service catalog context used to build the
// suggestion engine's services message. An external collaborator (the
// dashboard's own service directory), accessed only through this narrow
// interface.
type ServiceCatalog interface {
	ListServices(ctx context.Context, incidentID string) ([]event.Service, error)
}

// AgentContext is the snapshot returned by GetAgentContext.
type AgentContext struct {
	Incident  incident.Incident
	Services  []event.Service
	Affection incident.AffectionInfo
	Events    []incident.AgentEvent
}

// RecordResult is the result of RecordAgentContextEvent/RecordAgentInsightEvent.
type RecordResult struct {
	EventID   int64
	CreatedAt time.Time
	Deduped   bool
}

// Options configures an Actor.
type Options struct {
	Model           string
	ReasoningEffort llm.ReasoningEffort
	// DebounceDelay is how long ScheduleSuggestionTurn waits after the most
	// recent trigger before actually running a turn.
	DebounceDelay time.Duration
	// RunLockTTL bounds how long a cross-process RunLock may be held.
	RunLockTTL time.Duration
	// Logger, Metrics, and Tracer instrument the actor's operations. Nil
	// fields default to no-op implementations.
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

func (o Options) withDefaults() Options {
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 3 * time.Second
	}
	if o.RunLockTTL <= 0 {
		o.RunLockTTL = 30 * time.Second
	}
	if o.ReasoningEffort == "" {
		o.ReasoningEffort = llm.ReasoningMedium
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = telemetry.NewNoopMetrics()
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.NewNoopTracer()
	}
	return o
}

// Actor is the sole writer of the incident event logs it serves. Its
// per-incident scheduling state is guarded by one mutex and it runs no
// mailbox goroutine; it is not a durable workflow (only the Prompt Workflow
// is Temporal-backed).
type Actor struct {
	mu sync.Mutex

	log          Log
	client       llm.Client
	contextAgent ContextAgent
	services     ServiceCatalog
	lock         RunLock
	opts         Options

	// per-incident debounce/coalescing state
	timers               map[string]*time.Timer
	maxPendingEventID    map[string]int64
	lastSuggestedThrough map[string]int64
	suggestTurnInFlight  map[string]bool
}

// New constructs an Actor. services and lock may be nil (no service
// catalog context, no cross-process lock).
func New(log Log, client llm.Client, contextAgent ContextAgent, services ServiceCatalog, lock RunLock, opts Options) *Actor {
	return &Actor{
		log:                  log,
		client:               client,
		contextAgent:         contextAgent,
		services:             services,
		lock:                 lock,
		opts:                 opts.withDefaults(),
		timers:               make(map[string]*time.Timer),
		maxPendingEventID:    make(map[string]int64),
		lastSuggestedThrough: make(map[string]int64),
		suggestTurnInFlight:  make(map[string]bool),
	}
}

// GetAgentContext returns the snapshot the suggestion pipeline consumes.
func (a *Actor) GetAgentContext(ctx context.Context, incidentID string) (AgentContext, error) {
	inc, err := a.log.LoadIncident(ctx, incidentID)
	if err != nil {
		return AgentContext{}, fmt.Errorf("incidentactor: load incident: %w", err)
	}
	events, err := a.log.ListEvents(ctx, incidentID)
	if err != nil {
		return AgentContext{}, fmt.Errorf("incidentactor: list events: %w", err)
	}
	var services []event.Service
	if a.services != nil {
		services, err = a.services.ListServices(ctx, incidentID)
		if err != nil {
			return AgentContext{}, fmt.Errorf("incidentactor: list services: %w", err)
		}
	}
	return AgentContext{
		Incident:  inc,
		Services:  services,
		Affection: event.DeriveAffectionInfo(events),
		Events:    events,
	}, nil
}

// RecordAgentContextEvent appends a context-agent-originated event with
// insert-or-ignore semantics keyed by dedupeKey.
func (a *Actor) RecordAgentContextEvent(ctx context.Context, incidentID string, typ incident.EventType, data incident.EventData, dedupeKey string) (RecordResult, error) {
	return a.recordDeduped(ctx, incidentID, typ, data, dedupeKey)
}

// RecordAgentInsightEvent appends a similar-incidents insight event
// (SIMILAR_INCIDENTS_DISCOVERED or SIMILAR_INCIDENT) with the same
// insert-or-ignore semantics.
func (a *Actor) RecordAgentInsightEvent(ctx context.Context, incidentID string, typ incident.EventType, data incident.EventData, dedupeKey string) (RecordResult, error) {
	return a.recordDeduped(ctx, incidentID, typ, data, dedupeKey)
}

func (a *Actor) recordDeduped(ctx context.Context, incidentID string, typ incident.EventType, data incident.EventData, dedupeKey string) (RecordResult, error) {
	if dedupeKey != "" {
		if existing, ok, err := a.log.FindEventByDedupeKey(ctx, incidentID, dedupeKey); err != nil {
			return RecordResult{}, fmt.Errorf("incidentactor: find by dedupe key: %w", err)
		} else if ok {
			return RecordResult{EventID: existing.ID, CreatedAt: existing.CreatedAt, Deduped: true}, nil
		}
	}

	e := incident.AgentEvent{Type: typ, Data: data, CreatedAt: time.Now().UTC()}
	if dedupeKey != "" {
		e.Metadata = &incident.EventMetadata{DedupeKey: dedupeKey}
	}
	applied, err := a.appendAndForward(ctx, incidentID, e, forwardOptions{forwardToContextAgent: !isInsightEventType(typ)})
	if err != nil {
		return RecordResult{}, err
	}
	return RecordResult{EventID: applied.ID, CreatedAt: applied.CreatedAt}, nil
}

// UpdateStatus appends the canonical STATUS_UPDATE event, enforcing the
// lifecycle transition graph, and closes the public affection when the
// incident resolves.
func (a *Actor) UpdateStatus(ctx context.Context, incidentID string, status incident.Status, message string) error {
	inc, err := a.log.LoadIncident(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("incidentactor: load incident: %w", err)
	}
	if !incident.CanTransition(inc.Status, status) {
		return incident.ErrInvalidTransition
	}

	if _, err := a.appendAndForward(ctx, incidentID, incident.AgentEvent{
		Type:      incident.EventStatusUpdate,
		Data:      incident.StatusUpdateData{Status: status, Message: message},
		CreatedAt: time.Now().UTC(),
	}, forwardOptions{forwardToContextAgent: true}); err != nil {
		return err
	}

	inc.Status = status
	if err := a.log.SaveIncident(ctx, inc); err != nil {
		return fmt.Errorf("incidentactor: save incident: %w", err)
	}

	if status == incident.StatusResolved {
		events, err := a.log.ListEvents(ctx, incidentID)
		if err == nil {
			affection := event.DeriveAffectionInfo(events)
			if affection.HasAffection && (affection.LastStatus == nil || *affection.LastStatus != incident.AffectionResolved) {
				_, _ = a.appendAndForward(ctx, incidentID, incident.AgentEvent{
					Type:      incident.EventAffectionUpdate,
					Data:      incident.AffectionUpdateData{Status: incident.AffectionResolved},
					CreatedAt: time.Now().UTC(),
				}, forwardOptions{forwardToContextAgent: true})
			}
		}
	}
	return nil
}

// SetSeverity appends the canonical SEVERITY_UPDATE event.
func (a *Actor) SetSeverity(ctx context.Context, incidentID string, severity incident.Severity) error {
	inc, err := a.log.LoadIncident(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("incidentactor: load incident: %w", err)
	}
	if _, err := a.appendAndForward(ctx, incidentID, incident.AgentEvent{
		Type:      incident.EventSeverityUpdate,
		Data:      incident.SeverityUpdateData{Severity: severity},
		CreatedAt: time.Now().UTC(),
	}, forwardOptions{forwardToContextAgent: true}); err != nil {
		return err
	}
	inc.Severity = severity
	return a.log.SaveIncident(ctx, inc)
}

// UpdateAffection appends the canonical AFFECTION_UPDATE event.
func (a *Actor) UpdateAffection(ctx context.Context, incidentID string, status incident.AffectionStatus, title string, services []incident.ServiceImpact) error {
	_, err := a.appendAndForward(ctx, incidentID, incident.AgentEvent{
		Type:      incident.EventAffectionUpdate,
		Data:      incident.AffectionUpdateData{Status: status, Title: title, Services: services},
		CreatedAt: time.Now().UTC(),
	}, forwardOptions{forwardToContextAgent: true})
	return err
}

// AddMessage appends a human- or adapter-originated MESSAGE_ADDED event.
func (a *Actor) AddMessage(ctx context.Context, incidentID, message, author string, adapter incident.Adapter) error {
	_, err := a.appendAndForward(ctx, incidentID, incident.AgentEvent{
		Type:      incident.EventMessageAdded,
		Data:      incident.MessageAddedData{Message: message, Author: author},
		Adapter:   adapter,
		CreatedAt: time.Now().UTC(),
	}, forwardOptions{forwardToContextAgent: true})
	return err
}

type forwardOptions struct {
	forwardToContextAgent bool
}

// appendAndForward appends e, forwards the delta to the context agent
// (unless suppressed), records a CONTEXT_AGENT_TRIGGERED bookkeeping
// event, and schedules a debounced suggestion turn for any non
// suggestion-origin event.
func (a *Actor) appendAndForward(ctx context.Context, incidentID string, e incident.AgentEvent, opts forwardOptions) (incident.AgentEvent, error) {
	applied, err := a.log.AppendEvent(ctx, incidentID, e)
	if err != nil {
		return incident.AgentEvent{}, fmt.Errorf("incidentactor: append event: %w", err)
	}
	a.opts.Metrics.IncCounter("incidentactor.events_appended", 1, "event_type", string(applied.Type))

	if opts.forwardToContextAgent && a.contextAgent != nil {
		trigger := string(applied.Type)
		if _, err := a.contextAgent.AddContext(ctx, contextagent.AddContextInput{
			IncidentID:  incidentID,
			ToEventID:   applied.ID,
			Events:      []incident.AgentEvent{applied},
			Trigger:     trigger,
			RequestedAt: applied.CreatedAt,
		}); err == nil {
			_, _ = a.log.AppendEvent(ctx, incidentID, incident.AgentEvent{
				Type:      incident.EventContextAgentTriggered,
				Data:      incident.ContextAgentTriggeredData{ToEventID: applied.ID, Trigger: trigger},
				CreatedAt: time.Now().UTC(),
			})
		}
	}

	if !applied.IsSuggestion() {
		a.ScheduleSuggestionTurn(incidentID, applied.ID)
	}
	return applied, nil
}

// Snapshot implements contextagent.IncidentSink.
func (a *Actor) Snapshot(ctx context.Context, incidentID string) (contextagent.IncidentSnapshot, error) {
	inc, err := a.log.LoadIncident(ctx, incidentID)
	if err != nil {
		return contextagent.IncidentSnapshot{}, fmt.Errorf("incidentactor: load incident: %w", err)
	}
	events, err := a.log.ListEvents(ctx, incidentID)
	if err != nil {
		return contextagent.IncidentSnapshot{}, fmt.Errorf("incidentactor: list events: %w", err)
	}
	return contextagent.IncidentSnapshot{Incident: inc, Events: events}, nil
}

// RecordInsightEvent implements contextagent.IncidentSink.
func (a *Actor) RecordInsightEvent(ctx context.Context, incidentID string, eventType incident.EventType, data incident.EventData, dedupeKey string) error {
	_, err := a.RecordAgentInsightEvent(ctx, incidentID, eventType, data, dedupeKey)
	return err
}

func isInsightEventType(typ incident.EventType) bool {
	switch typ {
	case incident.EventSimilarIncident, incident.EventSimilarIncidentsDiscovered, incident.EventContextAgentTriggered:
		return true
	default:
		return false
	}
}

// ScheduleSuggestionTurn debounces a suggestion turn for incidentID,
// coalescing late-arriving deltas by keeping the max event id seen. Only
// one timer is ever pending per incident; when it fires, the turn reads the
// incident's full event log, so deltas that arrived while it was pending
// are included.
func (a *Actor) ScheduleSuggestionTurn(incidentID string, eventID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if eventID > a.maxPendingEventID[incidentID] {
		a.maxPendingEventID[incidentID] = eventID
	}
	if _, pending := a.timers[incidentID]; pending {
		return
	}

	a.timers[incidentID] = time.AfterFunc(a.opts.DebounceDelay, func() {
		a.mu.Lock()
		delete(a.timers, incidentID)
		a.mu.Unlock()
		_ = a.RunSuggestionTurn(context.Background(), incidentID)
	})
}

// RunSuggestionTurn runs one suggestion-engine turn for incidentID and
// records surviving suggestions as suggestion-origin messages. Only one
// turn may be in flight per incident.
func (a *Actor) RunSuggestionTurn(ctx context.Context, incidentID string) (err error) {
	a.mu.Lock()
	if a.suggestTurnInFlight[incidentID] {
		a.mu.Unlock()
		return nil
	}
	a.suggestTurnInFlight[incidentID] = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.suggestTurnInFlight, incidentID)
		a.mu.Unlock()
	}()

	ctx, span := a.opts.Tracer.Start(ctx, "incidentactor.run_suggestion_turn")
	start := time.Now()
	defer func() {
		a.opts.Metrics.RecordTimer("incidentactor.suggestion_turn_duration", time.Since(start), "incident_id", incidentID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
			a.opts.Metrics.IncCounter("incidentactor.suggestion_turn_errors", 1, "incident_id", incidentID)
		}
		span.End()
	}()

	if a.lock != nil {
		release, acquired, err := a.lock.TryLock(ctx, incidentID, a.opts.RunLockTTL)
		if err != nil {
			return fmt.Errorf("incidentactor: acquire run lock: %w", err)
		}
		if !acquired {
			return nil
		}
		defer release(ctx)
	}

	snapshot, err := a.GetAgentContext(ctx, incidentID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	processedThroughID := a.lastSuggestedThrough[incidentID]
	a.mu.Unlock()

	sugCtx := suggestion.AgentSuggestionContext{
		Incident:               snapshot.Incident,
		Services:               snapshot.Services,
		Affection:              snapshot.Affection,
		Events:                 snapshot.Events,
		ProcessedThroughID:     processedThroughID,
		ValidStatusTransitions: incident.ValidStatusTransitions(snapshot.Incident.Status),
	}

	result, err := suggestion.GenerateIncidentSuggestions(ctx, a.client, sugCtx, suggestion.Options{
		Model:           a.opts.Model,
		ReasoningEffort: a.opts.ReasoningEffort,
	})
	if err != nil {
		return fmt.Errorf("incidentactor: generate suggestions: %w", err)
	}

	for _, s := range result.Suggestions {
		a.recordSuggestionMessage(ctx, incidentID, s)
	}
	if result.Similar != nil {
		a.recordSimilarIncidentsRequest(ctx, incidentID, *result.Similar)
	}
	a.opts.Logger.Info(ctx, "suggestion turn completed", "incident_id", incidentID, "suggestions", len(result.Suggestions))

	if latest := event.LatestEventIndex(snapshot.Events); latest >= 0 {
		a.mu.Lock()
		a.lastSuggestedThrough[incidentID] = snapshot.Events[latest].ID
		a.mu.Unlock()
	}
	return nil
}

// recordSuggestionMessage appends a suggestion-origin event typed as the
// canonical STATUS_UPDATE/SEVERITY_UPDATE/AFFECTION_UPDATE event its action
// family would produce if applied, tagged with Metadata.Kind="suggestion".
// This is what lets event.DeriveSuggestionTargetState track the proposal as
// pending until a matching non-suggestion event of the same type and value
// is observed (event.DeriveAffectionInfo and the incident's own Status/
// Severity fields are unaffected, since both skip suggestion-origin events).
func (a *Actor) recordSuggestionMessage(ctx context.Context, incidentID string, s incident.AgentSuggestion) {
	e := incident.AgentEvent{
		CreatedAt: time.Now().UTC(),
		Metadata:  &incident.EventMetadata{Kind: "suggestion", AgentSuggestionID: uuid.NewString()},
	}
	switch v := s.(type) {
	case incident.UpdateStatusSuggestion:
		e.Type = incident.EventStatusUpdate
		e.Data = incident.StatusUpdateData{Status: v.Status, Message: v.Message}
	case incident.UpdateSeveritySuggestion:
		e.Type = incident.EventSeverityUpdate
		e.Data = incident.SeverityUpdateData{Severity: v.Severity}
	case incident.AddStatusPageUpdateSuggestion:
		status := incident.AffectionUpdateOnly
		if v.AffectionStatus != nil {
			status = *v.AffectionStatus
		}
		e.Type = incident.EventAffectionUpdate
		e.Data = incident.AffectionUpdateData{Status: status, Title: v.Title, Services: v.Services}
	default:
		return
	}
	_, _ = a.appendAndForward(ctx, incidentID, e, forwardOptions{forwardToContextAgent: true})
}

func (a *Actor) recordSimilarIncidentsRequest(ctx context.Context, incidentID string, req suggestion.SimilarIncidentsRequest) {
	e := incident.AgentEvent{
		Type: incident.EventMessageAdded,
		Data: incident.MessageAddedData{
			Message: fmt.Sprintf("Requesting similar-incidents search: %s", req.Reason),
			Author:  "suggestion-engine",
		},
		CreatedAt: time.Now().UTC(),
		Metadata:  &incident.EventMetadata{Kind: "similar_incidents_request", AgentSuggestionID: uuid.NewString()},
	}
	_, _ = a.appendAndForward(ctx, incidentID, e, forwardOptions{forwardToContextAgent: true})
}

