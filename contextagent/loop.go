package contextagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/opsline-ai/incident-agent/incident"
	"github.com/opsline-ai/incident-agent/llm"
)

const deepDiveConcurrency = 4

// summarize runs the dedicated summarization call for one batch of new
// events and returns the user-visible step text, or skipSummary.
func (a *Agent) summarize(ctx context.Context, steps []Step, batchJSON string) (string, error) {
	req := buildSummarizationRequest(steps, batchJSON, a.opts.Model)
	resp, err := a.client.Respond(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// answer runs the constrained addPrompt answer call.
func (a *Agent) answer(ctx context.Context, steps []Step, question string) (string, error) {
	req := buildAnswerRequest(steps, question, a.opts.Model)
	resp, err := a.client.Respond(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// triggerProcessing runs processPendingContexts if no run is already in
// flight; otherwise it is a no-op, since the in-flight run re-reads the
// cursor and promptPending flag before it finishes.
func (a *Agent) triggerProcessing(ctx context.Context) {
	a.mu.Lock()
	if a.runStatus == RunRunning {
		a.mu.Unlock()
		return
	}
	a.runStatus = RunRunning
	a.mu.Unlock()

	a.processPendingContexts(ctx)

	a.mu.Lock()
	a.runStatus = RunIdle
	a.mu.Unlock()
}

// processPendingContexts is the alarm loop: ensure candidates are loaded,
// then run one iteration per unprocessed toEventId, then one extra
// iteration if a prompt is pending.
func (a *Agent) processPendingContexts(ctx context.Context) {
	if err := a.ensureCandidatesLoaded(ctx); err != nil {
		// Candidate-load failures abort only this attempt; a later
		// trigger will retry.
		return
	}

	for {
		a.mu.Lock()
		toEventID := a.maxQueuedToEventID
		last := a.lastProcessedEventID
		incidentID := a.incidentID
		a.mu.Unlock()
		if last >= toEventID {
			break
		}

		_ = a.runIteration(ctx, incidentID, toEventID)

		a.mu.Lock()
		a.lastProcessedEventID = toEventID
		a.mu.Unlock()
	}

	a.mu.Lock()
	pending := a.promptPending
	toEventID := a.maxQueuedToEventID
	incidentID := a.incidentID
	if pending {
		a.promptPending = false
	}
	a.mu.Unlock()
	if pending {
		_ = a.runIteration(ctx, incidentID, toEventID)
	}
}

func (a *Agent) ensureCandidatesLoaded(ctx context.Context) error {
	a.mu.Lock()
	if a.candidatesLoaded {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	candidates, err := loadCandidates(ctx, a.source, a.opts.TenantID, time.Now().UTC())
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.candidates = candidates
	a.candidatesLoaded = true
	a.mu.Unlock()
	return nil
}

// runIteration performs one pass of the step 1-5 sequence described for a
// single alarm iteration.
func (a *Agent) runIteration(ctx context.Context, incidentID string, toEventID int64) error {
	steps, err := a.store.ListSteps(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("contextagent: list steps: %w", err)
	}

	a.mu.Lock()
	candidates := append([]incident.SimilarIncidentCandidate(nil), a.candidates...)
	a.mu.Unlock()

	req := buildInvestigateRequest(steps, candidates, a.opts.Model)
	resp, err := a.client.Respond(ctx, req)
	if err != nil {
		return fmt.Errorf("contextagent: investigate call: %w", err)
	}

	if text := strings.TrimSpace(resp.Text); text != "" {
		if _, err := a.store.AppendStep(ctx, Step{
			IncidentID: incidentID,
			Role:       StepRoleAssistant,
			Content:    text,
			Source:     SourceRunner,
		}); err != nil {
			return fmt.Errorf("contextagent: append runner step: %w", err)
		}
	}

	if len(resp.FunctionCalls) == 0 {
		return nil
	}

	runID := uuid.NewString()
	selected := make([]string, 0, len(resp.FunctionCalls))
	type invocation struct {
		candidateID string
		candidate   incident.SimilarIncidentCandidate
		found       bool
	}
	invocations := make([]invocation, 0, len(resp.FunctionCalls))

	for _, call := range resp.FunctionCalls {
		if call.Name != toolInvestigateIncident {
			continue
		}
		if err := validateArguments(toolInvestigateIncident, call.Arguments); err != nil {
			continue
		}
		var args struct {
			CandidateID string `json:"candidateId"`
			Reason      string `json:"reason"`
		}
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			continue
		}
		if _, err := a.store.AppendStep(ctx, Step{
			IncidentID: incidentID,
			Role:       StepRoleFunctionCall,
			Content:    string(call.Arguments),
			Name:       toolInvestigateIncident,
			ToolCallID: call.CallID,
			Source:     SourceRunner,
			RunID:      runID,
		}); err != nil {
			continue
		}
		candidate, found := findCandidate(candidates, args.CandidateID)
		invocations = append(invocations, invocation{candidateID: args.CandidateID, candidate: candidate, found: found})
		selected = append(selected, args.CandidateID)
	}

	if len(selected) > 0 {
		openCount, closedCount := countCandidatePools(candidates)
		if err := a.sink.RecordInsightEvent(ctx, incidentID, incident.EventSimilarIncidentsDiscovered,
			incident.SimilarIncidentsDiscoveredData{
				RunID:                runID,
				SearchedAt:           time.Now().UTC(),
				ContextSnapshot:      renderContextSnapshot(steps, candidates),
				GateDecision:         renderGateDecision(len(selected), candidates, openCount, closedCount),
				OpenCandidateCount:   openCount,
				ClosedCandidateCount: closedCount,
				RankedIncidentIDs:    rankCandidateIDs(candidates),
				SelectedIncidentIDs:  selected,
			}, runID); err != nil {
			return fmt.Errorf("contextagent: record discovered event: %w", err)
		}
	}

	snapshot, err := a.sink.Snapshot(ctx, incidentID)
	if err != nil {
		return fmt.Errorf("contextagent: snapshot: %w", err)
	}
	currentSummary := renderIncidentSummary(snapshot.Incident)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deepDiveConcurrency)
	for _, inv := range invocations {
		inv := inv
		g.Go(func() error {
			a.runDeepDive(gctx, incidentID, runID, currentSummary, inv.candidateID, inv.candidate, inv.found)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

func (a *Agent) runDeepDive(ctx context.Context, incidentID, runID, currentSummary, candidateID string, candidate incident.SimilarIncidentCandidate, found bool) {
	if !found {
		a.appendToolResult(ctx, incidentID, candidateID, `{"isSimilar":false}`)
		return
	}

	req := buildDeepDiveRequest(currentSummary, candidate, a.opts.Model)
	resp, err := a.client.Respond(ctx, req)
	if err != nil {
		a.appendToolResult(ctx, incidentID, candidateID, "Investigation failed")
		return
	}

	var verdict struct {
		IsSimilar    bool   `json:"isSimilar"`
		Similarities string `json:"similarities"`
		Learnings    string `json:"learnings"`
	}
	found2 := false
	for _, call := range resp.FunctionCalls {
		if call.Name != toolReportSimilarity {
			continue
		}
		if err := validateArguments(toolReportSimilarity, call.Arguments); err != nil {
			continue
		}
		if err := json.Unmarshal(call.Arguments, &verdict); err != nil {
			continue
		}
		found2 = true
		break
	}
	if !found2 {
		a.appendToolResult(ctx, incidentID, candidateID, "Investigation failed")
		return
	}

	resultJSON, _ := json.Marshal(verdict)
	a.appendToolResult(ctx, incidentID, candidateID, string(resultJSON))

	if !verdict.IsSimilar {
		return
	}

	dedupeKey := runID + ":" + candidateID
	if err := a.sink.RecordInsightEvent(ctx, incidentID, incident.EventSimilarIncident, incident.SimilarIncidentData{
		OriginRunID:       runID,
		SimilarIncidentID: candidateID,
		SourceIncidentIDs: []string{incidentID},
		Title:             candidate.Title,
		Summary:           currentSummary,
		Similarities:      verdict.Similarities,
		Learnings:         verdict.Learnings,
	}, dedupeKey); err != nil {
		return
	}

	summary := fmt.Sprintf("Incident %s is similar: %s", candidateID, verdict.Similarities)
	_, _ = a.store.AppendStep(ctx, Step{
		IncidentID: incidentID,
		Role:       StepRoleAssistant,
		Content:    summary,
		Source:     SourceToolResult,
		RunID:      runID,
	})
}

func (a *Agent) appendToolResult(ctx context.Context, incidentID, candidateID, content string) {
	_, _ = a.store.AppendStep(ctx, Step{
		IncidentID: incidentID,
		Role:       StepRoleTool,
		Content:    content,
		Name:       candidateID,
		Source:     SourceToolResult,
	})
}

// rankCandidateIDs returns the candidate pool's IDs in the order presented
// to the investigate call, i.e. the full pre-selection ranking before the
// model narrowed them down to SelectedIncidentIDs.
func rankCandidateIDs(candidates []incident.SimilarIncidentCandidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

// renderContextSnapshot summarizes the step history and candidate pool fed
// into this iteration's investigate call, for the event's audit trail.
func renderContextSnapshot(steps []Step, candidates []incident.SimilarIncidentCandidate) string {
	open, closed := countCandidatePools(candidates)
	return fmt.Sprintf("%d step(s) reviewed against %d candidate incident(s) (%d open, %d closed)",
		len(steps), len(candidates), open, closed)
}

// renderGateDecision explains how many candidates the iteration selected for
// deep-dive investigation out of the full reviewed pool.
func renderGateDecision(selectedCount int, candidates []incident.SimilarIncidentCandidate, open, closed int) string {
	if selectedCount == 0 {
		return fmt.Sprintf("no candidates selected from %d reviewed (%d open, %d closed)", len(candidates), open, closed)
	}
	return fmt.Sprintf("selected %d of %d reviewed candidates (%d open, %d closed) for deep-dive investigation",
		selectedCount, len(candidates), open, closed)
}

func countCandidatePools(candidates []incident.SimilarIncidentCandidate) (open, closed int) {
	for _, c := range candidates {
		if c.Completed {
			closed++
		} else {
			open++
		}
	}
	return open, closed
}

func renderIncidentSummary(inc incident.Incident) string {
	return fmt.Sprintf("%s (status=%s, severity=%s): %s", inc.ID, inc.Status, inc.Severity, inc.Title)
}
