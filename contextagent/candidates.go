package contextagent

import (
	"context"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
)

const (
	maxOpenCandidates      = 20
	maxCompletedCandidates = 50
	completedLookback      = 90 * 24 * time.Hour
)

// CandidateSource loads historical incidents for the similar-incidents
// agent's candidate pool. Implementations are expected to query the
// dashboard's own incident store and the relational store of completed
// incidents; both are external collaborators accessed only through this
// interface.
type CandidateSource interface {
	// ListOpenIncidents returns open incidents for tenantID, most recent
	// first, capped at limit.
	ListOpenIncidents(ctx context.Context, tenantID string, limit int) ([]incident.SimilarIncidentCandidate, error)

	// ListCompletedIncidents returns incidents that reached a terminal
	// status (resolved or declined) at or after since, capped at limit.
	ListCompletedIncidents(ctx context.Context, tenantID string, since time.Time, limit int) ([]incident.SimilarIncidentCandidate, error)
}

// loadCandidates implements the one-shot candidate query described for
// processPendingContexts: open incidents for the tenant plus completed
// incidents within the lookback window, capped at 20 open / 50 completed.
func loadCandidates(ctx context.Context, src CandidateSource, tenantID string, now time.Time) ([]incident.SimilarIncidentCandidate, error) {
	open, err := src.ListOpenIncidents(ctx, tenantID, maxOpenCandidates)
	if err != nil {
		return nil, err
	}
	completed, err := src.ListCompletedIncidents(ctx, tenantID, now.Add(-completedLookback), maxCompletedCandidates)
	if err != nil {
		return nil, err
	}
	out := make([]incident.SimilarIncidentCandidate, 0, len(open)+len(completed))
	out = append(out, open...)
	out = append(out, completed...)
	return out, nil
}

func findCandidate(candidates []incident.SimilarIncidentCandidate, id string) (incident.SimilarIncidentCandidate, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}
	return incident.SimilarIncidentCandidate{}, false
}
