// Package memlog provides an in-memory implementation of incidentactor.Log,
// intended for tests and the evaluation harness.
package memlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opsline-ai/incident-agent/incident"
)

// Log is an in-memory implementation of incidentactor.Log. Safe for
// concurrent use.
type Log struct {
	mu        sync.RWMutex
	incidents map[string]incident.Incident
	events    map[string][]incident.AgentEvent
	nextID    int64
}

// New returns an empty Log.
func New() *Log {
	return &Log{
		incidents: make(map[string]incident.Incident),
		events:    make(map[string][]incident.AgentEvent),
		nextID:    1,
	}
}

// LoadIncident implements incidentactor.Log.
func (l *Log) LoadIncident(_ context.Context, incidentID string) (incident.Incident, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	inc, ok := l.incidents[incidentID]
	if !ok {
		return incident.Incident{}, errors.New("memlog: incident not found")
	}
	return inc, nil
}

// SaveIncident implements incidentactor.Log.
func (l *Log) SaveIncident(_ context.Context, inc incident.Incident) error {
	if inc.ID == "" {
		return errors.New("memlog: incident id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.incidents[inc.ID] = inc
	return nil
}

// ListEvents implements incidentactor.Log.
func (l *Log) ListEvents(_ context.Context, incidentID string) ([]incident.AgentEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.events[incidentID]
	out := make([]incident.AgentEvent, len(src))
	copy(out, src)
	return out, nil
}

// AppendEvent implements incidentactor.Log.
func (l *Log) AppendEvent(_ context.Context, incidentID string, e incident.AgentEvent) (incident.AgentEvent, error) {
	if incidentID == "" {
		return incident.AgentEvent{}, errors.New("memlog: incident id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e.ID = l.nextID
	l.nextID++
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	l.events[incidentID] = append(l.events[incidentID], e)
	return e, nil
}

// FindEventByDedupeKey implements incidentactor.Log.
func (l *Log) FindEventByDedupeKey(_ context.Context, incidentID, dedupeKey string) (incident.AgentEvent, bool, error) {
	if dedupeKey == "" {
		return incident.AgentEvent{}, false, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.events[incidentID] {
		if e.DedupeKey() == dedupeKey {
			return e, true, nil
		}
	}
	return incident.AgentEvent{}, false, nil
}
