// Package memstore provides an in-memory implementation of
// contextagent.Store, intended for tests and local development.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/opsline-ai/incident-agent/contextagent"
)

type batchKey struct {
	incidentID string
	toEventID  int64
}

// Store is an in-memory implementation of contextagent.Store. It is safe
// for concurrent use.
type Store struct {
	mu         sync.RWMutex
	steps      map[string][]contextagent.Step
	systemStep map[string]contextagent.Step
	batches    map[batchKey]contextagent.Batch
	nextStepID int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		steps:      make(map[string][]contextagent.Step),
		systemStep: make(map[string]contextagent.Step),
		batches:    make(map[batchKey]contextagent.Batch),
		nextStepID: 1,
	}
}

// EnsureSystemStep implements contextagent.Store.
func (s *Store) EnsureSystemStep(_ context.Context, incidentID, content string, now time.Time) (contextagent.Step, error) {
	if incidentID == "" {
		return contextagent.Step{}, errors.New("memstore: incident id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.systemStep[incidentID]; ok {
		return existing, nil
	}
	step := contextagent.Step{
		ID:         s.nextStepID,
		IncidentID: incidentID,
		Role:       contextagent.StepRoleSystem,
		Content:    content,
		Source:     contextagent.SourceSystem,
		CreatedAt:  now,
	}
	s.nextStepID++
	s.systemStep[incidentID] = step
	s.steps[incidentID] = append(s.steps[incidentID], step)
	return step, nil
}

// AppendStep implements contextagent.Store.
func (s *Store) AppendStep(_ context.Context, step contextagent.Step) (contextagent.Step, error) {
	if step.IncidentID == "" {
		return contextagent.Step{}, errors.New("memstore: incident id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if step.Source == contextagent.SourceSystem {
		if _, ok := s.systemStep[step.IncidentID]; ok {
			return contextagent.Step{}, errors.New("memstore: system step already exists for incident")
		}
	}
	step.ID = s.nextStepID
	s.nextStepID++
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}
	s.steps[step.IncidentID] = append(s.steps[step.IncidentID], step)
	if step.Source == contextagent.SourceSystem {
		s.systemStep[step.IncidentID] = step
	}
	return step, nil
}

// ListSteps implements contextagent.Store.
func (s *Store) ListSteps(_ context.Context, incidentID string) ([]contextagent.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.steps[incidentID]
	out := make([]contextagent.Step, len(src))
	copy(out, src)
	return out, nil
}

// LoadBatch implements contextagent.Store.
func (s *Store) LoadBatch(_ context.Context, incidentID string, toEventID int64) (contextagent.Batch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.batches[batchKey{incidentID, toEventID}]
	return b, ok, nil
}

// RecordBatch implements contextagent.Store.
func (s *Store) RecordBatch(_ context.Context, batch contextagent.Batch) error {
	if batch.IncidentID == "" {
		return errors.New("memstore: incident id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batchKey{batch.IncidentID, batch.ToEventID}
	if _, ok := s.batches[key]; ok {
		return errors.New("memstore: batch already recorded for this toEventId")
	}
	s.batches[key] = batch
	return nil
}
