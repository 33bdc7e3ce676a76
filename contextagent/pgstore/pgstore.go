// Package pgstore implements contextagent.Store on top of Postgres using
// pgx, with schema migrations managed by goose.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsline-ai/incident-agent/contextagent"
)

// DB defines the subset of pgx operations pgstore needs. *pgxpool.Pool and
// *pgx.Conn both satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a Postgres-backed contextagent.Store.
type Store struct {
	db DB
}

// New wraps db in a Store. Callers are responsible for running
// RunMigrations before first use.
func New(db DB) *Store {
	return &Store{db: db}
}

// EnsureSystemStep implements contextagent.Store.
func (s *Store) EnsureSystemStep(ctx context.Context, incidentID, content string, now time.Time) (contextagent.Step, error) {
	if incidentID == "" {
		return contextagent.Step{}, errors.New("pgstore: incident id is required")
	}

	const upsert = `
		INSERT INTO steps (incident_id, role, content, source, created_at)
		VALUES ($1, $2, $3, 'system', $4)
		ON CONFLICT (incident_id) WHERE source = 'system' DO NOTHING
		RETURNING id, incident_id, role, content, name, tool_call_id, source, context_to_event_id, run_id, created_at`

	row := s.db.QueryRow(ctx, upsert, incidentID, contextagent.StepRoleSystem, content, now)
	step, err := scanStep(row)
	if err == nil {
		return step, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return contextagent.Step{}, fmt.Errorf("pgstore: ensure system step: %w", err)
	}

	const fetch = `
		SELECT id, incident_id, role, content, name, tool_call_id, source, context_to_event_id, run_id, created_at
		FROM steps WHERE incident_id = $1 AND source = 'system'`
	row = s.db.QueryRow(ctx, fetch, incidentID)
	step, err = scanStep(row)
	if err != nil {
		return contextagent.Step{}, fmt.Errorf("pgstore: fetch existing system step: %w", err)
	}
	return step, nil
}

// AppendStep implements contextagent.Store.
func (s *Store) AppendStep(ctx context.Context, step contextagent.Step) (contextagent.Step, error) {
	if step.IncidentID == "" {
		return contextagent.Step{}, errors.New("pgstore: incident id is required")
	}
	if step.CreatedAt.IsZero() {
		step.CreatedAt = time.Now().UTC()
	}

	const insert = `
		INSERT INTO steps (incident_id, role, content, name, tool_call_id, source, context_to_event_id, run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, incident_id, role, content, name, tool_call_id, source, context_to_event_id, run_id, created_at`

	row := s.db.QueryRow(ctx, insert,
		step.IncidentID, step.Role, step.Content, step.Name, step.ToolCallID,
		step.Source, step.ContextToEventID, step.RunID, step.CreatedAt)

	out, err := scanStep(row)
	if err != nil {
		return contextagent.Step{}, fmt.Errorf("pgstore: append step: %w", err)
	}
	return out, nil
}

// ListSteps implements contextagent.Store.
func (s *Store) ListSteps(ctx context.Context, incidentID string) ([]contextagent.Step, error) {
	const query = `
		SELECT id, incident_id, role, content, name, tool_call_id, source, context_to_event_id, run_id, created_at
		FROM steps WHERE incident_id = $1 ORDER BY id ASC`

	rows, err := s.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list steps: %w", err)
	}
	defer rows.Close()

	var out []contextagent.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("pgstore: scan step: %w", err)
		}
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: list steps: %w", err)
	}
	return out, nil
}

// LoadBatch implements contextagent.Store.
func (s *Store) LoadBatch(ctx context.Context, incidentID string, toEventID int64) (contextagent.Batch, bool, error) {
	const query = `
		SELECT incident_id, to_event_id, trigger, requested_at, appended_step_start_id, appended_step_end_id
		FROM contexts WHERE incident_id = $1 AND to_event_id = $2`

	row := s.db.QueryRow(ctx, query, incidentID, toEventID)
	batch, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contextagent.Batch{}, false, nil
	}
	if err != nil {
		return contextagent.Batch{}, false, fmt.Errorf("pgstore: load batch: %w", err)
	}
	return batch, true, nil
}

// RecordBatch implements contextagent.Store.
func (s *Store) RecordBatch(ctx context.Context, batch contextagent.Batch) error {
	if batch.IncidentID == "" {
		return errors.New("pgstore: incident id is required")
	}

	const insert = `
		INSERT INTO contexts (incident_id, to_event_id, trigger, requested_at, appended_step_start_id, appended_step_end_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, insert,
		batch.IncidentID, batch.ToEventID, batch.Trigger, batch.RequestedAt,
		batch.AppendedStepStartID, batch.AppendedStepEndID)
	if err != nil {
		return fmt.Errorf("pgstore: record batch: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (contextagent.Step, error) {
	var step contextagent.Step
	err := row.Scan(
		&step.ID, &step.IncidentID, &step.Role, &step.Content, &step.Name,
		&step.ToolCallID, &step.Source, &step.ContextToEventID, &step.RunID, &step.CreatedAt)
	return step, err
}

func scanBatch(row rowScanner) (contextagent.Batch, error) {
	var batch contextagent.Batch
	err := row.Scan(
		&batch.IncidentID, &batch.ToEventID, &batch.Trigger, &batch.RequestedAt,
		&batch.AppendedStepStartID, &batch.AppendedStepEndID)
	return batch, err
}
