package pgstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/opsline-ai/incident-agent/contextagent"
)

// sharedConnStr and containerOnce let every test in this package reuse one
// container instead of paying startup cost per test.
var (
	sharedConnStr string
	containerOnce sync.Once
	containerErr  error
)

func sharedDatabaseURL(t *testing.T) string {
	t.Helper()
	containerOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := tcpostgres.Run(ctx,
			"postgres:17-alpine",
			tcpostgres.WithDatabase("steps"),
			tcpostgres.WithUsername("steps"),
			tcpostgres.WithPassword("steps"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("pgstore: start postgres container: %w", err)
			return
		}
		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("pgstore: container connection string: %w", err)
			return
		}
		if err := RunMigrations(connStr); err != nil {
			containerErr = fmt.Errorf("pgstore: run migrations: %w", err)
			return
		}
		sharedConnStr = connStr
	})
	if containerErr != nil {
		t.Skipf("postgres testcontainer unavailable, skipping: %v", containerErr)
	}
	return sharedConnStr
}

// newTestStore opens a fresh pool against the shared container and clears
// both tables so each test starts from an empty schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, sharedDatabaseURL(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE TABLE steps, contexts")
	require.NoError(t, err)

	return New(pool)
}

func TestStoreEnsureSystemStepIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first, err := s.EnsureSystemStep(ctx, "inc-1", "system prompt", now)
	require.NoError(t, err)
	assert.Equal(t, "inc-1", first.IncidentID)
	assert.Equal(t, contextagent.StepRoleSystem, first.Role)

	second, err := s.EnsureSystemStep(ctx, "inc-1", "a different prompt", now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second call must return the existing system step, not insert another")
	assert.Equal(t, first.Content, second.Content)
}

func TestStoreAppendAndListStepsPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.EnsureSystemStep(ctx, "inc-2", "system prompt", now)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.AppendStep(ctx, contextagent.Step{
			IncidentID: "inc-2",
			Role:       contextagent.StepRoleUser,
			Content:    fmt.Sprintf("step %d", i),
			Source:     contextagent.SourceContext,
		})
		require.NoError(t, err)
	}

	steps, err := s.ListSteps(ctx, "inc-2")
	require.NoError(t, err)
	require.Len(t, steps, 4) // system step + 3 appended
	assert.Equal(t, contextagent.StepRoleSystem, steps[0].Role)
	assert.Equal(t, "step 0", steps[1].Content)
	assert.Equal(t, "step 2", steps[3].Content)
}

func TestStoreRecordAndLoadBatchRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	start, end := int64(10), int64(12)

	err := s.RecordBatch(ctx, contextagent.Batch{
		IncidentID:          "inc-3",
		ToEventID:           42,
		Trigger:             "message_added",
		RequestedAt:         now,
		AppendedStepStartID: &start,
		AppendedStepEndID:   &end,
	})
	require.NoError(t, err)

	batch, ok, err := s.LoadBatch(ctx, "inc-3", 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "message_added", batch.Trigger)
	assert.Equal(t, start, *batch.AppendedStepStartID)

	_, ok, err = s.LoadBatch(ctx, "inc-3", 99)
	require.NoError(t, err)
	assert.False(t, ok, "no batch recorded for this watermark")
}
