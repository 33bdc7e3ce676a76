package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsline-ai/incident-agent/contextagent"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scan func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scan(dest...) }

type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
}

func newMockRows(scanFuncs ...func(dest ...any) error) *mockRows {
	return &mockRows{scanFuncs: scanFuncs}
}

func (m *mockRows) Next() bool { return m.callIndex < len(m.scanFuncs) }
func (m *mockRows) Scan(dest ...any) error {
	fn := m.scanFuncs[m.callIndex]
	m.callIndex++
	return fn(dest...)
}
func (m *mockRows) Err() error                                   { return nil }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

func scanFixedStep(id int64, incidentID, source string, createdAt time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*int64)) = id
		*(dest[1].(*string)) = incidentID
		*(dest[2].(*string)) = "system"
		*(dest[3].(*string)) = "system prompt"
		*(dest[4].(*string)) = ""
		*(dest[5].(*string)) = ""
		*(dest[6].(*string)) = source
		*(dest[7].(**int64)) = nil
		*(dest[8].(*string)) = ""
		*(dest[9].(*time.Time)) = createdAt
		return nil
	}
}

func TestEnsureSystemStepInsertsWhenAbsent(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	row := &mockRow{scan: scanFixedStep(1, "inc-1", "system", now)}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row).Once()

	step, err := s.EnsureSystemStep(ctx, "inc-1", "system prompt", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), step.ID)
	assert.Equal(t, "inc-1", step.IncidentID)
	db.AssertExpectations(t)
}

func TestEnsureSystemStepFallsBackToFetchOnConflict(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	conflictRow := &mockRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	existingRow := &mockRow{scan: scanFixedStep(7, "inc-1", "system", now)}

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(conflictRow).Once()
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(existingRow).Once()

	step, err := s.EnsureSystemStep(ctx, "inc-1", "system prompt", now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), step.ID)
	db.AssertExpectations(t)
}

func TestListStepsReturnsScannedRows(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	rows := newMockRows(
		scanFixedStep(1, "inc-1", "system", now),
		scanFixedStep(2, "inc-1", "context", now),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	steps, err := s.ListSteps(ctx, "inc-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, int64(1), steps[0].ID)
	assert.Equal(t, int64(2), steps[1].ID)
	db.AssertExpectations(t)
}

func TestListStepsPropagatesQueryError(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil, errors.New("connection lost"))

	_, err := s.ListSteps(ctx, "inc-1")
	assert.Error(t, err)
	db.AssertExpectations(t)
}

func TestLoadBatchMissingReturnsFalseNotError(t *testing.T) {
	db := &mockDB{}
	s := New(db)
	ctx := context.Background()

	row := &mockRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, ok, err := s.LoadBatch(ctx, "inc-1", 5)
	require.NoError(t, err)
	assert.False(t, ok)
	db.AssertExpectations(t)
}

func TestRecordBatchRequiresIncidentID(t *testing.T) {
	db := &mockDB{}
	s := New(db)

	err := s.RecordBatch(context.Background(), contextagent.Batch{ToEventID: 5})
	assert.Error(t, err)
}
