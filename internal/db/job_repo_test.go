package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrain/internal/types"
)

// execCall records one Exec invocation on the mock connection.
type execCall struct {
	sql  string
	args []any
}

// mockDBTX is a hand-written DBTX double recording Exec calls and serving
// canned rows for QueryRow.
type mockDBTX struct {
	execCalls []execCall
	execErr   error
	row       pgx.Row
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	m.execCalls = append(m.execCalls, execCall{sql: sql, args: arguments})
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (m *mockDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not used")
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.row
}

// jobMockRow implements pgx.Row for the Get query.
type jobMockRow struct {
	job *types.Job
	err error
}

func (r *jobMockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.job.ID
	*(dest[1].(*int)) = r.job.Threshold
	*(dest[2].(*int)) = r.job.IntervalMinutes
	*(dest[3].(*string)) = r.job.RuleName
	*(dest[4].(*int)) = r.job.ItemsTotal
	*(dest[5].(*int)) = r.job.ItemsRemaining
	*(dest[6].(*string)) = string(r.job.Status)
	*(dest[7].(*time.Time)) = r.job.CreatedAt
	*(dest[8].(*time.Time)) = r.job.UpdatedAt
	*(dest[9].(**time.Time)) = r.job.FinalizedAt
	return nil
}

func TestJobRepositoryCreate(t *testing.T) {
	mock := &mockDBTX{}
	repo := NewJobRepository(mock)

	err := repo.Create(context.Background(), &types.Job{
		ID:              "11111111-1111-1111-1111-111111111111",
		Threshold:       100,
		IntervalMinutes: 60,
		RuleName:        "11111111-1111-1111-1111-111111111111-drain",
		ItemsTotal:      250,
		ItemsRemaining:  250,
	})
	require.NoError(t, err)
	require.Len(t, mock.execCalls, 1)
	assert.Contains(t, mock.execCalls[0].sql, "INSERT INTO jobs")
	assert.Equal(t, string(types.JobDraining), mock.execCalls[0].args[6])
}

func TestJobRepositoryUpdateRemaining(t *testing.T) {
	mock := &mockDBTX{}
	repo := NewJobRepository(mock)

	require.NoError(t, repo.UpdateRemaining(context.Background(), "j1", 150))
	require.Len(t, mock.execCalls, 1)
	assert.Contains(t, mock.execCalls[0].sql, "items_remaining = $2")
	assert.Equal(t, 150, mock.execCalls[0].args[1])
}

func TestJobRepositoryMarkFinalizedSetsTimestamp(t *testing.T) {
	mock := &mockDBTX{}
	repo := NewJobRepository(mock)

	require.NoError(t, repo.MarkFinalized(context.Background(), "j1"))
	require.Len(t, mock.execCalls, 1)
	assert.Contains(t, mock.execCalls[0].sql, "finalized_at")
	assert.Equal(t, string(types.JobFinalized), mock.execCalls[0].args[1])
}

func TestJobRepositoryGetNotFound(t *testing.T) {
	mock := &mockDBTX{row: &jobMockRow{err: pgx.ErrNoRows}}
	repo := NewJobRepository(mock)

	_, err := repo.Get(context.Background(), "missing")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundJob, appErr.Code)
}

func TestJobRepositoryGet(t *testing.T) {
	now := time.Now().UTC()
	want := &types.Job{
		ID:              "j1",
		Threshold:       100,
		IntervalMinutes: 60,
		RuleName:        "j1-drain",
		ItemsTotal:      250,
		ItemsRemaining:  50,
		Status:          types.JobDraining,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	mock := &mockDBTX{row: &jobMockRow{job: want}}
	repo := NewJobRepository(mock)

	got, err := repo.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
