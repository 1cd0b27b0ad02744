package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"linkdrain/internal/types"
)

// JobRepository provides data access for the jobs table.
//
// Schema:
//
//	CREATE TABLE jobs (
//	  id               UUID PRIMARY KEY,
//	  threshold        INT NOT NULL,
//	  interval_minutes INT NOT NULL,
//	  rule_name        TEXT NOT NULL,
//	  items_total      INT NOT NULL,
//	  items_remaining  INT NOT NULL,
//	  status           TEXT NOT NULL,
//	  created_at       TIMESTAMPTZ NOT NULL,
//	  updated_at       TIMESTAMPTZ NOT NULL,
//	  finalized_at     TIMESTAMPTZ
//	)
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a JobRepository backed by the given connection
// (pool or transaction).
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts the registry row for a freshly created job.
func (r *JobRepository) Create(ctx context.Context, job *types.Job) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO jobs (id, threshold, interval_minutes, rule_name,
		                   items_total, items_remaining, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		job.ID,
		job.Threshold,
		job.IntervalMinutes,
		job.RuleName,
		job.ItemsTotal,
		job.ItemsRemaining,
		string(types.JobDraining),
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert job", err)
	}
	return nil
}

// UpdateRemaining records the remainder length after a tick.
func (r *JobRepository) UpdateRemaining(ctx context.Context, jobID string, remaining int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET items_remaining = $2, updated_at = $3 WHERE id = $1`,
		jobID,
		remaining,
		time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update job remaining count", err)
	}
	return nil
}

// MarkCompleting flags the job the instant a tick observes an empty
// remainder and dispatches the finalizer.
func (r *JobRepository) MarkCompleting(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, types.JobCompleting, false)
}

// MarkFinalized flags the job terminal after artifact write and clock
// teardown.
func (r *JobRepository) MarkFinalized(ctx context.Context, jobID string) error {
	return r.setStatus(ctx, jobID, types.JobFinalized, true)
}

func (r *JobRepository) setStatus(ctx context.Context, jobID string, status types.JobStatus, terminal bool) error {
	now := time.Now().UTC()
	var err error
	if terminal {
		_, err = r.db.Exec(ctx,
			`UPDATE jobs SET status = $2, items_remaining = 0, updated_at = $3, finalized_at = $3 WHERE id = $1`,
			jobID, string(status), now)
	} else {
		_, err = r.db.Exec(ctx,
			`UPDATE jobs SET status = $2, items_remaining = 0, updated_at = $3 WHERE id = $1`,
			jobID, string(status), now)
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update job status", err)
	}
	return nil
}

// Get returns the registry row for a job.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*types.Job, error) {
	var job types.Job
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT id, threshold, interval_minutes, rule_name,
		        items_total, items_remaining, status, created_at, updated_at, finalized_at
		 FROM jobs WHERE id = $1`,
		jobID,
	).Scan(
		&job.ID,
		&job.Threshold,
		&job.IntervalMinutes,
		&job.RuleName,
		&job.ItemsTotal,
		&job.ItemsRemaining,
		&status,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.FinalizedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundJob, "job not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load job", err)
	}
	job.Status = types.JobStatus(status)
	return &job, nil
}
