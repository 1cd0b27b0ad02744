// Package controller implements job creation: it materializes a source list
// into queue storage, retains an immutable snapshot for the finalizer, and
// binds the periodic clock that will drive the drain.
package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// CreateJobRequest is the client input for job creation. Threshold and
// IntervalMinutes default when zero.
type CreateJobRequest struct {
	FileURL         string `json:"fileUrl" validate:"required,url"`
	Threshold       int    `json:"threshold" validate:"gte=0"`
	IntervalMinutes int    `json:"interval" validate:"gte=0"`
}

// CreateJobResponse confirms the persisted queue and the created clock.
type CreateJobResponse struct {
	JobID           string                `json:"jobId"`
	RuleName        string                `json:"ruleName"`
	Threshold       int                   `json:"threshold"`
	IntervalMinutes int                   `json:"interval"`
	ItemsTotal      int                   `json:"itemsTotal"`
	Queue           types.QueueProperties `json:"queue"`
}

// SourceFetcher retrieves the source work list from its URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPSourceFetcher fetches source lists over HTTP(S).
type HTTPSourceFetcher struct {
	Client *http.Client
}

// Fetch issues a GET for the source list. The caller owns the returned body.
func (f *HTTPSourceFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build source request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source fetch failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("source fetch returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Controller creates drain jobs. All collaborators are interfaces so the
// handler is testable with fakes; cmd wiring provides the live clients.
type Controller struct {
	Queues   types.QueueStore
	Clock    types.Clock
	Jobs     types.JobRepository
	Fetcher  SourceFetcher
	Validate *validator.Validate
	Log      *slog.Logger
}

// CreateJob runs the full creation sequence:
//  1. Validate input (no state is mutated on validation failure).
//  2. Generate a fresh job id.
//  3. Fetch and decode the source list.
//  4. Persist the queue under the job-scoped key and snapshot it to the
//     original key, which only the finalizer reads.
//  5. Create the clock rule carrying {threshold, jobId}.
//  6. Insert the registry row (best effort).
//
// If clock creation fails after the queue was persisted the job is stranded:
// the queue objects exist but nothing will ever tick them. That is reported
// as a server error and left for operators; creation is not transactional
// across collaborators.
func (c *Controller) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResponse, error) {
	if err := c.Validate.Struct(&req); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidURL,
			"fileUrl is required and must be a valid URL", err)
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = types.DefaultThreshold
	}
	interval := req.IntervalMinutes
	if interval == 0 {
		interval = types.DefaultIntervalMinutes
	}

	jobID := uuid.New().String()
	log := c.Log.With("job_id", jobID)
	log.DebugContext(ctx, "creating job",
		"file_url", req.FileURL,
		"threshold", threshold,
		"interval_minutes", interval,
	)

	body, err := c.Fetcher.Fetch(ctx, req.FileURL)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSource,
			"failed to fetch source list", err)
	}
	defer body.Close()

	items, err := queue.DecodeItems(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationBadPayload,
			"source list is not a valid work list", err)
	}

	queueKey := queue.QueueKey(jobID)
	props, err := c.Queues.Write(ctx, queueKey, items)
	if err != nil {
		return nil, err
	}
	if err := c.Queues.Copy(ctx, queueKey, queue.OriginalKey(jobID)); err != nil {
		return nil, err
	}

	ruleName, err := c.Clock.Create(ctx, jobID, interval, types.TickPayload{
		Threshold: threshold,
		JobID:     jobID,
	})
	if err != nil {
		// Queue objects are already persisted; the job is stranded.
		log.ErrorContext(ctx, "clock creation failed after queue persist", "error", err)
		return nil, err
	}

	if err := c.Jobs.Create(ctx, &types.Job{
		ID:              jobID,
		Threshold:       threshold,
		IntervalMinutes: interval,
		RuleName:        ruleName,
		ItemsTotal:      len(items),
		ItemsRemaining:  len(items),
	}); err != nil {
		// Registry is observational; the job is fully operational without it.
		log.WarnContext(ctx, "failed to insert registry row", "error", err)
	}

	log.InfoContext(ctx, "job created",
		"rule_name", ruleName,
		"items_total", len(items),
	)

	return &CreateJobResponse{
		JobID:           jobID,
		RuleName:        ruleName,
		Threshold:       threshold,
		IntervalMinutes: interval,
		ItemsTotal:      len(items),
		Queue:           props,
	}, nil
}
