// Package drain implements the per-tick queue draining step, the core of the
// throttled pipeline. Each tick is a stateless invocation driven by the
// external clock: it reads the durable queue, dispatches a bounded batch of
// items fire-and-forget, and either persists the remainder or dispatches the
// finalizer. The queue overwrite is the sole and final mutation of queue
// state in a tick, so a failed tick leaves the previous snapshot intact and
// the next clock fire recovers.
package drain

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// DefaultDispatchConcurrency caps concurrent dispatch sends within one tick
// when the config does not override it.
const DefaultDispatchConcurrency = 16

// TickResult reports the outcome of one drain tick.
type TickResult struct {
	Status     types.DrainStatus `json:"status"`
	Dispatched int               `json:"dispatched"`
	Remaining  int               `json:"remaining"`
}

// Drainer executes drain ticks. Collaborators are interfaces; cmd wiring
// provides the live S3, SQS, CloudWatch, and Postgres clients.
type Drainer struct {
	Queues      types.QueueStore
	Items       types.ItemDispatcher
	Finalize    types.FinalizeDispatcher
	Jobs        types.JobRepository
	Metrics     types.MetricPublisher
	Concurrency int
	Log         *slog.Logger
}

// Tick runs one drain step for the job.
//
// The sequence is fixed: read, dispatch batch, then exactly one of
// {overwrite remainder, dispatch finalize + delete queue}. Dispatches are
// fire-and-forget at the result level but the tick waits for every send to
// be accepted before touching the queue, so a dispatch failure aborts the
// tick with the previous queue snapshot still in place.
//
// An absent queue is a no-op: either the job id is unknown or a stray late
// clock fire arrived after finalization. Overlapping ticks on the same job
// are not serialized; the version-conditioned overwrite detects the race and
// reports a conflict instead of silently dropping or duplicating items.
func (d *Drainer) Tick(ctx context.Context, jobID string, threshold int) (TickResult, error) {
	if threshold < 0 {
		return TickResult{}, types.NewAppError(types.ErrCodeValidationThreshold,
			"threshold must be non-negative", nil)
	}

	log := d.Log.With("job_id", jobID)

	queueKey := queue.QueueKey(jobID)
	items, version, err := d.Queues.Read(ctx, queueKey)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundQueue {
			log.InfoContext(ctx, "no queue for job, tick is a no-op")
			return TickResult{Status: types.DrainQueueAbsent}, nil
		}
		return TickResult{}, err
	}

	n := threshold
	if n > len(items) {
		n = len(items)
	}
	batch := items[:n]
	remaining := items[n:]

	log.InfoContext(ctx, "drain tick",
		"queue_length", len(items),
		"threshold", threshold,
		"dispatching", n,
		"remaining", len(remaining),
	)

	if err := d.dispatchBatch(ctx, jobID, batch); err != nil {
		return TickResult{}, err
	}

	if len(remaining) > 0 {
		if _, err := d.Queues.Overwrite(ctx, queueKey, remaining, version); err != nil {
			return TickResult{}, err
		}
		d.observe(ctx, jobID, n, len(remaining), false)
		return TickResult{
			Status:     types.DrainNextBatchScheduled,
			Dispatched: n,
			Remaining:  len(remaining),
		}, nil
	}

	if err := d.Finalize.DispatchFinalize(ctx, types.FinalizeMessage{JobID: jobID}); err != nil {
		return TickResult{}, err
	}
	// Removing the queue object is what makes a stray late tick a no-op
	// instead of a full re-dispatch of the final batch.
	if err := d.Queues.Delete(ctx, queueKey); err != nil {
		return TickResult{}, err
	}
	d.observe(ctx, jobID, n, 0, true)

	log.InfoContext(ctx, "queue completed, finalizer dispatched", "dispatched", n)
	return TickResult{
		Status:     types.DrainQueueCompleted,
		Dispatched: n,
	}, nil
}

// dispatchBatch sends every item of the batch to the shorten queue,
// concurrently, and waits for all sends to be accepted. The first failure
// cancels the remaining sends and fails the tick.
func (d *Drainer) dispatchBatch(ctx context.Context, jobID string, batch []types.WorkItem) error {
	if len(batch) == 0 {
		return nil
	}

	concurrency := d.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultDispatchConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, item := range batch {
		item := item
		g.Go(func() error {
			return d.Items.DispatchShorten(gctx, types.ShortenMessage{
				JobID:   jobID,
				ItemID:  item.ItemID,
				LongURL: item.LongURL,
				Domain:  item.Domain,
			})
		})
	}
	return g.Wait()
}

// observe updates the registry row and publishes tick metrics. Both are
// best effort: the queue snapshot is the authoritative state and a telemetry
// outage must not fail a tick.
func (d *Drainer) observe(ctx context.Context, jobID string, dispatched, remaining int, completed bool) {
	if completed {
		if err := d.Jobs.MarkCompleting(ctx, jobID); err != nil {
			d.Log.WarnContext(ctx, "failed to mark job completing", "job_id", jobID, "error", err)
		}
	} else {
		if err := d.Jobs.UpdateRemaining(ctx, jobID, remaining); err != nil {
			d.Log.WarnContext(ctx, "failed to update registry remaining count", "job_id", jobID, "error", err)
		}
	}
	if err := d.Metrics.PublishTick(ctx, jobID, dispatched, remaining); err != nil {
		d.Log.WarnContext(ctx, "failed to publish tick metrics", "job_id", jobID, "error", err)
	}
}
