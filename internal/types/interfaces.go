package types

import (
	"context"
	"time"
)

// QueueStore is durable ordered-list storage keyed by job. The queue is
// always rewritten in full; Overwrite is conditional on the version tag
// returned by Read so concurrent ticks cannot silently clobber each other.
type QueueStore interface {
	// Read returns the queue items in order plus an opaque version tag.
	// Returns an AppError with ErrCodeNotFoundQueue when no queue exists.
	Read(ctx context.Context, key string) ([]WorkItem, string, error)
	// Overwrite replaces the queue iff the stored version still matches.
	// Returns an AppError with ErrCodeConflictQueueVersion on mismatch.
	Overwrite(ctx context.Context, key string, items []WorkItem, version string) (QueueProperties, error)
	// Write persists the items unconditionally under key.
	Write(ctx context.Context, key string, items []WorkItem) (QueueProperties, error)
	// Copy snapshots srcKey to dstKey.
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Delete removes the queue object. Absent objects are not an error.
	Delete(ctx context.Context, key string) error
}

// ResultStore is the key-value collaborator holding one entry per dispatched
// item with a fixed TTL.
type ResultStore interface {
	// Put writes value under key with the given TTL. Write-once per key
	// under normal operation; the store does not enforce it.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the stored value, or ok=false when the key is absent or
	// expired. Absence is not an error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Clock is the external periodic-invocation facility driving drain progress.
type Clock interface {
	// Create binds a recurring rule firing every intervalMinutes with the
	// given constant payload and returns the rule name.
	Create(ctx context.Context, jobID string, intervalMinutes int, payload TickPayload) (string, error)
	// Teardown deletes the rule and its fan-out target. Deleting an
	// already-absent object is a no-op, not an error.
	Teardown(ctx context.Context, ruleName string) error
}

// ItemDispatcher submits one unit of rate-limited work, fire-and-forget.
// Returning nil means the dispatch was accepted for execution, not that the
// work completed.
type ItemDispatcher interface {
	DispatchShorten(ctx context.Context, msg ShortenMessage) error
}

// FinalizeDispatcher submits the finalize step for a job, fire-and-forget.
type FinalizeDispatcher interface {
	DispatchFinalize(ctx context.Context, msg FinalizeMessage) error
}

// Shortener is the external rate-limited API collaborator: one synchronous
// call per item, no internal retry.
type Shortener interface {
	Shorten(ctx context.Context, longURL, domain string) (string, error)
}

// JobRepository is the registry persistence interface. All methods are
// observational; callers treat failures as non-fatal and log them.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	UpdateRemaining(ctx context.Context, jobID string, remaining int) error
	MarkCompleting(ctx context.Context, jobID string) error
	MarkFinalized(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*Job, error)
}

// MetricPublisher emits operational metrics for the drain pipeline.
type MetricPublisher interface {
	PublishTick(ctx context.Context, jobID string, dispatched, remaining int) error
	PublishJoinGaps(ctx context.Context, jobID string, gaps int) error
}
