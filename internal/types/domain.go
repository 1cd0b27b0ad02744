// Package types defines the shared domain model for the linkdrain platform:
// jobs, work items, queue snapshots, message envelopes, and the application
// error taxonomy. It has no dependencies on other internal packages so every
// component can import it freely.
package types

import "time"

// DefaultThreshold is the number of items drained per tick when the caller
// does not specify one. Keeps the aggregate shortener call rate at
// threshold/interval requests per minute.
const DefaultThreshold = 100

// DefaultIntervalMinutes is the drain clock period when the caller does not
// specify one.
const DefaultIntervalMinutes = 60

// ResultTTLSeconds is the lifetime of a ResultRecord. Results older than this
// are expired by the store and surface as join gaps at finalize time.
const ResultTTLSeconds = 86400

// JobStatus captures the observational lifecycle of a job in the registry.
// The registry never drives the state machine; queue existence in the blob
// store is the authoritative discriminator.
type JobStatus string

const (
	// JobDraining is set at creation and held while ticks keep finding a
	// non-empty remainder.
	JobDraining JobStatus = "draining"
	// JobCompleting is set the instant a tick observes an empty remainder
	// and dispatches the finalizer.
	JobCompleting JobStatus = "completing"
	// JobFinalized is terminal: the artifact is written and the clock rule
	// is torn down.
	JobFinalized JobStatus = "finalized"
)

// Job is the registry record for one drain job. The authoritative queue and
// snapshot live in the blob store under the job-scoped keys; this row exists
// for operational visibility (dashboards, the ops API).
type Job struct {
	ID              string     `json:"id"`
	Threshold       int        `json:"threshold"`
	IntervalMinutes int        `json:"interval_minutes"`
	RuleName        string     `json:"rule_name"`
	ItemsTotal      int        `json:"items_total"`
	ItemsRemaining  int        `json:"items_remaining"`
	Status          JobStatus  `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinalizedAt     *time.Time `json:"finalized_at,omitempty"`
}

// WorkItem is one row of the source list. ItemID is the stable join key,
// unique within a job and supplied by the source; LongURL is the input to the
// shortener; Domain is an optional routing attribute passed through verbatim.
type WorkItem struct {
	ItemID  string `json:"item_id"`
	LongURL string `json:"long_url"`
	Domain  string `json:"domain,omitempty"`
}

// ResultRow is one row of the final artifact: the original item joined with
// its stored result. ShortURL is empty when the result record was missing or
// expired at finalize time.
type ResultRow struct {
	WorkItem
	ShortURL string `json:"short_url"`
}

// DrainStatus is the outcome of a single drain tick.
type DrainStatus string

const (
	// DrainNextBatchScheduled means a non-empty remainder was persisted and
	// the clock will deliver another tick.
	DrainNextBatchScheduled DrainStatus = "next batch scheduled"
	// DrainQueueCompleted means the remainder was empty and the finalizer
	// was dispatched.
	DrainQueueCompleted DrainStatus = "queue completed"
	// DrainQueueAbsent means no queue exists for the job: either the job id
	// is unknown or a stray late tick arrived after finalization. The tick
	// no-ops.
	DrainQueueAbsent DrainStatus = "queue absent"
)

// ArtifactDescriptor describes the persisted final artifact.
type ArtifactDescriptor struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	ETag     string `json:"etag"`
	Rows     int    `json:"rows"`
	JoinGaps int    `json:"join_gaps"`
}

// QueueProperties describes a persisted queue snapshot, returned to the
// caller on job creation.
type QueueProperties struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	ETag string `json:"etag"`
}
