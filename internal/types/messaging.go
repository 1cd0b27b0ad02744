package types

// TickPayload is the constant JSON the clock rule delivers to the drain
// worker on every fire. Both fields are required; a tick with either missing
// is rejected before any state is touched.
type TickPayload struct {
	Threshold int    `json:"threshold"`
	JobID     string `json:"jobId"`
}

// ShortenMessage is the SQS envelope for one unit of rate-limited work,
// sent fire-and-forget by the drain worker and consumed by the item worker.
type ShortenMessage struct {
	JobID   string `json:"job_id"`
	ItemID  string `json:"item_id"`
	LongURL string `json:"long_url"`
	Domain  string `json:"domain,omitempty"`
}

// FinalizeMessage is the SQS envelope dispatched exactly when a tick observes
// an empty remainder. Consumed by the finalizer.
type FinalizeMessage struct {
	JobID string `json:"job_id"`
}

// ResultKey builds the result-store key for one dispatched item. The format
// mirrors the job-scoped key the workers and the finalizer must agree on.
func ResultKey(jobID, itemID string) string {
	return jobID + "-" + itemID
}

// RuleName returns the clock rule identifier for a job. Created once by the
// controller, deleted once by the finalizer.
func RuleName(jobID string) string {
	return jobID + "-drain"
}
