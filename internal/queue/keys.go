// Package queue provides the durable queue storage (S3-backed, full-file
// rewrites with optimistic concurrency), the CSV wire codec for work lists,
// and the SQS producers that dispatch per-item and finalize work to
// downstream workers.
package queue

// Job-scoped object keys in the jobs bucket. The queue key is rewritten on
// every tick; the original key is written once at creation and read only by
// the finalizer; the results key holds the final artifact.
func QueueKey(jobID string) string    { return "jobs/" + jobID + "/links.csv" }
func OriginalKey(jobID string) string { return "jobs/" + jobID + "/original.csv" }
func ResultsKey(jobID string) string  { return "jobs/" + jobID + "/results.csv" }
