// Package shorten implements the per-item worker: one rate-limited shorten
// call per message, result written to the result store under the job-scoped
// key. The worker has no queue access and no knowledge of batching; the
// drain threshold and clock interval bound its aggregate invocation rate.
package shorten

import (
	"context"
	"log/slog"
	"time"

	"linkdrain/internal/types"
)

// Worker processes shorten messages.
type Worker struct {
	Shortener types.Shortener
	Results   types.ResultStore
	Log       *slog.Logger
}

// Process handles one shorten message: a single synchronous call to the
// external API, then a TTL-bound result write. There is no retry on a
// transform failure; the item simply surfaces as a join gap at finalize
// time if the transport never redelivers the message.
func (w *Worker) Process(ctx context.Context, msg types.ShortenMessage) error {
	if msg.JobID == "" || msg.ItemID == "" || msg.LongURL == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField,
			"shorten message requires job_id, item_id and long_url", nil)
	}

	log := w.Log.With("job_id", msg.JobID, "item_id", msg.ItemID)
	log.DebugContext(ctx, "shortening item", "long_url", msg.LongURL, "domain", msg.Domain)

	link, err := w.Shortener.Shorten(ctx, msg.LongURL, msg.Domain)
	if err != nil {
		log.ErrorContext(ctx, "shorten call failed", "error", err)
		return err
	}

	key := types.ResultKey(msg.JobID, msg.ItemID)
	if err := w.Results.Put(ctx, key, link, types.ResultTTLSeconds*time.Second); err != nil {
		log.ErrorContext(ctx, "failed to store result", "error", err)
		return err
	}

	log.InfoContext(ctx, "item shortened", "short_url", link)
	return nil
}
