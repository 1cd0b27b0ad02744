// Package merge implements the finalize step: it joins the immutable
// original snapshot with the per-item results, emits the final artifact, and
// retires the job's clock. The join is total: one output row per original
// item, in original order, where a missing result is an explicit empty
// value, never a dropped row.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// SnapshotReader reads an ordered work list from blob storage.
// Satisfied by *queue.Store.
type SnapshotReader interface {
	Read(ctx context.Context, key string) ([]types.WorkItem, string, error)
}

// ArtifactWriter persists the final artifact. Satisfied by *queue.Store.
type ArtifactWriter interface {
	PutRaw(ctx context.Context, key string, body []byte, contentType, contentEncoding string) (types.QueueProperties, error)
}

// Merger executes the finalize step for completed jobs.
type Merger struct {
	Snapshots SnapshotReader
	Artifacts ArtifactWriter
	Results   types.ResultStore
	Clock     types.Clock
	Jobs      types.JobRepository
	Metrics   types.MetricPublisher
	// Gzip compresses the artifact and marks it Content-Encoding: gzip.
	Gzip bool
	Log  *slog.Logger
}

// Finalize joins the original snapshot with the result store and persists
// the artifact, then tears down the clock. Re-running finalize for the same
// job is safe: the artifact write is a plain overwrite and teardown treats
// absent clock objects as success, so an at-least-once finalize delivery
// converges on the same end state.
func (m *Merger) Finalize(ctx context.Context, msg types.FinalizeMessage) (*types.ArtifactDescriptor, error) {
	if msg.JobID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"finalize message requires job_id", nil)
	}

	log := m.Log.With("job_id", msg.JobID)

	original, _, err := m.Snapshots.Read(ctx, queue.OriginalKey(msg.JobID))
	if err != nil {
		return nil, err
	}

	rows := make([]types.ResultRow, 0, len(original))
	gaps := 0
	for _, item := range original {
		row := types.ResultRow{WorkItem: item}
		val, ok, err := m.Results.Get(ctx, types.ResultKey(msg.JobID, item.ItemID))
		if err != nil {
			return nil, err
		}
		if ok {
			row.ShortURL = val
		} else {
			gaps++
			log.WarnContext(ctx, "result record missing at finalize time",
				"item_id", item.ItemID,
			)
		}
		rows = append(rows, row)
	}

	body, err := queue.EncodeResults(rows)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalCodec,
			"failed to encode artifact", err)
	}

	encoding := ""
	if m.Gzip {
		body, err = gzipBytes(body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalCodec,
				"failed to compress artifact", err)
		}
		encoding = "gzip"
	}

	props, err := m.Artifacts.PutRaw(ctx, queue.ResultsKey(msg.JobID), body, "text/csv", encoding)
	if err != nil {
		return nil, err
	}

	if err := m.Metrics.PublishJoinGaps(ctx, msg.JobID, gaps); err != nil {
		log.WarnContext(ctx, "failed to publish join gap metric", "error", err)
	}

	if err := m.Clock.Teardown(ctx, types.RuleName(msg.JobID)); err != nil {
		// Artifact is persisted; a redelivered finalize retries teardown.
		return nil, err
	}

	if err := m.Jobs.MarkFinalized(ctx, msg.JobID); err != nil {
		log.WarnContext(ctx, "failed to mark job finalized in registry", "error", err)
	}

	log.InfoContext(ctx, "job finalized",
		"artifact_key", props.Key,
		"rows", len(rows),
		"join_gaps", gaps,
	)

	return &types.ArtifactDescriptor{
		Key:      props.Key,
		Size:     props.Size,
		ETag:     props.ETag,
		Rows:     len(rows),
		JoinGaps: gaps,
	}, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}
