// Package main is the entrypoint for the Drain Worker Lambda function.
//
// The Drain Worker is invoked by the per-job EventBridge rule on every clock
// fire. Each invocation is one stateless drain tick: read the durable queue,
// dispatch up to threshold items to the shorten queue, then either persist
// the remainder or hand the job to the finalizer and delete the queue.
//
// This file handles dependency wiring (cold start) and payload parsing; the
// tick itself lives in internal/drain.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"linkdrain/internal/config"
	"linkdrain/internal/db"
	"linkdrain/internal/drain"
	"linkdrain/internal/metrics"
	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// tickInput is the raw rule payload. Threshold is a pointer so a missing
// field is distinguishable from an explicit zero, which is a valid (if
// unusual) throttle setting.
type tickInput struct {
	Threshold *int   `json:"threshold"`
	JobID     string `json:"jobId"`
}

// Handler adapts the drainer to the raw EventBridge constant-input payload.
type Handler struct {
	drainer *drain.Drainer
	logger  *slog.Logger
}

// Handle runs one drain tick. A malformed payload is a permanent error: the
// rule input is constant, so retrying the same invocation cannot help, and
// the error is surfaced for the rule's DLQ / alarm rather than swallowed.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (drain.TickResult, error) {
	var in tickInput
	if err := json.Unmarshal(raw, &in); err != nil {
		h.logger.ErrorContext(ctx, "malformed tick payload", "error", err)
		return drain.TickResult{}, types.NewAppError(types.ErrCodeValidationBadPayload,
			"tick payload is not valid JSON", err)
	}
	if in.JobID == "" || in.Threshold == nil {
		h.logger.ErrorContext(ctx, "incomplete tick payload", "payload", string(raw))
		return drain.TickResult{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"tick payload requires jobId and threshold", nil)
	}

	result, err := h.drainer.Tick(ctx, in.JobID, *in.Threshold)
	if err != nil {
		h.logger.ErrorContext(ctx, "drain tick failed", "job_id", in.JobID, "error", err)
		return drain.TickResult{}, err
	}
	return result, nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Drain Worker Lambda initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			o.UsePathStyle = true
		}
	})
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize registry pool", "error", err)
		os.Exit(1)
	}

	dispatcher := queue.NewDispatcher(sqsClient, cfg.AWS.ShortenQueueURL, cfg.AWS.FinalizeQueueURL, logger)

	h := &Handler{
		drainer: &drain.Drainer{
			Queues:      queue.NewStore(s3Client, cfg.AWS.JobsBucket),
			Items:       dispatcher,
			Finalize:    dispatcher,
			Jobs:        db.NewJobRepository(pool),
			Metrics:     metrics.NewPublisher(cwClient, cfg.AWS.MetricNamespace),
			Concurrency: cfg.Drain.DispatchConcurrency,
			Log:         logger,
		},
		logger: logger,
	}

	logger.Info("Drain Worker Lambda initialized",
		"jobs_bucket", cfg.AWS.JobsBucket,
		"shorten_queue", cfg.AWS.ShortenQueueURL,
		"finalize_queue", cfg.AWS.FinalizeQueueURL,
	)

	lambda.Start(h.Handle)
}
