// Package main is the entrypoint for the Finalizer Lambda function.
//
// The Finalizer consumes finalize messages from the finalize SQS queue. For
// each message it joins the job's immutable original snapshot with the
// result store, writes the final artifact to the jobs bucket, and tears down
// the job's EventBridge rule. Finalize is idempotent, so redelivery of a
// message converges on the same end state.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"linkdrain/internal/clock"
	"linkdrain/internal/config"
	"linkdrain/internal/db"
	"linkdrain/internal/merge"
	"linkdrain/internal/metrics"
	"linkdrain/internal/queue"
	"linkdrain/internal/results"
	"linkdrain/internal/types"
)

// Handler holds the dependencies for the finalizer Lambda handler.
type Handler struct {
	merger *merge.Merger
	logger *slog.Logger
}

// Handle processes an SQS event of finalize messages with partial batch
// responses: a failed finalize is redelivered, a malformed or incomplete
// message is dropped.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process finalize message",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.FinalizeMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "malformed finalize message, dropping",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	artifact, err := h.merger.Finalize(ctx, msg)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeValidationMissingField {
			h.logger.ErrorContext(ctx, "invalid finalize message, dropping",
				"message_id", record.MessageId,
				"error", err,
			)
			return nil
		}
		return err
	}

	h.logger.InfoContext(ctx, "job finalized",
		"job_id", msg.JobID,
		"artifact_key", artifact.Key,
		"rows", artifact.Rows,
		"join_gaps", artifact.JoinGaps,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Finalizer Lambda initializing (cold start)")

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
	ebClient := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Results.RedisAddr,
		Password: cfg.Results.RedisPassword,
		DB:       cfg.Results.RedisDB,
	})

	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize registry pool", "error", err)
		os.Exit(1)
	}

	store := queue.NewStore(s3Client, cfg.AWS.JobsBucket)

	h := &Handler{
		merger: &merge.Merger{
			Snapshots: store,
			Artifacts: store,
			Results:   results.NewStore(redisClient),
			Clock:     clock.NewRuleClock(ebClient, cfg.AWS.DrainTargetArn, cfg.AWS.DrainTargetRole, logger),
			Jobs:      db.NewJobRepository(pool),
			Metrics:   metrics.NewPublisher(cwClient, cfg.AWS.MetricNamespace),
			Gzip:      cfg.Drain.GzipArtifact,
			Log:       logger,
		},
		logger: logger,
	}

	logger.Info("Finalizer Lambda initialized",
		"jobs_bucket", cfg.AWS.JobsBucket,
		"gzip_artifact", cfg.Drain.GzipArtifact,
	)

	lambda.Start(h.Handle)
}
