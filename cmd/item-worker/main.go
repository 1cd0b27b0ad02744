// Package main is the entrypoint for the Item Worker Lambda function.
//
// The Item Worker consumes shorten messages from the shorten SQS queue, calls
// the external shortening API once per message, and writes the result to the
// TTL-bound result store. The drain threshold and clock interval bound its
// aggregate invocation rate, so the worker itself carries no throttling.
//
// Failure handling per message:
//   - malformed body or missing fields: logged and ACKed, redelivery of a
//     constant payload cannot succeed
//   - shortener failure: logged and ACKed, no retry; the item surfaces as a
//     join gap in the final artifact
//   - result store failure: reported as a batch item failure so SQS
//     redelivers; the result write is idempotent, so redelivery is safe
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/redis/go-redis/v9"

	"linkdrain/internal/config"
	"linkdrain/internal/external"
	"linkdrain/internal/results"
	"linkdrain/internal/shorten"
	"linkdrain/internal/types"
)

// Handler holds the dependencies for the item worker Lambda handler.
type Handler struct {
	worker *shorten.Worker
	logger *slog.Logger
}

// Handle processes an SQS event containing one or more shorten messages.
// Lambda SQS integration uses partial batch responses: only messages whose
// failure is worth redelivering are returned in batchItemFailures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process shorten message",
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

// processMessage handles a single SQS message. A nil return ACKs the
// message; a non-nil return requests redelivery.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.ShortenMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "malformed shorten message, dropping",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	err := h.worker.Process(ctx, msg)
	if err == nil {
		return nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeValidationMissingField:
			// Constant payload, redelivery cannot fix it.
			h.logger.ErrorContext(ctx, "invalid shorten message, dropping",
				"message_id", record.MessageId,
				"error", err,
			)
			return nil
		case types.ErrCodeUpstreamShortener:
			// One attempt per item. The finalizer records the gap.
			h.logger.WarnContext(ctx, "shorten attempt failed, item becomes a join gap",
				"job_id", msg.JobID,
				"item_id", msg.ItemID,
				"error", err,
			)
			return nil
		}
	}

	// Result store or unexpected failure: let SQS redeliver.
	return err
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Item Worker Lambda initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Results.RedisAddr,
		Password: cfg.Results.RedisPassword,
		DB:       cfg.Results.RedisDB,
	})

	shortener := external.NewShortenerClient(
		&http.Client{Timeout: cfg.Shortener.Timeout},
		cfg.Shortener.BaseURL,
		cfg.Shortener.Token,
		cfg.Shortener.DefaultDomain,
	)

	h := &Handler{
		worker: &shorten.Worker{
			Shortener: shortener,
			Results:   results.NewStore(redisClient),
			Log:       logger,
		},
		logger: logger,
	}

	logger.Info("Item Worker Lambda initialized",
		"shortener_base_url", cfg.Shortener.BaseURL,
		"default_domain", cfg.Shortener.DefaultDomain,
		"result_store", cfg.Results.RedisAddr,
	)

	lambda.Start(h.Handle)
}
