// Package main is the entrypoint for the Job Controller Lambda function.
//
// The Job Controller is invoked through API Gateway to create a drain job:
// it materializes the source list into the jobs bucket, snapshots it for the
// finalizer, creates the EventBridge rule that drives the drain, and inserts
// the registry row.
//
// This file handles dependency wiring (cold start) and the API Gateway
// request/response envelope; all business logic lives in internal/controller.
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
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator/v10"

	"linkdrain/internal/clock"
	"linkdrain/internal/config"
	"linkdrain/internal/controller"
	"linkdrain/internal/db"
	"linkdrain/internal/queue"
	"linkdrain/internal/types"
)

// Handler adapts the controller to the API Gateway proxy contract.
type Handler struct {
	controller *controller.Controller
	logger     *slog.Logger
}

// Handle processes one create-job request. Client errors (bad input) map to
// 4xx; anything after validation maps to a 5xx with a generic message.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	var createReq controller.CreateJobRequest
	if err := json.Unmarshal([]byte(req.Body), &createReq); err != nil {
		h.logger.ErrorContext(ctx, "malformed create-job body", "error", err)
		return errorResponse(http.StatusBadRequest, "validation_malformed_payload", "request body is not valid JSON"), nil
	}

	resp, err := h.controller.CreateJob(ctx, createReq)
	if err != nil {
		h.logger.ErrorContext(ctx, "create job failed", "error", err)
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return errorResponse(appErr.HTTPStatus(), string(appErr.Code), appErr.Message), nil
		}
		return errorResponse(http.StatusInternalServerError, "internal_unexpected_error", "server error"), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal response", "error", err)
		return errorResponse(http.StatusInternalServerError, "internal_unexpected_error", "server error"), nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func errorResponse(status int, code, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Job Controller Lambda initializing (cold start)")

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

	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize registry pool", "error", err)
		os.Exit(1)
	}

	h := &Handler{
		controller: &controller.Controller{
			Queues:   queue.NewStore(s3Client, cfg.AWS.JobsBucket),
			Clock:    clock.NewRuleClock(ebClient, cfg.AWS.DrainTargetArn, cfg.AWS.DrainTargetRole, logger),
			Jobs:     db.NewJobRepository(pool),
			Fetcher:  &controller.HTTPSourceFetcher{Client: http.DefaultClient},
			Validate: validator.New(),
			Log:      logger,
		},
		logger: logger,
	}

	logger.Info("Job Controller Lambda initialized", "jobs_bucket", cfg.AWS.JobsBucket)

	lambda.Start(h.Handle)
}
