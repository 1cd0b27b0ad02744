package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"linkdrain/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Dispatcher implements types.ItemDispatcher and types.FinalizeDispatcher
// over SQS. Sends are fire-and-forget at the result level: a nil return
// means the message was accepted by the queue, nothing more.
type Dispatcher struct {
	client           SQSSender
	shortenQueueURL  string
	finalizeQueueURL string
	logger           *slog.Logger
}

// NewDispatcher creates a Dispatcher bound to the shorten and finalize
// queues.
func NewDispatcher(client SQSSender, shortenQueueURL, finalizeQueueURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:           client,
		shortenQueueURL:  shortenQueueURL,
		finalizeQueueURL: finalizeQueueURL,
		logger:           logger,
	}
}

// DispatchShorten submits one unit of rate-limited work to the shorten queue.
func (d *Dispatcher) DispatchShorten(ctx context.Context, msg types.ShortenMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ShortenMessage: %w", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.shortenQueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDispatch,
			fmt.Sprintf("failed to dispatch item %s of job %s", msg.ItemID, msg.JobID), err)
	}

	d.logger.DebugContext(ctx, "shorten message dispatched",
		"job_id", msg.JobID,
		"item_id", msg.ItemID,
	)
	return nil
}

// DispatchFinalize submits the finalize step for a job to the finalize queue.
func (d *Dispatcher) DispatchFinalize(ctx context.Context, msg types.FinalizeMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal FinalizeMessage: %w", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.finalizeQueueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDispatch,
			fmt.Sprintf("failed to dispatch finalize for job %s", msg.JobID), err)
	}

	d.logger.InfoContext(ctx, "finalize message dispatched", "job_id", msg.JobID)
	return nil
}
