// Package metrics publishes drain pipeline telemetry to CloudWatch.
package metrics

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchAPI is the subset of the CloudWatch SDK client used here.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher implements types.MetricPublisher on CloudWatch under a single
// namespace, dimensioned by job id.
type Publisher struct {
	client    CloudWatchAPI
	namespace string
}

// NewPublisher creates a Publisher for the given namespace.
func NewPublisher(client CloudWatchAPI, namespace string) *Publisher {
	return &Publisher{client: client, namespace: namespace}
}

// PublishTick emits ItemsDispatched and QueueRemaining for one drain tick.
func (p *Publisher) PublishTick(ctx context.Context, jobID string, dispatched, remaining int) error {
	dims := []cwTypes.Dimension{
		{Name: aws.String("JobId"), Value: aws.String(jobID)},
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("ItemsDispatched"),
				Value:      aws.Float64(float64(dispatched)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String("QueueRemaining"),
				Value:      aws.Float64(float64(remaining)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("metrics: failed to publish tick metrics: %w", err)
	}
	return nil
}

// PublishJoinGaps emits the count of original items whose result record was
// missing at finalize time.
func (p *Publisher) PublishJoinGaps(ctx context.Context, jobID string, gaps int) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwTypes.MetricDatum{
			{
				MetricName: aws.String("JoinGaps"),
				Value:      aws.Float64(float64(gaps)),
				Unit:       cwTypes.StandardUnitCount,
				Dimensions: []cwTypes.Dimension{
					{Name: aws.String("JobId"), Value: aws.String(jobID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("metrics: failed to publish join gap metric: %w", err)
	}
	return nil
}
