// Package clock manages the external periodic trigger that drives drain
// progress: one EventBridge rule per job, firing the drain worker with a
// constant {threshold, jobId} payload every interval. The rule and its
// target are the only long-lived resources a job owns; both are removed at
// finalize time, idempotently.
package clock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"linkdrain/internal/types"
)

// targetID identifies the single target bound to each job's rule.
const targetID = "drain-worker"

// EventBridgeAPI is the subset of the EventBridge SDK client used here.
type EventBridgeAPI interface {
	PutRule(ctx context.Context, params *eventbridge.PutRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutRuleOutput, error)
	PutTargets(ctx context.Context, params *eventbridge.PutTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutTargetsOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// RuleClock implements types.Clock on EventBridge rules.
type RuleClock struct {
	client    EventBridgeAPI
	targetArn string
	roleArn   string
	logger    *slog.Logger
}

// NewRuleClock creates a RuleClock whose rules invoke targetArn. roleArn may
// be empty for targets that authorize via resource policy.
func NewRuleClock(client EventBridgeAPI, targetArn, roleArn string, logger *slog.Logger) *RuleClock {
	return &RuleClock{client: client, targetArn: targetArn, roleArn: roleArn, logger: logger}
}

// rateExpression renders an EventBridge schedule expression. EventBridge
// requires the singular unit for an interval of one.
func rateExpression(minutes int) string {
	if minutes == 1 {
		return "rate(1 minute)"
	}
	return fmt.Sprintf("rate(%d minutes)", minutes)
}

// Create binds a recurring rule for the job, carrying the tick payload as
// constant target input. Returns the rule name, which is the job's clockId
// from creation until teardown.
func (c *RuleClock) Create(ctx context.Context, jobID string, intervalMinutes int, payload types.TickPayload) (string, error) {
	ruleName := types.RuleName(jobID)

	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("clock: failed to marshal tick payload: %w", err)
	}

	_, err = c.client.PutRule(ctx, &eventbridge.PutRuleInput{
		Name:               aws.String(ruleName),
		ScheduleExpression: aws.String(rateExpression(intervalMinutes)),
		State:              ebtypes.RuleStateEnabled,
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalClock,
			fmt.Sprintf("failed to create rule %s", ruleName), err)
	}

	target := ebtypes.Target{
		Id:    aws.String(targetID),
		Arn:   aws.String(c.targetArn),
		Input: aws.String(string(input)),
	}
	if c.roleArn != "" {
		target.RoleArn = aws.String(c.roleArn)
	}

	out, err := c.client.PutTargets(ctx, &eventbridge.PutTargetsInput{
		Rule:    aws.String(ruleName),
		Targets: []ebtypes.Target{target},
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalClock,
			fmt.Sprintf("failed to bind target to rule %s", ruleName), err)
	}
	if out.FailedEntryCount > 0 {
		return "", types.NewAppError(types.ErrCodeInternalClock,
			fmt.Sprintf("rule %s target binding reported %d failed entries", ruleName, out.FailedEntryCount), nil)
	}

	c.logger.InfoContext(ctx, "drain clock created",
		"rule_name", ruleName,
		"interval_minutes", intervalMinutes,
	)
	return ruleName, nil
}

// Teardown removes the rule's target and then the rule itself. Both calls
// treat an already-absent object as success: the finalizer may race a stray
// tick or a repeated finalize delivery, and teardown must stay idempotent.
func (c *RuleClock) Teardown(ctx context.Context, ruleName string) error {
	_, err := c.client.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
		Rule: aws.String(ruleName),
		Ids:  []string{targetID},
	})
	if err != nil && !isNotFound(err) {
		return types.NewAppError(types.ErrCodeInternalClock,
			fmt.Sprintf("failed to remove targets of rule %s", ruleName), err)
	}

	_, err = c.client.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
		Name: aws.String(ruleName),
	})
	if err != nil && !isNotFound(err) {
		return types.NewAppError(types.ErrCodeInternalClock,
			fmt.Sprintf("failed to delete rule %s", ruleName), err)
	}

	c.logger.InfoContext(ctx, "drain clock torn down", "rule_name", ruleName)
	return nil
}

func isNotFound(err error) bool {
	var notFound *ebtypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}
