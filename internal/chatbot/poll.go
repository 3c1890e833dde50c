package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"AssistantChat/internal/assistants"
	"AssistantChat/internal/session"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PollPolicy bounds the wait for a run to finish.
// MaxAttempts of 0 removes the attempt cap; Timeout of 0 leaves only the caller's context.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// DefaultPollPolicy checks once a second for up to two minutes
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    time.Second,
		MaxAttempts: 120,
	}
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// waitForRun polls the run until it leaves the queued/in-progress states.
// Each status check is preceded by one poll interval.
func (c *Controller) waitForRun(ctx context.Context, api API, threadID string, turn *session.Turn, logger *slog.Logger) (*assistants.Run, error) {
	pollCtx := ctx
	if c.poll.Timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, c.poll.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		if c.poll.MaxAttempts > 0 && attempt > c.poll.MaxAttempts {
			return nil, &assistants.Error{
				Kind:    assistants.KindTimeout,
				Op:      "get_run",
				Message: fmt.Sprintf("run did not complete after %d status checks", c.poll.MaxAttempts),
			}
		}

		if err := c.sleep(pollCtx, c.poll.Interval); err != nil {
			return nil, c.pollInterrupted(ctx, pollCtx, err)
		}

		if err := turn.Advance(session.TurnPolling); err != nil {
			return nil, err
		}
		c.countPoll(ctx)

		run, err := api.GetRun(pollCtx, threadID, turn.RunID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, c.pollInterrupted(ctx, pollCtx, err)
			}
			return nil, err
		}

		logger.Debug("run status", "run_id", turn.RunID, "status", run.Status, "attempt", attempt)
		if !run.Status.Pending() {
			return run, nil
		}
	}
}

// pollInterrupted tells a caller cancellation apart from the poll deadline
func (c *Controller) pollInterrupted(ctx, pollCtx context.Context, cause error) error {
	if ctx.Err() == nil && errors.Is(pollCtx.Err(), context.DeadlineExceeded) {
		return &assistants.Error{
			Kind:    assistants.KindTimeout,
			Op:      "get_run",
			Message: fmt.Sprintf("run did not complete within %s", c.poll.Timeout),
			Err:     cause,
		}
	}
	return &assistants.Error{Kind: assistants.KindCanceled, Op: "get_run", Message: "request canceled", Err: cause}
}

func (c *Controller) countPoll(ctx context.Context) {
	if c.polls == nil {
		return
	}
	c.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("component", "chatbot")))
}
