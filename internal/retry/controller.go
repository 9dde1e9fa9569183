// Package retry wraps capture attempts with an immediate-retry budget.
//
// A cycle attempts once, then retries after a fixed short delay while the
// stream's consecutive failure count stays within the budget. It never
// consults the calendar; escalation beyond the budget is the caller's job.
package retry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"lapsecam/internal/capture"
	"lapsecam/internal/logging"
	"lapsecam/internal/stream"
)

// FailureCounter holds one stream's consecutive failure count. Only the
// owning loop writes it; reads from other goroutines are safe.
type FailureCounter struct {
	value atomic.Int64
}

// Load returns the current count.
func (c *FailureCounter) Load() int {
	return int(c.value.Load())
}

// Increment adds one failure and returns the new count.
func (c *FailureCounter) Increment() int {
	return int(c.value.Add(1))
}

// Reset clears the count.
func (c *FailureCounter) Reset() {
	c.value.Store(0)
}

// Result summarizes one retry cycle.
type Result struct {
	Attempts  int
	Failures  int
	Exhausted bool
	Last      capture.Outcome
}

// EscalationLevel is how far the failure count has gone past the budget,
// used as the calendar's failure input. It is zero until the budget is
// exhausted.
func (r Result) EscalationLevel(budget int) int {
	return max(r.Failures-budget, 0)
}

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller runs attempts for one stream within an immediate-retry budget.
type Controller struct {
	Stream    stream.Stream
	Attempter capture.Attempter
	Budget    int
	Delay     time.Duration
	Sleep     Sleeper
	// OnAttempt, when set, observes every outcome in order.
	OnAttempt func(capture.Outcome)
	Logger    *slog.Logger
}

// Run attempts until success, until the failure count exceeds the budget,
// or until ctx is cancelled. The counter persists across cycles; an attempt
// cut short by cancellation leaves it unchanged.
func (c *Controller) Run(ctx context.Context, counter *FailureCounter) Result {
	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := logging.WithContext(ctx, logging.NewComponentLogger(c.Logger, "retry"))

	var result Result
	for {
		outcome := c.Attempter.Attempt(ctx, c.Stream)
		result.Attempts++
		result.Last = outcome
		if c.OnAttempt != nil {
			c.OnAttempt(outcome)
		}

		if outcome.Success() {
			counter.Reset()
			result.Failures = 0
			return result
		}
		if outcome.Canceled() {
			result.Failures = counter.Load()
			return result
		}

		result.Failures = counter.Increment()
		if result.Failures > c.Budget {
			result.Exhausted = true
			logger.Info("immediate retries exhausted",
				logging.String(logging.FieldEventType, "retry_exhausted"),
				logging.Int("failures", result.Failures),
				logging.Int("budget", c.Budget),
				logging.String("reason", string(outcome.Reason)),
			)
			return result
		}
		if ctx.Err() != nil {
			return result
		}

		logger.Debug("retrying capture",
			logging.String(logging.FieldEventType, "retry_scheduled"),
			logging.Int("failures", result.Failures),
			logging.Int("budget", c.Budget),
			logging.Duration("delay", c.Delay),
		)
		if err := sleep(ctx, c.Delay); err != nil {
			return result
		}
	}
}
