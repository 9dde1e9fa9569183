package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lapsecam/internal/calendar"
	"lapsecam/internal/capture"
	"lapsecam/internal/logging"
	"lapsecam/internal/retry"
	"lapsecam/internal/stream"
)

// Kind names where a schedule decision came from.
type Kind string

const (
	KindSteady   Kind = "steady_interval"
	KindCalendar Kind = "calendar"
	KindBackoff  Kind = "calendar_backoff"
)

// State is the loop's position in its cycle.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateScheduling State = "scheduling"
	StateStopped    State = "stopped"
)

// Decision is the delay chosen at the end of a cycle.
type Decision struct {
	Delay      time.Duration
	Kind       Kind
	Reason     calendar.Reason
	Failures   int
	Escalation int
}

// Recorder persists attempt outcomes. Errors are logged and otherwise ignored.
type Recorder interface {
	RecordCapture(ctx context.Context, outcome capture.Outcome) error
}

// Snapshot is a point-in-time view of a loop for status output.
type Snapshot struct {
	Stream       stream.Stream
	State        State
	Failures     int
	Cycles       int
	LastOutcome  capture.Outcome
	LastDecision Decision
	NextRun      time.Time
}

// Loop is the long-running control loop for one stream. It owns the stream's
// failure counter.
type Loop struct {
	Stream     stream.Stream
	Attempter  capture.Attempter
	Policy     calendar.Policy
	Budget     int
	RetryDelay time.Duration
	Flag       *Flag
	Counter    *retry.FailureCounter
	Recorder   Recorder
	Logger     *slog.Logger
	// Now and Sleep default to the wall clock and retry.Sleep.
	Now   func() time.Time
	Sleep retry.Sleeper

	mu   sync.Mutex
	snap Snapshot
}

// Run cycles until the flag stops (returning nil) or ctx is cancelled
// (returning ctx.Err()). Capture failures never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	sleep := l.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	if l.Counter == nil {
		l.Counter = &retry.FailureCounter{}
	}
	if l.Flag == nil {
		l.Flag = NewFlag()
	}

	ctx = logging.WithStream(ctx, l.Stream.Label(), l.Stream.Index)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(l.Logger, "scheduler"))

	l.update(func(s *Snapshot) {
		s.Stream = l.Stream
		s.State = StateIdle
	})
	defer l.update(func(s *Snapshot) {
		s.State = StateStopped
		s.NextRun = time.Time{}
	})

	controller := &retry.Controller{
		Stream:    l.Stream,
		Attempter: l.Attempter,
		Budget:    l.Budget,
		Delay:     l.RetryDelay,
		Sleep:     sleep,
		Logger:    l.Logger,
		OnAttempt: func(outcome capture.Outcome) {
			l.update(func(s *Snapshot) { s.LastOutcome = outcome })
			l.record(ctx, logger, outcome)
		},
	}

	logger.Info("scheduler loop started", logging.String(logging.FieldEventType, "loop_started"))
	for {
		if !l.Flag.Capturing() {
			logger.Info("capture flag cleared; loop exiting", logging.String(logging.FieldEventType, "loop_stopped"))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		l.update(func(s *Snapshot) {
			s.State = StateCapturing
			s.NextRun = time.Time{}
		})
		started := now()
		result := controller.Run(ctx, l.Counter)
		finished := now()
		elapsed := finished.Sub(started)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.Flag.Capturing() {
			continue
		}

		decision := l.decide(finished, result, elapsed)
		next := finished.Add(decision.Delay)
		l.update(func(s *Snapshot) {
			s.State = StateScheduling
			s.Failures = l.Counter.Load()
			s.Cycles++
			s.LastDecision = decision
			s.NextRun = next
		})
		logger.Info("next capture scheduled",
			logging.String(logging.FieldEventType, "schedule_decision"),
			logging.String(logging.FieldDecisionType, string(decision.Kind)),
			logging.String("calendar_rule", string(decision.Reason)),
			logging.Duration("delay", decision.Delay),
			logging.Duration("cycle_elapsed", elapsed),
			logging.Int("attempts", result.Attempts),
			logging.Int("failures", decision.Failures),
			logging.Int("escalation", decision.Escalation),
			logging.Time("next_at", next),
		)

		if err := l.wait(ctx, sleep, decision.Delay); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		l.update(func(s *Snapshot) { s.State = StateIdle })
	}
}

// decide picks the next delay: calendar backoff once retries are exhausted,
// the remainder of the steady interval during business hours, otherwise the
// calendar's normal off-hours cadence.
func (l *Loop) decide(now time.Time, result retry.Result, elapsed time.Duration) Decision {
	decision := Decision{Failures: result.Failures}
	switch {
	case result.Exhausted:
		decision.Escalation = result.EscalationLevel(l.Budget)
		cal := l.Policy.Decide(now, decision.Escalation)
		decision.Kind = KindBackoff
		decision.Reason = cal.Reason
		decision.Delay = cal.Delay
	case l.Policy.InBusinessHours(now):
		decision.Kind = KindSteady
		decision.Reason = calendar.ReasonBusinessHours
		decision.Delay = max(l.Policy.SteadyInterval-elapsed, 0)
	default:
		cal := l.Policy.Decide(now, 0)
		decision.Kind = KindCalendar
		decision.Reason = cal.Reason
		decision.Delay = cal.Delay
	}
	return decision
}

// wait sleeps for d, waking early when the flag stops or ctx ends.
func (l *Loop) wait(ctx context.Context, sleep retry.Sleeper, d time.Duration) error {
	waitCtx, release := l.Flag.bind(ctx)
	defer release()
	return sleep(waitCtx, d)
}

func (l *Loop) record(ctx context.Context, logger *slog.Logger, outcome capture.Outcome) {
	if l.Recorder == nil {
		return
	}
	if err := l.Recorder.RecordCapture(context.WithoutCancel(ctx), outcome); err != nil {
		logging.WarnWithContext(logger, "capture not recorded in catalog", "catalog_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog.db permissions and disk space"),
			logging.String(logging.FieldImpact, "attempt missing from capture history"),
		)
	}
}

// Snapshot returns a copy of the loop's current state. Safe for concurrent use.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := l.snap
	if snap.Stream == (stream.Stream{}) {
		snap.Stream = l.Stream
	}
	if l.Counter != nil {
		snap.Failures = l.Counter.Load()
	}
	return snap
}

func (l *Loop) update(fn func(*Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.snap)
}
