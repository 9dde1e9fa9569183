package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"lapsecam/internal/calendar"
	"lapsecam/internal/capture"
	"lapsecam/internal/config"
	"lapsecam/internal/retry"
	"lapsecam/internal/scheduler"
	"lapsecam/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var zone = time.FixedZone("+03:00", 3*3600)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeAttempter returns scripted results and advances the clock by cost per
// attempt. Results beyond the script fail.
type fakeAttempter struct {
	mu      sync.Mutex
	clock   *fakeClock
	cost    time.Duration
	results []bool
	calls   int
}

func (a *fakeAttempter) Attempt(_ context.Context, s stream.Stream) capture.Outcome {
	a.mu.Lock()
	ok := a.calls < len(a.results) && a.results[a.calls]
	a.calls++
	a.mu.Unlock()
	a.clock.Advance(a.cost)
	if ok {
		return capture.Outcome{Stream: s, Path: "/frames/x.jpg"}
	}
	return capture.Outcome{Stream: s, Reason: capture.ReasonTimeout, Err: capture.ErrTimeout}
}

func (a *fakeAttempter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []capture.Outcome
	err      error
}

func (r *recordingRecorder) RecordCapture(_ context.Context, outcome capture.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return r.err
}

func defaultPolicy(t *testing.T) calendar.Policy {
	t.Helper()
	policy, err := calendar.FromConfig(config.Default().Schedule)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return policy
}

// cycleSleeper advances the fake clock on every sleep, records inter-cycle
// delays (anything longer than the retry delay), and stops the flag after
// the configured number of cycles.
type cycleSleeper struct {
	clock      *fakeClock
	flag       *scheduler.Flag
	retryDelay time.Duration
	stopAfter  int

	mu          sync.Mutex
	retryDelays []time.Duration
	cycleDelays []time.Duration
}

func (s *cycleSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.clock.Advance(d)
	s.mu.Lock()
	if d <= s.retryDelay {
		s.retryDelays = append(s.retryDelays, d)
		s.mu.Unlock()
		return ctx.Err()
	}
	s.cycleDelays = append(s.cycleDelays, d)
	stop := len(s.cycleDelays) >= s.stopAfter
	s.mu.Unlock()
	if stop {
		s.flag.Stop()
	}
	return ctx.Err()
}

func newLoop(t *testing.T, clock *fakeClock, attempter capture.Attempter, sleeper *cycleSleeper) *scheduler.Loop {
	t.Helper()
	flag := scheduler.NewFlag()
	sleeper.flag = flag
	sleeper.clock = clock
	return &scheduler.Loop{
		Stream:     stream.Stream{Index: 1, URL: "rtsp://cam/live"},
		Attempter:  attempter,
		Policy:     defaultPolicy(t),
		Budget:     3,
		RetryDelay: sleeper.retryDelay,
		Flag:       flag,
		Counter:    &retry.FailureCounter{},
		Now:        clock.Now,
		Sleep:      sleeper.Sleep,
	}
}

func TestRunExitsImmediatelyWhenFlagStopped(t *testing.T) {
	attempter := &fakeAttempter{clock: &fakeClock{}}
	flag := scheduler.NewFlag()
	flag.Stop()
	flag.Stop()

	loop := &scheduler.Loop{
		Stream:    stream.Stream{Index: 1},
		Attempter: attempter,
		Policy:    defaultPolicy(t),
		Flag:      flag,
	}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if attempter.Calls() != 0 {
		t.Fatalf("expected no attempts with a stopped flag, got %d", attempter.Calls())
	}
	if loop.Snapshot().State != scheduler.StateStopped {
		t.Fatalf("expected stopped state, got %s", loop.Snapshot().State)
	}
}

func TestRunEscalatesAfterExhaustingRetries(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 14, 0, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock, cost: 0}
	sleeper := &cycleSleeper{retryDelay: 2 * time.Second, stopAfter: 1}
	recorder := &recordingRecorder{}
	loop := newLoop(t, clock, attempter, sleeper)
	loop.Recorder = recorder

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if attempter.Calls() != 4 {
		t.Fatalf("expected 1 initial + 3 retry attempts, got %d", attempter.Calls())
	}
	if len(sleeper.retryDelays) != 3 {
		t.Fatalf("expected 3 fixed retry delays, got %v", sleeper.retryDelays)
	}
	if len(sleeper.cycleDelays) != 1 || sleeper.cycleDelays[0] != 2*time.Minute {
		t.Fatalf("expected a single 2m backoff, got %v", sleeper.cycleDelays)
	}
	if sleeper.cycleDelays[0] <= loop.Policy.SteadyInterval {
		t.Fatalf("expected backoff above steady interval, got %s", sleeper.cycleDelays[0])
	}

	snap := loop.Snapshot()
	if snap.Failures != 4 || snap.LastDecision.Kind != scheduler.KindBackoff || snap.LastDecision.Escalation != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(recorder.outcomes) != 4 {
		t.Fatalf("expected every attempt recorded, got %d", len(recorder.outcomes))
	}
}

func TestRunBackoffGrowsAcrossCycles(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock}
	sleeper := &cycleSleeper{retryDelay: time.Second, stopAfter: 3}
	loop := newLoop(t, clock, attempter, sleeper)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []time.Duration{2 * time.Minute, 4 * time.Minute, 8 * time.Minute}
	if len(sleeper.cycleDelays) != len(want) {
		t.Fatalf("unexpected delays %v", sleeper.cycleDelays)
	}
	for i := range want {
		if sleeper.cycleDelays[i] != want[i] {
			t.Fatalf("cycle %d: delay %s, want %s", i, sleeper.cycleDelays[i], want[i])
		}
	}
	if attempter.Calls() != 6 {
		t.Fatalf("expected 4 attempts then one per cycle, got %d", attempter.Calls())
	}
}

func TestRunKeepsSteadyCadenceDuringBusinessHours(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock, cost: 5 * time.Second, results: []bool{true, true}}
	sleeper := &cycleSleeper{retryDelay: time.Second, stopAfter: 2}
	loop := newLoop(t, clock, attempter, sleeper)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, d := range sleeper.cycleDelays {
		if d != 55*time.Second {
			t.Fatalf("expected steady interval minus elapsed (55s), got %v", sleeper.cycleDelays)
		}
	}
	snap := loop.Snapshot()
	if snap.Failures != 0 || snap.LastDecision.Kind != scheduler.KindSteady || !snap.LastOutcome.Success() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRunSlowAttemptSchedulesImmediately(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock, cost: 90 * time.Second, results: []bool{true, true}}
	flag := scheduler.NewFlag()
	var delays []time.Duration
	loop := &scheduler.Loop{
		Stream:    stream.Stream{Index: 2},
		Attempter: attempter,
		Policy:    defaultPolicy(t),
		Budget:    3,
		Flag:      flag,
		Now:       clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			flag.Stop()
			return nil
		},
	}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(delays) != 1 || delays[0] != 0 {
		t.Fatalf("expected zero delay after a slow attempt, got %v", delays)
	}
}

func TestRunUsesCalendarOutsideBusinessHours(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 20, 30, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock, results: []bool{true}}
	sleeper := &cycleSleeper{retryDelay: time.Second, stopAfter: 1}
	loop := newLoop(t, clock, attempter, sleeper)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(sleeper.cycleDelays) != 1 || sleeper.cycleDelays[0] != 9*time.Hour+30*time.Minute {
		t.Fatalf("expected wait until next morning check, got %v", sleeper.cycleDelays)
	}
	snap := loop.Snapshot()
	if snap.LastDecision.Kind != scheduler.KindCalendar || snap.LastDecision.Reason != calendar.ReasonAfterHours {
		t.Fatalf("unexpected decision %+v", snap.LastDecision)
	}
}

func TestFlagStopWakesSleepingLoop(t *testing.T) {
	attempter := &fakeAttempter{clock: &fakeClock{now: time.Date(2024, 3, 4, 21, 0, 0, 0, zone)}, results: []bool{true}}
	flag := scheduler.NewFlag()
	loop := &scheduler.Loop{
		Stream:    stream.Stream{Index: 1},
		Attempter: attempter,
		Policy:    defaultPolicy(t),
		Flag:      flag,
		Counter:   &retry.FailureCounter{},
		Now:       attempter.clock.Now,
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	deadline := time.After(5 * time.Second)
	for loop.Snapshot().State != scheduler.StateScheduling {
		select {
		case <-deadline:
			t.Fatal("loop never reached its inter-cycle sleep")
		case <-time.After(5 * time.Millisecond):
		}
	}
	flag.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit after flag stop")
	}
	if attempter.Calls() != 1 {
		t.Fatalf("expected no further attempts after stop, got %d", attempter.Calls())
	}
}

func TestContextCancelEndsLoop(t *testing.T) {
	attempter := &fakeAttempter{clock: &fakeClock{now: time.Date(2024, 3, 4, 21, 0, 0, 0, zone)}, results: []bool{true}}
	ctx, cancel := context.WithCancel(context.Background())
	loop := &scheduler.Loop{
		Stream:    stream.Stream{Index: 1},
		Attempter: attempter,
		Policy:    defaultPolicy(t),
		Flag:      scheduler.NewFlag(),
		Counter:   &retry.FailureCounter{},
		Now:       attempter.clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
	}
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecorderErrorsDoNotStopLoop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, zone)}
	attempter := &fakeAttempter{clock: clock, results: []bool{true, true}}
	sleeper := &cycleSleeper{retryDelay: time.Second, stopAfter: 2}
	loop := newLoop(t, clock, attempter, sleeper)
	loop.Recorder = &recordingRecorder{err: errors.New("disk full")}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if attempter.Calls() != 2 {
		t.Fatalf("expected loop to keep cycling, got %d attempts", attempter.Calls())
	}
}
