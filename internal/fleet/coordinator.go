// Package fleet starts one scheduler loop per configured stream and stops
// them together on operator command.
package fleet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lapsecam/internal/calendar"
	"lapsecam/internal/capture"
	"lapsecam/internal/logging"
	"lapsecam/internal/retry"
	"lapsecam/internal/scheduler"
	"lapsecam/internal/stream"
)

// ErrAlreadyStarted is returned by Start when the loops are already running.
var ErrAlreadyStarted = errors.New("fleet already started")

// Settings is shared by every loop in the fleet.
type Settings struct {
	Policy     calendar.Policy
	Budget     int
	RetryDelay time.Duration
	Attempter  capture.Attempter
	Recorder   scheduler.Recorder
	Logger     *slog.Logger
	// Now and Sleep override the wall clock and sleeper in tests.
	Now   func() time.Time
	Sleep retry.Sleeper
}

// Coordinator owns the loops and the capture flag. Each loop gets its own
// failure counter.
type Coordinator struct {
	streams []stream.Stream
	loops   []*scheduler.Loop
	flag    *scheduler.Flag
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

// New builds one loop per stream. Nothing runs until Start.
func New(streams []stream.Stream, settings Settings) *Coordinator {
	flag := scheduler.NewFlag()
	c := &Coordinator{
		streams: append([]stream.Stream(nil), streams...),
		flag:    flag,
		logger:  logging.NewComponentLogger(settings.Logger, "fleet"),
		done:    make(chan struct{}),
	}
	for _, s := range c.streams {
		c.loops = append(c.loops, &scheduler.Loop{
			Stream:     s,
			Attempter:  settings.Attempter,
			Policy:     settings.Policy,
			Budget:     settings.Budget,
			RetryDelay: settings.RetryDelay,
			Flag:       flag,
			Counter:    &retry.FailureCounter{},
			Recorder:   settings.Recorder,
			Logger:     settings.Logger,
			Now:        settings.Now,
			Sleep:      settings.Sleep,
		})
	}
	return c
}

// Start launches every loop immediately. Loops run until Stop or until ctx
// is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	var group errgroup.Group
	for _, loop := range c.loops {
		group.Go(func() error {
			return loop.Run(ctx)
		})
	}
	go func() {
		err := group.Wait()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	}()

	c.logger.Info("capture loops started",
		logging.String(logging.FieldEventType, "fleet_started"),
		logging.Int("streams", len(c.loops)),
	)
	return nil
}

// Stop clears the capture flag. In-flight attempts finish; loops exit at
// their next cycle boundary.
func (c *Coordinator) Stop() {
	if !c.flag.Capturing() {
		return
	}
	c.flag.Stop()
	c.logger.Info("stop requested; loops will exit after in-flight captures",
		logging.String(logging.FieldEventType, "fleet_stop_requested"),
	)
}

// Capturing reports whether the capture flag is still set.
func (c *Coordinator) Capturing() bool {
	return c.flag.Capturing()
}

// Done is closed once every loop has exited. It never closes if Start was
// not called.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until every loop exits or ctx ends. A loop ended by context
// cancellation reports that cancellation here.
func (c *Coordinator) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshots returns per-stream state in stream order.
func (c *Coordinator) Snapshots() []scheduler.Snapshot {
	snaps := make([]scheduler.Snapshot, 0, len(c.loops))
	for _, loop := range c.loops {
		snaps = append(snaps, loop.Snapshot())
	}
	return snaps
}

// Streams returns the streams the fleet was built for.
func (c *Coordinator) Streams() []stream.Stream {
	return append([]stream.Stream(nil), c.streams...)
}
