package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"lapsecam/internal/catalog"
	"lapsecam/internal/config"
	"lapsecam/internal/fleet"
	"lapsecam/internal/logging"
	"lapsecam/internal/scheduler"
)

// LockFileName is the single-instance lock inside the log directory.
const LockFileName = "lapsecam.lock"

var (
	// ErrAlreadyRunning is returned when another process holds the lock.
	ErrAlreadyRunning = errors.New("another lapsecam instance is already running")
	// ErrNotStarted is returned by Wait before Start succeeds.
	ErrNotStarted = errors.New("daemon not started")
)

// Daemon coordinates the capture loops and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *catalog.Store
	fleet  *fleet.Coordinator

	lockPath string
	lock     *flock.Flock

	locked  atomic.Bool
	running atomic.Bool
	started atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Capturing    bool
	Streams      []scheduler.Snapshot
	CatalogPath  string
	LockFilePath string
}

// New constructs a daemon around an unstarted coordinator. store may be nil
// when the catalog is unavailable.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, coord *fleet.Coordinator) (*Daemon, error) {
	if cfg == nil || coord == nil {
		return nil, errors.New("daemon requires config and fleet coordinator")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		fleet:    coord,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Acquire takes the single-instance lock without starting capture. State
// shared with other instances (pid file, log pointer) must only be touched
// after it succeeds. Acquire is a no-op once the lock is held.
func (d *Daemon) Acquire() error {
	if d.locked.Load() {
		return nil
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, d.lockPath)
	}
	d.locked.Store(true)
	return nil
}

// Start acquires the lock if needed and launches every capture loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() || d.started.Load() {
		return errors.New("daemon already started")
	}
	if err := d.Acquire(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.fleet.Start(runCtx); err != nil {
		cancel()
		d.unlock()
		return fmt.Errorf("start capture loops: %w", err)
	}
	d.cancel = cancel
	d.started.Store(true)
	d.running.Store(true)
	d.logger.Info("lapsecam daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("streams", len(d.fleet.Streams())),
	)
	return nil
}

// Stop is the operator stop: loops finish in-flight captures and exit at
// their next cycle boundary.
func (d *Daemon) Stop() {
	d.fleet.Stop()
}

// Wait blocks until every loop has exited, then releases the lock. Loops
// ended by context cancellation are not reported as an error.
func (d *Daemon) Wait(ctx context.Context) error {
	if !d.started.Load() {
		return ErrNotStarted
	}
	err := d.fleet.Wait(ctx)
	select {
	case <-d.fleet.Done():
		d.finish()
	default:
		// ctx ended first; loops are still running.
		return err
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown cancels the run context, killing in-flight grabbers.
func (d *Daemon) Shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Close cancels any running loops and releases the lock and catalog.
func (d *Daemon) Close() error {
	d.Shutdown()
	if d.started.Load() {
		<-d.fleet.Done()
	}
	d.finish()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Capturing:    d.running.Load() && d.fleet.Capturing(),
		Streams:      d.fleet.Snapshots(),
		LockFilePath: d.lockPath,
	}
	if d.store != nil {
		status.CatalogPath = d.store.Path()
	}
	return status
}

func (d *Daemon) finish() {
	if d.running.Swap(false) {
		d.logger.Info("lapsecam daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	}
	d.unlock()
}

func (d *Daemon) unlock() {
	if !d.locked.Swap(false) {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance running"),
		)
	}
}
