// Package daemonrun assembles the capture daemon from configuration and runs
// it in the foreground until the operator stops it or a signal arrives.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lapsecam/internal/calendar"
	"lapsecam/internal/capture"
	"lapsecam/internal/catalog"
	"lapsecam/internal/config"
	"lapsecam/internal/daemon"
	"lapsecam/internal/fleet"
	"lapsecam/internal/layout"
	"lapsecam/internal/logging"
	"lapsecam/internal/notifications"
	"lapsecam/internal/preflight"
	"lapsecam/internal/scheduler"
	"lapsecam/internal/stream"
)

// ErrNoStreams is returned when the configuration lists no streams.
var ErrNoStreams = errors.New("no streams configured")

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Stdin carries operator commands; nil disables the console.
	Stdin io.Reader
	// Prompt receives console acknowledgements.
	Prompt io.Writer
}

// Run starts every capture loop and blocks until they have all exited.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if len(cfg.Streams) == 0 {
		return fmt.Errorf("%w: add stream URLs to the streams list in config.toml", ErrNoStreams)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := uuid.NewString()
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lapsecam-%s.log", stamp))
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		RunID:       runID,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	policy, err := calendar.FromConfig(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("build calendar: %w", err)
	}
	frames, err := layout.Resolve(cfg.Paths.FramesDir, cfg.Paths.FallbackFramesDir)
	if err != nil {
		return fmt.Errorf("resolve frames directory: %w", err)
	}
	paths := layout.New(frames.Dir, cfg.Capture.ImageExtension, policy.Location)

	store := openCatalog(logger, cfg)
	var next notifications.Recorder
	if store != nil {
		next = store
	}
	notifier := notifications.NewService(cfg)
	recorder := notifications.NewWatcher(next, notifier, cfg.Notifications.FailureThreshold, logger)
	coord := fleet.New(stream.FromURLs(cfg.Streams), fleet.Settings{
		Policy:     policy,
		Budget:     cfg.Schedule.ImmediateRetries,
		RetryDelay: cfg.Schedule.RetryDelay(),
		Attempter:  capture.NewGrabber(capture.OptionsFromConfig(cfg.Capture), paths, logger),
		Recorder:   recorder,
		Logger:     logger,
	})

	d, err := daemon.New(cfg, store, logger, coord)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Everything below touches state shared with a running instance.
	if err := d.Acquire(); err != nil {
		return err
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lapsecam.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lapsecam-*.log", Keep: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "lapsecam.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if store != nil {
		pruneCatalog(signalCtx, logger, store, cfg.Logging.RetentionDays)
	}
	if frames.UsedFallback {
		logging.WarnWithContext(logger, "primary frames directory unusable; using fallback", "frames_dir_fallback",
			logging.String("primary", cfg.Paths.FramesDir),
			logging.String("fallback", frames.Dir),
			logging.Error(frames.PrimaryErr),
			logging.String(logging.FieldErrorHint, "check that the primary frames volume is mounted and writable"),
		)
	}

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("capturing; type \"stop\" to finish",
		logging.String(logging.FieldEventType, "capture_running"),
		logging.String("frames_dir", frames.Dir),
		logging.String("log_file", logPath),
		logging.String("timezone", policy.Location.String()),
	)

	if opts.Stdin != nil {
		console := &fleet.Console{
			In:     opts.Stdin,
			Target: d,
			Status: func() []scheduler.Snapshot { return d.Status().Streams },
			Logger: logger,
			Prompt: opts.Prompt,
		}
		// A blocked stdin read is abandoned at process exit.
		go func() {
			if err := console.Run(signalCtx); err != nil {
				logger.Warn("operator console stopped", logging.Error(err))
			}
		}()
	}

	err = d.Wait(context.Background())
	logStreamSummary(logger, d.Status())
	if pubErr := notifier.Publish(context.Background(), notifications.EventCaptureStopped, notifications.Payload{
		"streams": len(cfg.Streams),
	}); pubErr != nil {
		logger.Warn("stop notification not delivered", logging.Error(pubErr))
	}
	logger.Info("lapsecam shutting down",
		logging.String(logging.FieldEventType, "shutdown"),
		logging.Bool("signal", signalCtx.Err() != nil && cmdCtx.Err() == nil),
	)
	return err
}

// logStreamSummary records where every loop stood when capture ended.
func logStreamSummary(logger *slog.Logger, status daemon.Status) {
	for _, snap := range status.Streams {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "stream_summary"),
			logging.String("stream", snap.Stream.Label()),
			logging.Int("cycles", snap.Cycles),
			logging.Int("failures", snap.Failures),
			logging.String("last_outcome", snap.LastOutcome.Status()),
		}
		if snap.LastDecision.Reason != "" {
			attrs = append(attrs, logging.String("last_reason", string(snap.LastDecision.Reason)))
		}
		logger.Info("stream summary", logging.Args(attrs...)...)
	}
	if status.CatalogPath != "" {
		logger.Info("capture attempts recorded",
			logging.String(logging.FieldEventType, "catalog_summary"),
			logging.String("catalog", status.CatalogPath),
		)
	}
}

// openCatalog opens the capture catalog. Failure is logged and capture
// continues without it.
func openCatalog(logger *slog.Logger, cfg *config.Config) *catalog.Store {
	store, err := catalog.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "capture catalog unavailable", "catalog_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete catalog.db in the log directory if the schema changed"),
			logging.String(logging.FieldImpact, "attempts are logged but not recorded for lapsecam captures"),
		)
		return nil
	}
	return store
}

// pruneCatalog drops rows older than the log retention window.
func pruneCatalog(ctx context.Context, logger *slog.Logger, store *catalog.Store, days int) {
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := store.PruneCaptures(ctx, cutoff)
	if err != nil {
		logger.Warn("catalog prune failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("pruned old capture records",
			logging.String(logging.FieldEventType, "catalog_pruned"),
			logging.Int64("removed", removed),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lapsecam.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, r := range results {
		attrs = append(attrs, logging.Bool(strings.ReplaceAll(strings.ToLower(r.Name), " ", "_"), r.Passed))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "captures may fail until this is fixed"),
		)
	}
}
