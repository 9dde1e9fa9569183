package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"lapsecam/internal/config"
	"lapsecam/internal/logging"
	"lapsecam/internal/stream"
)

// Native mjpeg quality range: 2 is best, 31 is worst.
const (
	nativeQualityMin = 2
	nativeQualityMax = 31
)

const (
	stderrLimit = 4 * 1024
	// waitDelay bounds how long Wait blocks on inherited pipes after the
	// grabber has been killed.
	waitDelay = 2 * time.Second
)

// Attempter performs one capture for a stream.
type Attempter interface {
	Attempt(ctx context.Context, s stream.Stream) Outcome
}

// AttempterFunc adapts a function to Attempter.
type AttempterFunc func(ctx context.Context, s stream.Stream) Outcome

func (f AttempterFunc) Attempt(ctx context.Context, s stream.Stream) Outcome { return f(ctx, s) }

// PathBuilder names the destination of a frame captured at a given instant.
type PathBuilder interface {
	FramePath(s stream.Stream, at time.Time) string
}

// Options configures grabber invocation.
type Options struct {
	Binary    string
	Width     int
	Height    int
	Quality   int
	Transport string
	Timeout   time.Duration
}

// OptionsFromConfig converts the capture section into Options.
func OptionsFromConfig(cfg config.Capture) Options {
	return Options{
		Binary:    cfg.GrabberBinary,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Quality:   cfg.Quality,
		Transport: cfg.Transport,
		Timeout:   cfg.Timeout(),
	}
}

// Grabber captures single frames by running an external ffmpeg process.
type Grabber struct {
	opts   Options
	paths  PathBuilder
	logger *slog.Logger
	now    func() time.Time
}

// NewGrabber constructs a Grabber writing frames where paths dictates.
func NewGrabber(opts Options, paths PathBuilder, logger *slog.Logger) *Grabber {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	return &Grabber{
		opts:   opts,
		paths:  paths,
		logger: logging.NewComponentLogger(logger, "capture"),
		now:    time.Now,
	}
}

// Attempt runs the grabber once for s. The process group is killed when
// Options.Timeout elapses or ctx is cancelled. Failures are reported in the
// Outcome, never as a panic or error return.
func (g *Grabber) Attempt(ctx context.Context, s stream.Stream) Outcome {
	started := g.now()
	outcome := Outcome{Stream: s, Started: started, ExitCode: -1}
	outcome.Path = g.paths.FramePath(s, started)

	defer func() {
		outcome.Duration = time.Since(started)
		g.logOutcome(ctx, outcome)
	}()

	if err := os.MkdirAll(filepath.Dir(outcome.Path), 0o755); err != nil {
		outcome.Reason = ReasonOther
		outcome.Err = fmt.Errorf("create stream directory: %w", err)
		return outcome
	}

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if g.opts.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
	}
	defer cancel()

	stderr := &tailBuffer{limit: stderrLimit}
	cmd := exec.CommandContext(attemptCtx, g.opts.Binary, g.args(s.URL, outcome.Path)...) //nolint:gosec
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killGroup(cmd.Process.Pid) }
	cmd.WaitDelay = waitDelay
	runErr := cmd.Run()

	outcome.Stderr = strings.TrimSpace(stderr.String())
	if cmd.ProcessState != nil {
		outcome.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case ctx.Err() != nil:
		outcome.Reason = ReasonCanceled
		outcome.Err = ctx.Err()
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		outcome.Reason = ReasonTimeout
		outcome.Err = fmt.Errorf("%w after %s", ErrTimeout, g.opts.Timeout)
	case runErr != nil:
		outcome.Reason = Classify(outcome.Stderr)
		outcome.Err = fmt.Errorf("grabber: %w", runErr)
	default:
		if info, err := os.Stat(outcome.Path); err != nil || info.Size() == 0 {
			outcome.Reason = ReasonIncomplete
			outcome.Err = ErrIncomplete
		}
	}

	if !outcome.Success() {
		if err := os.Remove(outcome.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logging.WithContext(ctx, g.logger), "partial frame removal failed", "partial_frame_cleanup_failed",
				logging.String("path", outcome.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "a truncated frame may remain in the stream directory"),
			)
		}
	}
	return outcome
}

// killGroup kills the grabber and anything it spawned. The grabber leads its
// own process group, so wrapper scripts do not leave children behind.
func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}

func (g *Grabber) args(streamURL, path string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if transport := strings.TrimSpace(g.opts.Transport); transport != "" && isRTSP(streamURL) {
		args = append(args, "-rtsp_transport", transport)
	}
	args = append(args,
		"-i", streamURL,
		"-frames:v", "1",
		"-q:v", strconv.Itoa(NativeQuality(g.opts.Quality)),
	)
	if filter := scaleFilter(g.opts.Width, g.opts.Height); filter != "" {
		args = append(args, "-vf", filter)
	}
	return append(args, path)
}

func (g *Grabber) logOutcome(ctx context.Context, outcome Outcome) {
	logger := logging.WithContext(ctx, g.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "capture_attempt"),
		logging.String("outcome", outcome.Status()),
		logging.Duration("duration", outcome.Duration),
		logging.String("path", outcome.Path),
	}
	if outcome.Success() {
		logger.Info("frame captured", logging.Args(attrs...)...)
		return
	}
	attrs = append(attrs,
		logging.String("reason", string(outcome.Reason)),
		logging.Int("exit_code", outcome.ExitCode),
		logging.Error(outcome.Err),
	)
	if outcome.Stderr != "" {
		attrs = append(attrs, logging.String("stderr", lastLine(outcome.Stderr)))
	}
	logger.Warn("frame capture failed", logging.Args(attrs...)...)
}

// NativeQuality maps a 0-100 quality (100 best) onto the mjpeg qscale range.
func NativeQuality(quality int) int {
	quality = min(max(quality, 0), 100)
	scaled := (float64(100-quality) / 100) * float64(nativeQualityMax-nativeQualityMin)
	return int(math.Round(scaled + nativeQualityMin))
}

func scaleFilter(width, height int) string {
	if width <= 0 && height <= 0 {
		return ""
	}
	if width <= 0 {
		width = -1
	}
	if height <= 0 {
		height = -1
	}
	return fmt.Sprintf("scale=%d:%d", width, height)
}

func isRTSP(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "rtsp", "rtsps":
		return true
	default:
		return false
	}
}

func lastLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
