package timelapse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lapsecam/internal/config"
	"lapsecam/internal/logging"
	"lapsecam/internal/media/ffprobe"
	"lapsecam/internal/stream"
)

// stderrLimit bounds the ffmpeg diagnostics kept for error messages.
const stderrLimit = 2048

var (
	// ErrNoFrames is returned when the pattern matches no files.
	ErrNoFrames = errors.New("no frames match pattern")
	// ErrVerify is returned when the encoded video fails the ffprobe check.
	ErrVerify = errors.New("timelapse verification failed")
)

// Options configures the encoder invocation.
type Options struct {
	Binary      string
	FFprobe     string
	Codec       string
	PixelFormat string
}

// OptionsFromConfig converts the timelapse section into Options.
func OptionsFromConfig(cfg config.Timelapse) Options {
	return Options{
		Binary:      cfg.AssemblerBinary,
		FFprobe:     cfg.FFprobeBinary,
		Codec:       cfg.Codec,
		PixelFormat: cfg.PixelFormat,
	}
}

// Request describes one assembly job.
type Request struct {
	Pattern   string
	FrameRate int
	Output    string
}

// Result describes the encoded video.
type Result struct {
	Output   string
	Frames   int
	Duration time.Duration
	Size     int64
}

// Assembler runs ffmpeg and ffprobe.
type Assembler struct {
	opts   Options
	logger *slog.Logger
	probe  func(ctx context.Context, binary, path string) (ffprobe.Result, error)
}

// NewAssembler constructs an Assembler, defaulting binaries to ffmpeg and ffprobe.
func NewAssembler(opts Options, logger *slog.Logger) *Assembler {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobe) == "" {
		opts.FFprobe = "ffprobe"
	}
	return &Assembler{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "timelapse"),
		probe:  ffprobe.Inspect,
	}
}

// OutputPath names a video for s assembled at the given instant.
func OutputPath(dir string, s stream.Stream, at time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", s.Label(), at.Format("20060102_150405")))
}

// Assemble encodes the frames matching req.Pattern into req.Output. A failed
// encode removes any partial output.
func (a *Assembler) Assemble(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Pattern) == "" {
		return Result{}, errors.New("timelapse: empty frame pattern")
	}
	if strings.TrimSpace(req.Output) == "" {
		return Result{}, errors.New("timelapse: empty output path")
	}
	if req.FrameRate <= 0 {
		return Result{}, fmt.Errorf("timelapse: frame rate must be positive, got %d", req.FrameRate)
	}

	matches, err := filepath.Glob(req.Pattern)
	if err != nil {
		return Result{}, fmt.Errorf("timelapse: bad pattern %q: %w", req.Pattern, err)
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoFrames, req.Pattern)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}

	logger := a.logger.With(logging.String("output", req.Output))
	logger.Info("assembling timelapse",
		logging.String(logging.FieldEventType, "timelapse_started"),
		logging.String("pattern", req.Pattern),
		logging.Int("frames", len(matches)),
		logging.Int("frame_rate", req.FrameRate),
	)

	started := time.Now()
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.opts.Binary, a.args(req)...) //nolint:gosec
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(req.Output)
		return Result{}, fmt.Errorf("timelapse encode: %w: %s", err, tail(stderr.String()))
	}

	probe, err := a.probe(ctx, a.opts.FFprobe, req.Output)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrVerify, err)
	}
	if count := probe.VideoStreamCount(); count != 1 {
		return Result{}, fmt.Errorf("%w: expected 1 video stream, found %d", ErrVerify, count)
	}

	result := Result{
		Output:   req.Output,
		Frames:   probe.FrameCount(),
		Duration: probe.Duration(),
		Size:     probe.SizeBytes(),
	}
	if result.Frames == 0 {
		result.Frames = len(matches)
	}
	if result.Duration == 0 {
		result.Duration = time.Duration(result.Frames) * time.Second / time.Duration(req.FrameRate)
	}

	logger.Info("timelapse assembled",
		logging.String(logging.FieldEventType, "timelapse_completed"),
		logging.Int("frames", result.Frames),
		logging.Duration("video_duration", result.Duration),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int64("size_bytes", result.Size),
	)
	return result, nil
}

func (a *Assembler) args(req Request) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", strconv.Itoa(req.FrameRate),
		"-pattern_type", "glob",
		"-i", req.Pattern,
	}
	if codec := strings.TrimSpace(a.opts.Codec); codec != "" {
		args = append(args, "-c:v", codec)
	}
	if pixFmt := strings.TrimSpace(a.opts.PixelFormat); pixFmt != "" {
		args = append(args, "-pix_fmt", pixFmt)
	}
	return append(args, req.Output)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrLimit {
		s = s[len(s)-stderrLimit:]
	}
	return s
}
