package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "LAPSECAM_"

// Paths contains directory configuration.
type Paths struct {
	FramesDir         string `toml:"frames_dir" env:"FRAMES_DIR"`
	FallbackFramesDir string `toml:"fallback_frames_dir" env:"FALLBACK_FRAMES_DIR"`
	TimelapseDir      string `toml:"timelapse_dir" env:"TIMELAPSE_DIR"`
	LogDir            string `toml:"log_dir" env:"LOG_DIR"`
}

// Capture contains frame grabber settings shared by every stream.
type Capture struct {
	GrabberBinary  string `toml:"grabber_binary" env:"GRABBER_BINARY"`
	Width          int    `toml:"width" env:"WIDTH"`
	Height         int    `toml:"height" env:"HEIGHT"`
	Quality        int    `toml:"quality" env:"QUALITY"`
	Transport      string `toml:"transport" env:"TRANSPORT"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	ImageExtension string `toml:"image_extension" env:"IMAGE_EXTENSION"`
}

// Schedule contains the working-hours calendar and retry budget.
type Schedule struct {
	UTCOffset                 string `toml:"utc_offset" env:"UTC_OFFSET"`
	RestDay                   string `toml:"rest_day" env:"REST_DAY"`
	RestDayEndHour            int    `toml:"rest_day_end_hour" env:"REST_DAY_END_HOUR"`
	MorningCheckHour          int    `toml:"morning_check_hour" env:"MORNING_CHECK_HOUR"`
	BusinessStartHour         int    `toml:"business_start_hour" env:"BUSINESS_START_HOUR"`
	BusinessEndHour           int    `toml:"business_end_hour" env:"BUSINESS_END_HOUR"`
	SteadyIntervalSeconds     int    `toml:"steady_interval_seconds" env:"STEADY_INTERVAL_SECONDS"`
	MaxBackoffSeconds         int    `toml:"max_backoff_seconds" env:"MAX_BACKOFF_SECONDS"`
	MaxDelaySeconds           int    `toml:"max_delay_seconds" env:"MAX_DELAY_SECONDS"`
	ImmediateRetries          int    `toml:"immediate_retries" env:"IMMEDIATE_RETRIES"`
	RetryDelayMillis          int    `toml:"retry_delay_ms" env:"RETRY_DELAY_MS"`
	PreOpenStrategy           string `toml:"pre_open_strategy" env:"PRE_OPEN_STRATEGY"`
	PreOpenMinIntervalSeconds int    `toml:"pre_open_min_interval_seconds" env:"PRE_OPEN_MIN_INTERVAL_SECONDS"`
	PreOpenMaxIntervalSeconds int    `toml:"pre_open_max_interval_seconds" env:"PRE_OPEN_MAX_INTERVAL_SECONDS"`
	PreOpenDivisor            int    `toml:"pre_open_divisor" env:"PRE_OPEN_DIVISOR"`
	PreOpenStepsSeconds       []int  `toml:"pre_open_steps_seconds" env:"PRE_OPEN_STEPS_SECONDS"`
}

// Timelapse contains video assembler settings.
type Timelapse struct {
	AssemblerBinary string `toml:"assembler_binary" env:"ASSEMBLER_BINARY"`
	FFprobeBinary   string `toml:"ffprobe_binary" env:"FFPROBE_BINARY"`
	FrameRate       int    `toml:"frame_rate" env:"FRAME_RATE"`
	Codec           string `toml:"codec" env:"CODEC"`
	PixelFormat     string `toml:"pixel_format" env:"PIXEL_FORMAT"`
}

// Notifications contains ntfy alert settings. An empty topic disables alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic" env:"NTFY_TOPIC"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds" env:"REQUEST_TIMEOUT_SECONDS"`
	FailureThreshold      int    `toml:"failure_threshold" env:"FAILURE_THRESHOLD"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format" env:"FORMAT"`
	Level         string `toml:"level" env:"LEVEL"`
	RetentionDays int    `toml:"retention_days" env:"RETENTION_DAYS"`
}

// Config encapsulates all configuration values for lapsecam.
//
// Configuration sections by subsystem:
//   - Streams: stream addresses, in index order
//   - Paths: frame, timelapse, and log directories
//   - Capture: frame grabber invocation
//   - Schedule: working-hours calendar, backoff, and retry budget
//   - Timelapse: video assembler invocation
//   - Notifications: ntfy alerts for degraded streams and new timelapses
//   - Logging: log format, level, and retention
type Config struct {
	Streams       []string      `toml:"streams" env:"STREAMS"`
	Paths         Paths         `toml:"paths" envPrefix:"PATHS_"`
	Capture       Capture       `toml:"capture" envPrefix:"CAPTURE_"`
	Schedule      Schedule      `toml:"schedule" envPrefix:"SCHEDULE_"`
	Timelapse     Timelapse     `toml:"timelapse" envPrefix:"TIMELAPSE_"`
	Notifications Notifications `toml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Logging       Logging       `toml:"logging" envPrefix:"LOGGING_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lapsecam/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file. The returned config has all path
// fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lapsecam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and timelapse directories. Frame
// directories are resolved separately because they carry a fallback.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.TimelapseDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout bounds one ntfy request.
func (n Notifications) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the hard bound on a single grabber invocation.
func (c Capture) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SteadyInterval returns the business-hours capture cadence.
func (s Schedule) SteadyInterval() time.Duration {
	return time.Duration(s.SteadyIntervalSeconds) * time.Second
}

// MaxBackoff returns the cap applied to failure-driven backoff.
func (s Schedule) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffSeconds) * time.Second
}

// MaxDelay returns the ceiling for any single schedule decision.
func (s Schedule) MaxDelay() time.Duration {
	return time.Duration(s.MaxDelaySeconds) * time.Second
}

// RetryDelay returns the fixed pause between immediate retries.
func (s Schedule) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMillis) * time.Millisecond
}

// PreOpenMinInterval returns the shortest pre-open polling interval.
func (s Schedule) PreOpenMinInterval() time.Duration {
	return time.Duration(s.PreOpenMinIntervalSeconds) * time.Second
}

// PreOpenMaxInterval returns the longest pre-open polling interval.
func (s Schedule) PreOpenMaxInterval() time.Duration {
	return time.Duration(s.PreOpenMaxIntervalSeconds) * time.Second
}

// PreOpenSteps returns the stepped pre-open intervals as durations.
func (s Schedule) PreOpenSteps() []time.Duration {
	steps := make([]time.Duration, 0, len(s.PreOpenStepsSeconds))
	for _, seconds := range s.PreOpenStepsSeconds {
		steps = append(steps, time.Duration(seconds)*time.Second)
	}
	return steps
}

// Location returns the fixed-offset zone the calendar is evaluated in.
func (s Schedule) Location() (*time.Location, error) {
	offset, err := ParseUTCOffset(s.UTCOffset)
	if err != nil {
		return nil, err
	}
	return time.FixedZone(FormatUTCOffset(offset), offset), nil
}

// Weekday returns the configured rest day.
func (s Schedule) Weekday() (time.Weekday, error) {
	return ParseWeekday(s.RestDay)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
