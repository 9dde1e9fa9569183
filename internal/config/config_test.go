package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lapsecam/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "lapsecam", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	wantFallback := filepath.Join(tempHome, ".local", "share", "lapsecam", "frames")
	if cfg.Paths.FallbackFramesDir != wantFallback {
		t.Fatalf("unexpected fallback dir: got %q want %q", cfg.Paths.FallbackFramesDir, wantFallback)
	}
	if cfg.Schedule.UTCOffset != "+03:00" {
		t.Fatalf("unexpected utc offset: %q", cfg.Schedule.UTCOffset)
	}
	if cfg.Schedule.SteadyInterval() != time.Minute {
		t.Fatalf("unexpected steady interval: %s", cfg.Schedule.SteadyInterval())
	}
	if cfg.Schedule.MaxBackoff() != time.Hour {
		t.Fatalf("unexpected max backoff: %s", cfg.Schedule.MaxBackoff())
	}
	if len(cfg.Streams) != 0 {
		t.Fatalf("expected no streams by default, got %v", cfg.Streams)
	}
}

func TestLoadCustomConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `streams = [" rtsp://cam-a/live ", "rtsp://cam-b/live", "rtsp://cam-a/live"]

[paths]
frames_dir = "~/frames"

[capture]
transport = "UDP"
image_extension = ".PNG"

[schedule]
utc_offset = "-0530"
rest_day = "SAT"
pre_open_strategy = "Stepped"
pre_open_steps_seconds = [120, 240]

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q (exists=%v)", resolved, exists)
	}
	if want := []string{"rtsp://cam-a/live", "rtsp://cam-b/live"}; strings.Join(cfg.Streams, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected streams: %v", cfg.Streams)
	}
	if cfg.Paths.FramesDir != filepath.Join(tempHome, "frames") {
		t.Fatalf("unexpected frames dir: %q", cfg.Paths.FramesDir)
	}
	if cfg.Capture.Transport != "udp" {
		t.Fatalf("unexpected transport: %q", cfg.Capture.Transport)
	}
	if cfg.Capture.ImageExtension != "png" {
		t.Fatalf("unexpected image extension: %q", cfg.Capture.ImageExtension)
	}
	if cfg.Schedule.UTCOffset != "-05:30" {
		t.Fatalf("unexpected utc offset: %q", cfg.Schedule.UTCOffset)
	}
	if cfg.Schedule.RestDay != "saturday" {
		t.Fatalf("unexpected rest day: %q", cfg.Schedule.RestDay)
	}
	if cfg.Schedule.PreOpenStrategy != config.PreOpenStepped {
		t.Fatalf("unexpected strategy: %q", cfg.Schedule.PreOpenStrategy)
	}
	steps := cfg.Schedule.PreOpenSteps()
	if len(steps) != 2 || steps[0] != 2*time.Minute || steps[1] != 4*time.Minute {
		t.Fatalf("unexpected steps: %v", steps)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[capture]\nfps = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LAPSECAM_STREAMS", "rtsp://one/live,rtsp://two/live")
	t.Setenv("LAPSECAM_CAPTURE_TIMEOUT_SECONDS", "45")
	t.Setenv("LAPSECAM_SCHEDULE_IMMEDIATE_RETRIES", "5")
	t.Setenv("LAPSECAM_LOGGING_LEVEL", "warn")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[capture]\ntimeout_seconds = 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Streams) != 2 || cfg.Streams[1] != "rtsp://two/live" {
		t.Fatalf("unexpected streams: %v", cfg.Streams)
	}
	if cfg.Capture.Timeout() != 45*time.Second {
		t.Fatalf("expected env to override file timeout, got %s", cfg.Capture.Timeout())
	}
	if cfg.Schedule.ImmediateRetries != 5 {
		t.Fatalf("unexpected retries: %d", cfg.Schedule.ImmediateRetries)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected level: %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Capture.Quality = 101 }, "capture.quality"},
		{"timeout", func(c *config.Config) { c.Capture.TimeoutSeconds = 0 }, "capture.timeout_seconds"},
		{"transport", func(c *config.Config) { c.Capture.Transport = "quic" }, "capture.transport"},
		{"stream url", func(c *config.Config) { c.Streams = []string{"camera-one"} }, "streams[0]"},
		{"business window", func(c *config.Config) { c.Schedule.BusinessEndHour = 8 }, "schedule.business_start_hour"},
		{"morning after open", func(c *config.Config) { c.Schedule.MorningCheckHour = 9 }, "schedule.morning_check_hour"},
		{"backoff below steady", func(c *config.Config) { c.Schedule.MaxBackoffSeconds = 30 }, "schedule.max_backoff_seconds"},
		{"short max delay", func(c *config.Config) { c.Schedule.MaxDelaySeconds = 3600 }, "schedule.max_delay_seconds"},
		{"negative retries", func(c *config.Config) { c.Schedule.ImmediateRetries = -1 }, "schedule.immediate_retries"},
		{"strategy", func(c *config.Config) { c.Schedule.PreOpenStrategy = "linear" }, "schedule.pre_open_strategy"},
		{"divisor", func(c *config.Config) { c.Schedule.PreOpenDivisor = 0 }, "schedule.pre_open_divisor"},
		{"steps order", func(c *config.Config) { c.Schedule.PreOpenStepsSeconds = []int{600, 300} }, "schedule.pre_open_steps_seconds"},
		{"frame rate", func(c *config.Config) { c.Timelapse.FrameRate = 0 }, "timelapse.frame_rate"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"sunday", time.Sunday},
		{"FRIDAY", time.Friday},
		{" Mon ", time.Monday},
		{"sat", time.Saturday},
	}
	for _, tt := range tests {
		got, err := config.ParseWeekday(tt.in)
		if err != nil {
			t.Fatalf("ParseWeekday(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWeekday(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := config.ParseWeekday("someday"); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"+03:00", 3 * 3600},
		{"-05:30", -(5*3600 + 30*60)},
		{"+0545", 5*3600 + 45*60},
		{"+3", 3 * 3600},
		{"Z", 0},
		{"UTC+02:00", 2 * 3600},
	}
	for _, tt := range tests {
		got, err := config.ParseUTCOffset(tt.in)
		if err != nil {
			t.Fatalf("ParseUTCOffset(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseUTCOffset(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"03:00", "+25:00", "+03:75", "+xx"} {
		if _, err := config.ParseUTCOffset(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestScheduleLocationUsesFixedOffset(t *testing.T) {
	cfg := config.Default()
	loc, err := cfg.Schedule.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	_, offset := time.Date(2024, 1, 1, 12, 0, 0, 0, loc).Zone()
	if offset != 3*3600 {
		t.Fatalf("unexpected offset: %d", offset)
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Streams) != 1 {
		t.Fatalf("expected one sample stream, got %v", cfg.Streams)
	}
}

func TestEnsureDirectoriesCreatesLogAndTimelapseDirs(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.TimelapseDir = filepath.Join(base, "videos")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.TimelapseDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
