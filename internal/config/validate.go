package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. An empty stream list is
// accepted here so that CLI commands other than run can operate on a fresh
// configuration; the daemon rejects it at start.
func (c *Config) Validate() error {
	if err := c.validateStreams(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateTimelapse(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStreams() error {
	for i, raw := range c.Streams {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("streams[%d]: %w", i, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("streams[%d] must be an absolute URL with scheme and host, got %q", i, raw)
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.FramesDir == "" {
		return errors.New("paths.frames_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.Quality < 0 || c.Capture.Quality > 100 {
		return errors.New("capture.quality must be between 0 and 100")
	}
	if c.Capture.TimeoutSeconds <= 0 {
		return errors.New("capture.timeout_seconds must be positive")
	}
	switch c.Capture.Transport {
	case "tcp", "udp", "http", "https":
	default:
		return fmt.Errorf("capture.transport must be one of tcp, udp, http, https (got %q)", c.Capture.Transport)
	}
	if strings.ContainsAny(c.Capture.ImageExtension, `/\`) {
		return errors.New("capture.image_extension must not contain path separators")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	s := c.Schedule
	if err := validateHour("schedule.rest_day_end_hour", s.RestDayEndHour, 24); err != nil {
		return err
	}
	if err := validateHour("schedule.morning_check_hour", s.MorningCheckHour, 23); err != nil {
		return err
	}
	if err := validateHour("schedule.business_start_hour", s.BusinessStartHour, 23); err != nil {
		return err
	}
	if err := validateHour("schedule.business_end_hour", s.BusinessEndHour, 24); err != nil {
		return err
	}
	if s.MorningCheckHour > s.BusinessStartHour {
		return errors.New("schedule.morning_check_hour must not be later than schedule.business_start_hour")
	}
	if s.BusinessStartHour >= s.BusinessEndHour {
		return errors.New("schedule.business_start_hour must be earlier than schedule.business_end_hour")
	}
	if s.SteadyIntervalSeconds <= 0 {
		return errors.New("schedule.steady_interval_seconds must be positive")
	}
	if s.MaxBackoffSeconds < s.SteadyIntervalSeconds {
		return errors.New("schedule.max_backoff_seconds must be at least schedule.steady_interval_seconds")
	}
	if s.MaxDelaySeconds < 86400 {
		return errors.New("schedule.max_delay_seconds must cover at least one day (86400)")
	}
	if s.MaxDelaySeconds < s.MaxBackoffSeconds {
		return errors.New("schedule.max_delay_seconds must be at least schedule.max_backoff_seconds")
	}
	if s.ImmediateRetries < 0 {
		return errors.New("schedule.immediate_retries must be non-negative")
	}
	if s.RetryDelayMillis < 0 {
		return errors.New("schedule.retry_delay_ms must be non-negative")
	}
	switch s.PreOpenStrategy {
	case PreOpenExponential, PreOpenStepped:
	default:
		return fmt.Errorf("schedule.pre_open_strategy must be %q or %q (got %q)", PreOpenExponential, PreOpenStepped, s.PreOpenStrategy)
	}
	if s.PreOpenMinIntervalSeconds <= 0 {
		return errors.New("schedule.pre_open_min_interval_seconds must be positive")
	}
	if s.PreOpenMaxIntervalSeconds < s.PreOpenMinIntervalSeconds {
		return errors.New("schedule.pre_open_max_interval_seconds must be at least schedule.pre_open_min_interval_seconds")
	}
	if s.PreOpenDivisor < 1 {
		return errors.New("schedule.pre_open_divisor must be at least 1")
	}
	previous := 0
	for i, step := range s.PreOpenStepsSeconds {
		if step <= 0 {
			return fmt.Errorf("schedule.pre_open_steps_seconds[%d] must be positive", i)
		}
		if step < previous {
			return errors.New("schedule.pre_open_steps_seconds must be non-decreasing")
		}
		previous = step
	}
	return nil
}

func validateHour(key string, value, max int) error {
	if value < 0 || value > max {
		return fmt.Errorf("%s must be between 0 and %d", key, max)
	}
	return nil
}

func (c *Config) validateTimelapse() error {
	if c.Timelapse.FrameRate <= 0 {
		return errors.New("timelapse.frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.FailureThreshold < 1 {
		return errors.New("notifications.failure_threshold must be at least 1")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL (got %q)", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}
