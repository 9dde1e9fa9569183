package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

var weekdayFolder = cases.Fold()

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStreams()
	c.normalizeCapture()
	if err := c.normalizeSchedule(); err != nil {
		return err
	}
	c.normalizeTimelapse()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.FramesDir, err = expandPath(c.Paths.FramesDir); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FallbackFramesDir) == "" {
		c.Paths.FallbackFramesDir = defaultFallbackFramesDir
	}
	if c.Paths.FallbackFramesDir, err = expandPath(c.Paths.FallbackFramesDir); err != nil {
		return fmt.Errorf("paths.fallback_frames_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TimelapseDir) == "" {
		c.Paths.TimelapseDir = defaultTimelapseDir
	}
	if c.Paths.TimelapseDir, err = expandPath(c.Paths.TimelapseDir); err != nil {
		return fmt.Errorf("paths.timelapse_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStreams() {
	urls := make([]string, 0, len(c.Streams))
	for _, raw := range c.Streams {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	c.Streams = lo.Uniq(urls)
}

func (c *Config) normalizeCapture() {
	c.Capture.GrabberBinary = strings.TrimSpace(c.Capture.GrabberBinary)
	if c.Capture.GrabberBinary == "" {
		c.Capture.GrabberBinary = defaultGrabberBinary
	}
	c.Capture.Transport = strings.ToLower(strings.TrimSpace(c.Capture.Transport))
	if c.Capture.Transport == "" {
		c.Capture.Transport = defaultCaptureTransport
	}
	ext := strings.TrimPrefix(strings.TrimSpace(c.Capture.ImageExtension), ".")
	c.Capture.ImageExtension = strings.ToLower(ext)
	if c.Capture.ImageExtension == "" {
		c.Capture.ImageExtension = defaultImageExtension
	}
}

func (c *Config) normalizeSchedule() error {
	c.Schedule.UTCOffset = strings.TrimSpace(c.Schedule.UTCOffset)
	if c.Schedule.UTCOffset == "" {
		c.Schedule.UTCOffset = defaultUTCOffset
	}
	offset, err := ParseUTCOffset(c.Schedule.UTCOffset)
	if err != nil {
		return fmt.Errorf("schedule.utc_offset: %w", err)
	}
	c.Schedule.UTCOffset = FormatUTCOffset(offset)

	if strings.TrimSpace(c.Schedule.RestDay) == "" {
		c.Schedule.RestDay = defaultRestDay
	}
	day, err := ParseWeekday(c.Schedule.RestDay)
	if err != nil {
		return fmt.Errorf("schedule.rest_day: %w", err)
	}
	c.Schedule.RestDay = strings.ToLower(day.String())

	c.Schedule.PreOpenStrategy = strings.ToLower(strings.TrimSpace(c.Schedule.PreOpenStrategy))
	if c.Schedule.PreOpenStrategy == "" {
		c.Schedule.PreOpenStrategy = defaultPreOpenStrategy
	}
	if len(c.Schedule.PreOpenStepsSeconds) == 0 {
		c.Schedule.PreOpenStepsSeconds = append([]int(nil), defaultPreOpenStepsSeconds...)
	}
	return nil
}

func (c *Config) normalizeTimelapse() {
	c.Timelapse.AssemblerBinary = strings.TrimSpace(c.Timelapse.AssemblerBinary)
	if c.Timelapse.AssemblerBinary == "" {
		c.Timelapse.AssemblerBinary = defaultAssemblerBinary
	}
	c.Timelapse.FFprobeBinary = strings.TrimSpace(c.Timelapse.FFprobeBinary)
	if c.Timelapse.FFprobeBinary == "" {
		c.Timelapse.FFprobeBinary = defaultFFprobeBinary
	}
	c.Timelapse.Codec = strings.TrimSpace(c.Timelapse.Codec)
	if c.Timelapse.Codec == "" {
		c.Timelapse.Codec = defaultCodec
	}
	c.Timelapse.PixelFormat = strings.TrimSpace(c.Timelapse.PixelFormat)
	if c.Timelapse.PixelFormat == "" {
		c.Timelapse.PixelFormat = defaultPixelFormat
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// ParseWeekday resolves a full or three-letter weekday name, ignoring case.
func ParseWeekday(name string) (time.Weekday, error) {
	key := weekdayFolder.String(strings.TrimSpace(name))
	day, ok := weekdayNames[key]
	if !ok {
		return time.Sunday, fmt.Errorf("unknown weekday %q", name)
	}
	return day, nil
}

// ParseUTCOffset parses offsets such as "+03:00", "-0530", "+3", or "Z" into
// seconds east of UTC.
func ParseUTCOffset(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty offset")
	}
	upper := strings.ToUpper(value)
	if upper == "Z" || upper == "UTC" {
		return 0, nil
	}
	upper = strings.TrimPrefix(upper, "UTC")

	sign := 1
	switch upper[0] {
	case '+':
		upper = upper[1:]
	case '-':
		sign = -1
		upper = upper[1:]
	default:
		return 0, fmt.Errorf("offset %q must start with + or -", value)
	}

	hoursPart, minutesPart := upper, ""
	if idx := strings.IndexByte(upper, ':'); idx >= 0 {
		hoursPart, minutesPart = upper[:idx], upper[idx+1:]
	} else if len(upper) == 4 {
		hoursPart, minutesPart = upper[:2], upper[2:]
	}

	hours, err := strconv.Atoi(hoursPart)
	if err != nil {
		return 0, fmt.Errorf("offset %q: invalid hours", value)
	}
	minutes := 0
	if minutesPart != "" {
		minutes, err = strconv.Atoi(minutesPart)
		if err != nil {
			return 0, fmt.Errorf("offset %q: invalid minutes", value)
		}
	}
	if hours < 0 || hours > 14 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("offset %q out of range", value)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// FormatUTCOffset renders seconds east of UTC in the canonical "+HH:MM" form.
func FormatUTCOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
