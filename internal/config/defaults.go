package config

const (
	defaultFramesDir                 = "/var/lib/lapsecam/frames"
	defaultFallbackFramesDir         = "~/.local/share/lapsecam/frames"
	defaultTimelapseDir              = "~/.local/share/lapsecam/timelapses"
	defaultLogDir                    = "~/.local/share/lapsecam/logs"
	defaultGrabberBinary             = "ffmpeg"
	defaultCaptureWidth              = 1280
	defaultCaptureHeight             = 0
	defaultCaptureQuality            = 85
	defaultCaptureTransport          = "tcp"
	defaultCaptureTimeoutSeconds     = 20
	defaultImageExtension            = "jpg"
	defaultUTCOffset                 = "+03:00"
	defaultRestDay                   = "sunday"
	defaultRestDayEndHour            = 20
	defaultMorningCheckHour          = 6
	defaultBusinessStartHour         = 8
	defaultBusinessEndHour           = 20
	defaultSteadyIntervalSeconds     = 60
	defaultMaxBackoffSeconds         = 3600
	defaultMaxDelaySeconds           = 86400
	defaultImmediateRetries          = 3
	defaultRetryDelayMillis          = 2000
	defaultPreOpenStrategy           = PreOpenExponential
	defaultPreOpenMinIntervalSeconds = 60
	defaultPreOpenMaxIntervalSeconds = 900
	defaultPreOpenDivisor            = 4
	defaultAssemblerBinary           = "ffmpeg"
	defaultFFprobeBinary             = "ffprobe"
	defaultFrameRate                 = 24
	defaultCodec                     = "libx264"
	defaultPixelFormat               = "yuv420p"
	defaultNtfyTimeoutSeconds        = 10
	defaultFailureThreshold          = 10
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 30
)

// Pre-open polling strategies.
const (
	PreOpenExponential = "exponential"
	PreOpenStepped     = "stepped"
)

var defaultPreOpenStepsSeconds = []int{300, 600, 1200, 1800}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FramesDir:         defaultFramesDir,
			FallbackFramesDir: defaultFallbackFramesDir,
			TimelapseDir:      defaultTimelapseDir,
			LogDir:            defaultLogDir,
		},
		Capture: Capture{
			GrabberBinary:  defaultGrabberBinary,
			Width:          defaultCaptureWidth,
			Height:         defaultCaptureHeight,
			Quality:        defaultCaptureQuality,
			Transport:      defaultCaptureTransport,
			TimeoutSeconds: defaultCaptureTimeoutSeconds,
			ImageExtension: defaultImageExtension,
		},
		Schedule: Schedule{
			UTCOffset:                 defaultUTCOffset,
			RestDay:                   defaultRestDay,
			RestDayEndHour:            defaultRestDayEndHour,
			MorningCheckHour:          defaultMorningCheckHour,
			BusinessStartHour:         defaultBusinessStartHour,
			BusinessEndHour:           defaultBusinessEndHour,
			SteadyIntervalSeconds:     defaultSteadyIntervalSeconds,
			MaxBackoffSeconds:         defaultMaxBackoffSeconds,
			MaxDelaySeconds:           defaultMaxDelaySeconds,
			ImmediateRetries:          defaultImmediateRetries,
			RetryDelayMillis:          defaultRetryDelayMillis,
			PreOpenStrategy:           defaultPreOpenStrategy,
			PreOpenMinIntervalSeconds: defaultPreOpenMinIntervalSeconds,
			PreOpenMaxIntervalSeconds: defaultPreOpenMaxIntervalSeconds,
			PreOpenDivisor:            defaultPreOpenDivisor,
			PreOpenStepsSeconds:       append([]int(nil), defaultPreOpenStepsSeconds...),
		},
		Timelapse: Timelapse{
			AssemblerBinary: defaultAssemblerBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			FrameRate:       defaultFrameRate,
			Codec:           defaultCodec,
			PixelFormat:     defaultPixelFormat,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			FailureThreshold:      defaultFailureThreshold,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
