package config

const (
	defaultConfigPath         = "~/.config/screencap/config.toml"
	defaultRecordingsDir      = "~/Videos/screencap"
	defaultStagingDir         = "~/.local/share/screencap/staging"
	defaultStateDir           = "~/.local/share/screencap"
	defaultLogDir             = "~/.local/share/screencap/logs"
	defaultLogRetentionDays   = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultAPIBind            = "127.0.0.1:7490"
	defaultDisplay            = ":0"
	defaultMaxWidth           = 4096
	defaultMaxHeight          = 2160
	defaultFrameRate          = 30
	defaultSampleRate         = 44100
	defaultSystemAudioSource  = "@DEFAULT_MONITOR@"
	defaultMicrophoneSource   = "@DEFAULT_SOURCE@"
	defaultVideoCodec         = "libvpx-vp9"
	defaultAudioCodec         = "libopus"
	defaultStopTimeoutSeconds = 10
	defaultFFmpegBinary       = "ffmpeg"
	defaultFilePrefix         = "screen-recording"
	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RecordingsDir: defaultRecordingsDir,
			StagingDir:    defaultStagingDir,
			StateDir:      defaultStateDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		Capture: Capture{
			Display:           defaultDisplay,
			MaxWidth:          defaultMaxWidth,
			MaxHeight:         defaultMaxHeight,
			FrameRate:         defaultFrameRate,
			SystemAudioSource: defaultSystemAudioSource,
			MicrophoneSource:  defaultMicrophoneSource,
			EchoCancellation:  true,
			NoiseSuppression:  true,
			SampleRate:        defaultSampleRate,
		},
		Recording: Recording{
			VideoCodec:         defaultVideoCodec,
			AudioCodec:         defaultAudioCodec,
			StopTimeoutSeconds: defaultStopTimeoutSeconds,
		},
		Transcode: Transcode{
			Enabled:      true,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Library: Library{
			Enabled:    true,
			FilePrefix: defaultFilePrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Recording:      true,
			Library:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
