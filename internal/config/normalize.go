package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeRecording()
	c.normalizeTranscode()
	c.normalizeLibrary()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RecordingsDir, err = expandPath(c.Paths.RecordingsDir); err != nil {
		return fmt.Errorf("paths.recordings_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SCREENCAP_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Display = strings.TrimSpace(c.Capture.Display)
	if c.Capture.Display == "" {
		if value, ok := os.LookupEnv("DISPLAY"); ok && strings.TrimSpace(value) != "" {
			c.Capture.Display = strings.TrimSpace(value)
		} else {
			c.Capture.Display = defaultDisplay
		}
	}
	c.Capture.SystemAudioSource = strings.TrimSpace(c.Capture.SystemAudioSource)
	c.Capture.MicrophoneSource = strings.TrimSpace(c.Capture.MicrophoneSource)
	if c.Capture.MicrophoneSource == "" {
		c.Capture.MicrophoneSource = defaultMicrophoneSource
	}
	if c.Capture.MaxWidth == 0 {
		c.Capture.MaxWidth = defaultMaxWidth
	}
	if c.Capture.MaxHeight == 0 {
		c.Capture.MaxHeight = defaultMaxHeight
	}
	if c.Capture.FrameRate == 0 {
		c.Capture.FrameRate = defaultFrameRate
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeRecording() {
	c.Recording.VideoCodec = strings.TrimSpace(c.Recording.VideoCodec)
	if c.Recording.VideoCodec == "" {
		c.Recording.VideoCodec = defaultVideoCodec
	}
	c.Recording.AudioCodec = strings.TrimSpace(c.Recording.AudioCodec)
	if c.Recording.AudioCodec == "" {
		c.Recording.AudioCodec = defaultAudioCodec
	}
	if c.Recording.StopTimeoutSeconds == 0 {
		c.Recording.StopTimeoutSeconds = defaultStopTimeoutSeconds
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.FilePrefix = strings.TrimSpace(c.Library.FilePrefix)
	if c.Library.FilePrefix == "" {
		c.Library.FilePrefix = defaultFilePrefix
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
