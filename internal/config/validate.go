package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RecordingsDir) == "" {
		return errors.New("paths.recordings_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if bind := c.Paths.APIBind; bind != "" {
		if _, _, err := net.SplitHostPort(bind); err != nil {
			return fmt.Errorf("paths.api_bind %q: %w", bind, err)
		}
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.MaxWidth < 0 || c.Capture.MaxHeight < 0 {
		return errors.New("capture.max_width and capture.max_height must be positive")
	}
	if c.Capture.MaxWidth%2 != 0 || c.Capture.MaxHeight%2 != 0 {
		return errors.New("capture.max_width and capture.max_height must be even")
	}
	if c.Capture.FrameRate < 1 || c.Capture.FrameRate > 240 {
		return errors.New("capture.frame_rate must be between 1 and 240")
	}
	switch c.Capture.SampleRate {
	case 8000, 16000, 22050, 24000, 32000, 44100, 48000:
	default:
		return fmt.Errorf("capture.sample_rate %d is not a supported rate", c.Capture.SampleRate)
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.StopTimeoutSeconds < 0 {
		return errors.New("recording.stop_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
