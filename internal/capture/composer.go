package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"screencap/internal/logging"
	"screencap/internal/metrics"
	"screencap/internal/services"
)

// Composer acquires display and optional microphone streams and merges them
// into the single composite stream handed to the recording engine.
type Composer struct {
	host        Host
	constraints DisplayConstraints
	logger      *slog.Logger
}

// NewComposer constructs a composer over host.
func NewComposer(host Host, constraints DisplayConstraints, logger *slog.Logger) *Composer {
	return &Composer{
		host:        host,
		constraints: constraints,
		logger:      logging.NewComponentLogger(logger, "capture"),
	}
}

// Acquire obtains the capture streams and returns the composite stream.
//
// A microphone failure is logged and recording proceeds without it. A display
// failure returns ErrAcquisitionDenied and releases anything already granted.
// When the microphone was obtained its audio replaces the display's system
// audio; the two are never mixed. onEnded fires at most once, when the host
// ends the first display video track.
func (c *Composer) Acquire(ctx context.Context, useMicrophone bool, onEnded func()) (*Stream, error) {
	if c == nil || c.host == nil {
		return nil, services.Wrap(services.ErrUnsupportedDevice, "capture", "acquire", "no capture host configured", nil)
	}
	logger := logging.WithContext(ctx, c.logger)

	var mic *Stream
	if useMicrophone {
		stream, err := c.host.RequestMicrophone(ctx, c.constraints.Audio)
		if err != nil || stream == nil || len(stream.AudioTracks()) == 0 {
			metrics.AcquisitionFailuresTotal.WithLabelValues("microphone").Inc()
		}
		switch {
		case err != nil:
			if !errors.Is(err, services.ErrMicrophoneDenied) {
				err = services.Wrap(services.ErrMicrophoneDenied, "capture", "microphone", "request failed", err)
			}
			logging.WarnWithContext(logger, "microphone unavailable; recording without microphone", "microphone_denied",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check capture.microphone_source and PulseAudio permissions"),
				logging.String(logging.FieldImpact, "recording continues with system audio"),
			)
		case stream == nil || len(stream.AudioTracks()) == 0:
			if stream != nil {
				stream.Stop()
			}
			logging.WarnWithContext(logger, "microphone grant had no audio tracks; recording without microphone", "microphone_denied",
				logging.String(logging.FieldImpact, "recording continues with system audio"),
			)
		default:
			mic = stream
		}
	}

	display, err := c.host.RequestDisplay(ctx, c.constraints)
	if err != nil {
		if mic != nil {
			mic.Stop()
		}
		if !errors.Is(err, services.ErrAcquisitionDenied) {
			err = services.Wrap(services.ErrAcquisitionDenied, "capture", "display", "request failed", err)
		}
		return nil, err
	}
	videoTracks := display.VideoTracks()
	if len(videoTracks) == 0 {
		display.Stop()
		if mic != nil {
			mic.Stop()
		}
		return nil, services.Wrap(services.ErrAcquisitionDenied, "capture", "display", "grant contained no video track", nil)
	}

	composite := NewStream()
	if mic != nil {
		for _, t := range mic.AudioTracks() {
			composite.AddTrack(t)
		}
		for _, t := range mic.VideoTracks() {
			t.Stop()
		}
		for _, t := range display.AudioTracks() {
			t.Stop()
		}
	} else {
		for _, t := range display.AudioTracks() {
			composite.AddTrack(t)
		}
	}
	for _, t := range videoTracks {
		composite.AddTrack(t)
	}

	if onEnded != nil {
		var once sync.Once
		videoTracks[0].OnEnded(func() { once.Do(onEnded) })
	}

	logger.Info("capture acquired",
		logging.String(logging.FieldEventType, "capture_acquired"),
		logging.Bool("microphone", mic != nil),
		logging.Int("audio_tracks", len(composite.AudioTracks())),
		logging.Int("video_tracks", len(composite.VideoTracks())),
	)
	return composite, nil
}

// Supported proxies the host support check.
func (c *Composer) Supported(ctx context.Context) error {
	if c == nil || c.host == nil {
		return services.Wrap(services.ErrUnsupportedDevice, "capture", "support", "no capture host configured", nil)
	}
	return c.host.Supported(ctx)
}
