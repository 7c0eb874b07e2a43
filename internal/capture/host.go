package capture

import (
	"context"

	"screencap/internal/config"
)

// AudioConstraints are the processing options requested for audio tracks.
type AudioConstraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
}

// VideoConstraints bound the display capture.
type VideoConstraints struct {
	MaxWidth  int
	MaxHeight int
	FrameRate int
}

// DisplayConstraints are requested with the display grant. System audio, when
// the host offers it, is captured with Audio.
type DisplayConstraints struct {
	Video VideoConstraints
	Audio AudioConstraints
}

// Host grants capture streams.
type Host interface {
	// Supported reports ErrUnsupportedDevice when the host cannot capture at all.
	Supported(ctx context.Context) error
	// RequestMicrophone grants an audio-only stream.
	RequestMicrophone(ctx context.Context, constraints AudioConstraints) (*Stream, error)
	// RequestDisplay grants a display stream: one or more video tracks and any
	// system audio the host provides.
	RequestDisplay(ctx context.Context, constraints DisplayConstraints) (*Stream, error)
}

// ConstraintsFromConfig derives display constraints from capture settings.
func ConstraintsFromConfig(cfg *config.Config) DisplayConstraints {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	return DisplayConstraints{
		Video: VideoConstraints{
			MaxWidth:  cfg.Capture.MaxWidth,
			MaxHeight: cfg.Capture.MaxHeight,
			FrameRate: cfg.Capture.FrameRate,
		},
		Audio: AudioConstraints{
			EchoCancellation: cfg.Capture.EchoCancellation,
			NoiseSuppression: cfg.Capture.NoiseSuppression,
			SampleRate:       cfg.Capture.SampleRate,
		},
	}
}
