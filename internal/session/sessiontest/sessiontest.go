// Package sessiontest provides stub collaborators for building a session
// manager in tests of the layers above it.
package sessiontest

import (
	"context"
	"sync"
	"testing"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/clock"
	"screencap/internal/logging"
	"screencap/internal/recording"
	"screencap/internal/session"
	"screencap/internal/transcode"
	"screencap/internal/webm"
)

// RecordedBytes is what StubRecorder returns from Stop.
var RecordedBytes = []byte("recorded-webm")

// StubComposer hands out a display stream with a video and a system audio
// track. Err fails Acquire; SupportErr fails Supported.
type StubComposer struct {
	Err        error
	SupportErr error

	mu     sync.Mutex
	stream *capture.Stream
}

func (c *StubComposer) Acquire(_ context.Context, useMicrophone bool, onEnded func()) (*capture.Stream, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	video := capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{Width: 1920, Height: 1080, FrameRate: 30})
	label := "system"
	if useMicrophone {
		label = "microphone"
	}
	audio := capture.NewTrack(capture.KindAudio, label, capture.Source{Format: "pulse"}, capture.Settings{SampleRate: 44100})
	if onEnded != nil {
		video.OnEnded(onEnded)
	}
	stream := capture.NewStream(video, audio)
	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	return stream, nil
}

func (c *StubComposer) Supported(context.Context) error { return c.SupportErr }

// Stream returns the last acquired stream.
func (c *StubComposer) Stream() *capture.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// StubRecorder completes every stop immediately with RecordedBytes.
type StubRecorder struct{}

func (StubRecorder) Start(context.Context, *capture.Stream) error { return nil }
func (StubRecorder) Pause()                                       {}
func (StubRecorder) Resume()                                      {}

func (StubRecorder) Stop(context.Context) <-chan recording.StopResult {
	ch := make(chan recording.StopResult, 1)
	ch <- recording.StopResult{Blob: blob.New(append([]byte(nil), RecordedBytes...), blob.MimeRecording)}
	close(ch)
	return ch
}

// StubClock never ticks on its own.
type StubClock struct {
	ticks chan clock.Tick
}

func (c *StubClock) On()    {}
func (c *StubClock) Off()   {}
func (c *StubClock) Pause() {}

func (c *StubClock) Ticks() <-chan clock.Tick {
	if c.ticks == nil {
		c.ticks = make(chan clock.Tick)
	}
	return c.ticks
}

// StubConverter returns a fixed MP4 blob.
type StubConverter struct {
	Err error
}

func (c StubConverter) Convert(context.Context, *transcode.Job) (blob.Blob, error) {
	if c.Err != nil {
		return blob.Blob{}, c.Err
	}
	return blob.New([]byte("converted-mp4"), blob.MimeMP4), nil
}

// SessionOption customizes NewSession.
type SessionOption func(*session.Deps)

// WithComposer replaces the default StubComposer.
func WithComposer(c session.Composer) SessionOption {
	return func(d *session.Deps) { d.Composer = c }
}

// WithConverter sets the converter; the default leaves conversion disabled.
func WithConverter(c session.Converter) SessionOption {
	return func(d *session.Deps) { d.Converter = c }
}

// NewSession builds a session manager over stubs and registers cleanup.
func NewSession(t testing.TB, opts ...SessionOption) *session.Manager {
	t.Helper()
	deps := session.Deps{
		Composer:  &StubComposer{},
		Recorder:  StubRecorder{},
		Clock:     &StubClock{ticks: make(chan clock.Tick)},
		Finalizer: webm.NewFinalizer(logging.NewNop()),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	mgr := session.NewManager(context.Background(), deps, logging.NewNop())
	t.Cleanup(mgr.Close)
	return mgr
}
