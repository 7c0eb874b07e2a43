package capture

import (
	"sync"

	"github.com/google/uuid"
)

// Kind distinguishes audio from video tracks.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Source describes how the recording engine opens a track: an input format,
// a device name, and extra input arguments.
type Source struct {
	Format string
	Device string
	Args   []string
}

// Settings are the constraints a track was granted with.
type Settings struct {
	Width            int
	Height           int
	FrameRate        int
	SampleRate       int
	EchoCancellation bool
	NoiseSuppression bool
}

// Track is one granted media source. Stop releases it on behalf of the owner;
// End marks it ended by the host and notifies observers. A track released by
// Stop never fires its ended observers.
type Track struct {
	ID       string
	Kind     Kind
	Label    string
	Source   Source
	Settings Settings

	mu        sync.Mutex
	stopped   bool
	ended     bool
	releases  int
	observers []func()
}

// NewTrack constructs a live track.
func NewTrack(kind Kind, label string, src Source, settings Settings) *Track {
	return &Track{
		ID:       uuid.NewString(),
		Kind:     kind,
		Label:    label,
		Source:   src,
		Settings: settings,
	}
}

// OnEnded registers fn to run when the host ends the track.
func (t *Track) OnEnded(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Stop releases the track. Only the first call has an effect.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.releases++
	t.mu.Unlock()
}

// End marks the track as ended by the host and fires observers once. It is a
// no-op on a stopped or already-ended track.
func (t *Track) End() {
	t.mu.Lock()
	if t.stopped || t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	observers := append([]func(){}, t.observers...)
	t.mu.Unlock()
	for _, fn := range observers {
		fn()
	}
}

// Live reports whether the track is neither stopped nor ended.
func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.ended
}

// Stopped reports whether the owner released the track.
func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Releases returns how many times the track was released (0 or 1).
func (t *Track) Releases() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.releases
}
