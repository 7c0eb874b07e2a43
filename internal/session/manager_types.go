package session

import (
	"context"
	"time"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/clock"
	"screencap/internal/recording"
	"screencap/internal/transcode"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAcquiring Status = "acquiring_media"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
)

// Trigger identifies which path stopped a recording.
type Trigger string

const (
	TriggerUser Trigger = "user"
	TriggerHost Trigger = "host"
)

// Snapshot is a point-in-time copy of the session. It is comparable; the
// snapshot after Restart equals the snapshot of a fresh Manager.
type Snapshot struct {
	ID                string    `json:"id,omitempty"`
	Status            Status    `json:"status"`
	ElapsedSeconds    int       `json:"elapsed_seconds"`
	DurationSeconds   int       `json:"duration_seconds,omitempty"`
	UseMicrophone     bool      `json:"use_microphone"`
	StartedAt         time.Time `json:"started_at,omitzero"`
	StopTrigger       Trigger   `json:"stop_trigger,omitempty"`
	Finalizing        bool      `json:"finalizing,omitempty"`
	CorrectionApplied bool      `json:"correction_applied,omitempty"`
	RecordedURL       string    `json:"recorded_url,omitempty"`
	TranscodedURL     string    `json:"transcoded_url,omitempty"`
	Converting        bool      `json:"converting,omitempty"`
	TranscodeError    string    `json:"transcode_error,omitempty"`
	RecordingError    string    `json:"recording_error,omitempty"`
	Unsupported       bool      `json:"unsupported,omitempty"`
}

// Active reports whether a recording is running or paused.
func (s Snapshot) Active() bool {
	return s.Status == StatusRecording || s.Status == StatusPaused
}

// Composer acquires the composite capture stream.
type Composer interface {
	Acquire(ctx context.Context, useMicrophone bool, onEnded func()) (*capture.Stream, error)
	Supported(ctx context.Context) error
}

// Recorder drives the recording engine. *recording.Adapter satisfies it.
type Recorder interface {
	Start(ctx context.Context, stream *capture.Stream) error
	Pause()
	Resume()
	Stop(ctx context.Context) <-chan recording.StopResult
}

// Clock is the elapsed-seconds counter. *clock.Clock satisfies it.
type Clock interface {
	On()
	Off()
	Pause()
	Ticks() <-chan clock.Tick
}

// Finalizer corrects the container duration of a recorded blob.
type Finalizer interface {
	Correct(b blob.Blob, durationMillis int64) (blob.Blob, error)
}

// Converter runs transcode jobs. *transcode.Pipeline satisfies it.
type Converter interface {
	Convert(ctx context.Context, job *transcode.Job) (blob.Blob, error)
}
