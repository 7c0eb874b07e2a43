package recording

import (
	"context"
	"log/slog"
	"sync"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/logging"
	"screencap/internal/services"
)

// Engine turns a composite stream into an encoded blob.
type Engine interface {
	Start(ctx context.Context, stream *capture.Stream) error
	Pause() error
	Resume() error
	// Stop finalizes the recording and returns the encoded bytes. It may take
	// a while because the encoder flushes its buffers.
	Stop(ctx context.Context) (blob.Blob, error)
}

// State is the adapter lifecycle state.
type State string

const (
	StateInactive  State = "inactive"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopping  State = "stopping"
	StateStopped   State = "stopped"
)

// StopResult is delivered on the channel returned by Adapter.Stop.
type StopResult struct {
	Blob blob.Blob
	Err  error
}

// Adapter is the thin orchestration boundary over an Engine: it tracks state,
// ignores out-of-state pause/resume, and exposes stop as a future.
type Adapter struct {
	engine Engine
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	done   chan struct{}
	result StopResult
}

// NewAdapter wraps engine.
func NewAdapter(engine Engine, logger *slog.Logger) *Adapter {
	return &Adapter{
		engine: engine,
		logger: logging.NewComponentLogger(logger, "recorder"),
		state:  StateInactive,
	}
}

// State returns the current state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Start begins recording stream. It is valid from inactive or stopped.
func (a *Adapter) Start(ctx context.Context, stream *capture.Stream) error {
	a.mu.Lock()
	if a.state != StateInactive && a.state != StateStopped {
		state := a.state
		a.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "recorder", "start", "recorder is "+string(state), nil)
	}
	a.state = StateRecording
	a.done = nil
	a.result = StopResult{}
	a.mu.Unlock()

	if err := a.engine.Start(ctx, stream); err != nil {
		a.mu.Lock()
		a.state = StateInactive
		a.mu.Unlock()
		return services.Wrap(services.ErrExternalTool, "recorder", "start", "engine start failed", err)
	}
	logging.WithContext(ctx, a.logger).Debug("recorder started", logging.Int("tracks", len(stream.Tracks())))
	return nil
}

// Pause suspends encoding. It is a no-op unless recording.
func (a *Adapter) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateRecording {
		return
	}
	if err := a.engine.Pause(); err != nil {
		logging.WarnWithContext(a.logger, "recorder pause failed", "recorder_pause_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "paused interval may appear in the recording"),
		)
	}
	a.state = StatePaused
}

// Resume continues encoding. It is a no-op unless paused.
func (a *Adapter) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePaused {
		return
	}
	if err := a.engine.Resume(); err != nil {
		logging.WarnWithContext(a.logger, "recorder resume failed", "recorder_resume_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recording may be missing content after resume"),
		)
	}
	a.state = StateRecording
}

// Stop finalizes the recording. The returned channel receives exactly one
// StopResult. Repeated calls return futures resolving to the same result and
// never stop the engine twice.
func (a *Adapter) Stop(ctx context.Context) <-chan StopResult {
	out := make(chan StopResult, 1)

	a.mu.Lock()
	switch a.state {
	case StateRecording, StatePaused:
		a.state = StateStopping
		a.done = make(chan struct{})
		go a.finish(ctx, a.done)
	case StateStopping, StateStopped:
	default:
		a.mu.Unlock()
		out <- StopResult{Err: services.Wrap(services.ErrInvalidState, "recorder", "stop", "recorder is not running", nil)}
		return out
	}
	done := a.done
	a.mu.Unlock()

	go func() {
		<-done
		a.mu.Lock()
		res := a.result
		a.mu.Unlock()
		out <- res
	}()
	return out
}

func (a *Adapter) finish(ctx context.Context, done chan struct{}) {
	data, err := a.engine.Stop(context.WithoutCancel(ctx))
	if err != nil {
		err = services.Wrap(services.ErrExternalTool, "recorder", "stop", "engine stop failed", err)
	}
	a.mu.Lock()
	a.result = StopResult{Blob: data, Err: err}
	a.state = StateStopped
	a.mu.Unlock()
	close(done)
}
