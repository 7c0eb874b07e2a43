package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/logging"
	"screencap/internal/metrics"
	"screencap/internal/notifications"
	"screencap/internal/services"
	"screencap/internal/transcode"
)

// Deps bundles the collaborators a Manager sequences. Converter may be nil
// when conversion is disabled.
type Deps struct {
	Composer  Composer
	Recorder  Recorder
	Clock     Clock
	Finalizer Finalizer
	Converter Converter
	Registry  *blob.Registry
	// Notifier receives stop, conversion and failure events. Nil disables push.
	Notifier notifications.Service
}

// Manager owns the single recording session and sequences capture, recording,
// timing, finalization and conversion.
type Manager struct {
	composer  Composer
	recorder  Recorder
	clock     Clock
	finalizer Finalizer
	converter Converter
	registry  *blob.Registry
	notifier  notifications.Service
	logger    *slog.Logger

	// baseCtx outlives requests; stop sequences and conversions run on it.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	state state
	// epoch counts Off commands sent to the clock; ticks from other epochs
	// belong to a finished recording.
	epoch       uint64
	unsupported bool
}

type state struct {
	id                string
	status            Status
	elapsed           int
	duration          int
	useMicrophone     bool
	startedAt         time.Time
	trigger           Trigger
	stream            *capture.Stream
	finalizing        bool
	correctionApplied bool
	recordedURL       string
	transcodedURL     string
	job               *transcode.Job
	recordingErr      string
	stopDone          chan struct{}
}

// NewManager wires a Manager and starts consuming clock ticks. Call Close to
// stop the tick consumer.
func NewManager(ctx context.Context, deps Deps, logger *slog.Logger) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	registry := deps.Registry
	if registry == nil {
		registry = blob.NewRegistry()
	}
	m := &Manager{
		composer:  deps.Composer,
		recorder:  deps.Recorder,
		clock:     deps.Clock,
		finalizer: deps.Finalizer,
		converter: deps.Converter,
		registry:  registry,
		notifier:  deps.Notifier,
		logger:    logging.NewComponentLogger(logger, "session"),
		baseCtx:   base,
		cancel:    cancel,
		state:     state{status: StatusIdle},
	}
	m.wg.Add(1)
	go m.consumeTicks()
	return m
}

// Close stops the tick consumer. It does not stop an active recording.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// Registry exposes the blob registry backing recorded and converted URLs.
func (m *Manager) Registry() *blob.Registry {
	return m.registry
}

// CheckSupport asks the composer whether capture is possible at all. A failure
// is persistent: every later action returns ErrUnsupportedDevice.
func (m *Manager) CheckSupport(ctx context.Context) error {
	if m.composer == nil {
		err := services.Wrap(services.ErrUnsupportedDevice, "session", "check support", "no capture composer", nil)
		m.markUnsupported(err)
		return err
	}
	err := m.composer.Supported(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, services.ErrUnsupportedDevice) {
		err = services.Wrap(services.ErrUnsupportedDevice, "session", "check support", "capture unavailable", err)
	}
	m.markUnsupported(err)
	return err
}

func (m *Manager) markUnsupported(err error) {
	m.mu.Lock()
	m.unsupported = true
	m.mu.Unlock()
	logging.ErrorWithContext(m.logger, "screen capture is not supported on this host", "capture_unsupported",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "install ffmpeg with x11grab and run inside an X session"),
	)
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := m.state
	snap := Snapshot{
		ID:                s.id,
		Status:            s.status,
		ElapsedSeconds:    s.elapsed,
		DurationSeconds:   s.duration,
		UseMicrophone:     s.useMicrophone,
		StartedAt:         s.startedAt,
		StopTrigger:       s.trigger,
		Finalizing:        s.finalizing,
		CorrectionApplied: s.correctionApplied,
		RecordedURL:       s.recordedURL,
		TranscodedURL:     s.transcodedURL,
		RecordingError:    s.recordingErr,
		Unsupported:       m.unsupported,
	}
	if s.job != nil {
		snap.Converting = s.job.InProgress()
		if err := s.job.Err(); err != nil {
			snap.TranscodeError = err.Error()
		}
	}
	return snap
}

// Start acquires capture and begins recording. A denied display grant returns
// the session to idle and reports ErrAcquisitionDenied.
func (m *Manager) Start(ctx context.Context, useMicrophone bool) (Snapshot, error) {
	m.mu.Lock()
	if m.unsupported {
		m.mu.Unlock()
		return Snapshot{}, services.Wrap(services.ErrUnsupportedDevice, "session", "start", "capture unsupported on this host", nil)
	}
	if m.state.status != StatusIdle {
		status := m.state.status
		m.mu.Unlock()
		return Snapshot{}, invalidTransition("start", status)
	}
	id := uuid.NewString()
	m.state.id = id
	m.state.useMicrophone = useMicrophone
	m.setStatusLocked(StatusAcquiring)
	m.mu.Unlock()

	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, m.logger)

	stream, err := m.composer.Acquire(ctx, useMicrophone, func() { m.hostEnded(id) })
	if err != nil {
		metrics.AcquisitionFailuresTotal.WithLabelValues("display").Inc()
		logger.Info("capture not granted; session back to idle",
			logging.String(logging.FieldEventType, "acquisition_denied"),
			logging.Error(err),
		)
		m.resetToIdle(id)
		return m.Snapshot(), err
	}

	if err := m.recorder.Start(m.baseCtxFor(id), stream); err != nil {
		stream.Stop()
		logging.WarnWithContext(logger, "recording engine failed to start; session back to idle", "recorder_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ffmpeg output in the daemon log"),
			logging.String(logging.FieldImpact, "no recording was made"),
		)
		m.resetToIdle(id)
		return m.Snapshot(), err
	}

	m.mu.Lock()
	m.state.stream = stream
	m.state.startedAt = time.Now().UTC()
	m.state.elapsed = 0
	m.setStatusLocked(StatusRecording)
	m.clock.On()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	logger.Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.Bool("microphone", useMicrophone),
		logging.Int("tracks", len(stream.Tracks())),
	)

	// The host may have ended capture before the session reached recording;
	// the observer found nothing to stop then.
	if video := stream.VideoTracks(); len(video) > 0 && !video[0].Live() {
		m.hostEnded(id)
		return m.Snapshot(), nil
	}
	return snap, nil
}

// Pause suspends recording and the clock.
func (m *Manager) Pause(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked("pause", StatusRecording); err != nil {
		return Snapshot{}, err
	}
	m.recorder.Pause()
	m.clock.Pause()
	m.setStatusLocked(StatusPaused)
	logging.WithContext(services.WithSessionID(ctx, m.state.id), m.logger).Info("recording paused",
		logging.String(logging.FieldEventType, "recording_paused"),
		logging.Int("elapsed_seconds", m.state.elapsed),
	)
	return m.snapshotLocked(), nil
}

// Resume continues a paused recording.
func (m *Manager) Resume(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked("resume", StatusPaused); err != nil {
		return Snapshot{}, err
	}
	m.recorder.Resume()
	m.clock.On()
	m.setStatusLocked(StatusRecording)
	logging.WithContext(services.WithSessionID(ctx, m.state.id), m.logger).Info("recording resumed",
		logging.String(logging.FieldEventType, "recording_resumed"),
		logging.Int("elapsed_seconds", m.state.elapsed),
	)
	return m.snapshotLocked(), nil
}

// Restart discards the stopped session and returns to idle. It waits for an
// in-flight stop sequence first.
func (m *Manager) Restart(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if err := m.guardLocked("restart", StatusStopped); err != nil {
		m.mu.Unlock()
		return Snapshot{}, err
	}
	done := m.state.stopDone
	m.mu.Unlock()
	if done != nil {
		<-done
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked("restart", StatusStopped); err != nil {
		return Snapshot{}, err
	}
	id := m.state.id
	for _, url := range []string{m.state.recordedURL, m.state.transcodedURL} {
		if url != "" {
			m.registry.Revoke(url)
		}
	}
	m.state = state{}
	m.setStatusLocked(StatusIdle)
	logging.WithContext(services.WithSessionID(ctx, id), m.logger).Info("session restarted",
		logging.String(logging.FieldEventType, "session_restarted"),
	)
	return m.snapshotLocked(), nil
}

// EndCapture ends the display track as the host would, which stops the
// recording through the host-termination path.
func (m *Manager) EndCapture(reason string) error {
	m.mu.Lock()
	if !m.activeLocked() {
		status := m.state.status
		m.mu.Unlock()
		return invalidTransition("end capture", status)
	}
	stream := m.state.stream
	id := m.state.id
	m.mu.Unlock()

	logging.WithContext(services.WithSessionID(context.Background(), id), m.logger).Info("ending capture",
		logging.String(logging.FieldEventType, "capture_end_requested"),
		logging.String("reason", reason),
	)
	if video := stream.VideoTracks(); len(video) > 0 {
		video[0].End()
	}
	return nil
}

// Recorded returns the (corrected) recording of the stopped session.
func (m *Manager) Recorded() (blob.Blob, Snapshot, error) {
	return m.resolve(func(s state) string { return s.recordedURL }, "recording")
}

// Transcoded returns the converted recording once conversion succeeded.
func (m *Manager) Transcoded() (blob.Blob, Snapshot, error) {
	return m.resolve(func(s state) string { return s.transcodedURL }, "converted recording")
}

func (m *Manager) resolve(pick func(state) string, what string) (blob.Blob, Snapshot, error) {
	m.mu.Lock()
	url := pick(m.state)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if url == "" {
		return blob.Blob{}, snap, services.Wrap(services.ErrNotFound, "session", "resolve", "no "+what+" available", nil)
	}
	b, ok := m.registry.Resolve(url)
	if !ok {
		return blob.Blob{}, snap, services.Wrap(services.ErrNotFound, "session", "resolve", what+" was revoked", nil)
	}
	return b, snap, nil
}

func (m *Manager) resetToIdle(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.id != id {
		return
	}
	m.state = state{}
	m.setStatusLocked(StatusIdle)
}

func (m *Manager) baseCtxFor(id string) context.Context {
	return services.WithSessionID(m.baseCtx, id)
}

func (m *Manager) guardLocked(op string, want Status) error {
	if m.unsupported {
		return services.Wrap(services.ErrUnsupportedDevice, "session", op, "capture unsupported on this host", nil)
	}
	if m.state.status != want {
		return invalidTransition(op, m.state.status)
	}
	return nil
}

func (m *Manager) activeLocked() bool {
	return m.state.status == StatusRecording || m.state.status == StatusPaused
}

func (m *Manager) setStatusLocked(status Status) {
	if m.state.status == status {
		return
	}
	m.state.status = status
	metrics.SessionTransitionsTotal.WithLabelValues(string(status)).Inc()
	metrics.SetSessionStatus(string(status))
}

func invalidTransition(op string, status Status) error {
	return services.Wrap(services.ErrInvalidState, "session", op, "not allowed while "+string(status), nil)
}
