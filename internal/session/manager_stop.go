package session

import (
	"context"
	"log/slog"

	"screencap/internal/blob"
	"screencap/internal/logging"
	"screencap/internal/metrics"
	"screencap/internal/notifications"
	"screencap/internal/services"
	"screencap/internal/transcode"
)

// Stop ends the recording and waits for the recorded URL. Only the first stop
// of a session runs the stop sequence; a later one (from either trigger) waits
// for it and returns the stopped snapshot.
func (m *Manager) Stop(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	id := m.state.id
	m.mu.Unlock()
	return m.stop(ctx, id, TriggerUser)
}

// hostEnded is the termination observer registered on the display track.
func (m *Manager) hostEnded(id string) {
	if _, err := m.stop(m.baseCtx, id, TriggerHost); err != nil {
		m.logger.Debug("host termination ignored", logging.String(logging.FieldSessionID, id), logging.Error(err))
	}
}

func (m *Manager) stop(ctx context.Context, id string, trigger Trigger) (Snapshot, error) {
	m.mu.Lock()
	if m.unsupported {
		m.mu.Unlock()
		return Snapshot{}, services.Wrap(services.ErrUnsupportedDevice, "session", "stop", "capture unsupported on this host", nil)
	}
	if id == "" || m.state.id != id {
		status := m.state.status
		m.mu.Unlock()
		return Snapshot{}, invalidTransition("stop", status)
	}
	if m.state.status == StatusStopped {
		done := m.state.stopDone
		m.mu.Unlock()
		if done != nil {
			<-done
		}
		return m.Snapshot(), nil
	}
	if !m.activeLocked() {
		status := m.state.status
		m.mu.Unlock()
		return Snapshot{}, invalidTransition("stop", status)
	}

	m.drainTicksLocked()
	elapsed := m.state.elapsed
	stream := m.state.stream
	done := make(chan struct{})
	m.state.stopDone = done
	m.state.trigger = trigger
	m.state.finalizing = true
	m.setStatusLocked(StatusStopped)
	m.epoch++
	m.clock.Off()
	m.mu.Unlock()

	defer close(done)

	logger := logging.WithContext(services.WithSessionID(ctx, id), m.logger)
	logger.Info("stopping recording",
		logging.String(logging.FieldEventType, "recording_stopping"),
		logging.String("trigger", string(trigger)),
		logging.Int("elapsed_seconds", elapsed),
	)

	res := <-m.recorder.Stop(m.baseCtxFor(id))

	var (
		final     blob.Blob
		corrected bool
		url       string
		recErr    string
	)
	if res.Err != nil {
		recErr = res.Err.Error()
		logging.ErrorWithContext(logger, "recording engine failed to finalize", "recorder_stop_failed",
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, "check ffmpeg output in the daemon log"),
		)
		m.notify(logger, notifications.EventError, notifications.Payload{"context": "recording", "error": recErr})
	} else {
		final, corrected = m.finalize(logger, res.Blob, elapsed)
		url = m.registry.Create(final)
	}

	if stream != nil {
		stream.Stop()
	}

	m.mu.Lock()
	if m.state.id == id {
		m.state.stream = nil
		m.state.elapsed = 0
		m.state.duration = elapsed
		m.state.finalizing = false
		m.state.correctionApplied = corrected
		m.state.recordedURL = url
		m.state.recordingErr = recErr
		if url != "" {
			m.state.job = transcode.NewJob(final)
		}
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if url != "" {
		metrics.RecordingsTotal.WithLabelValues(string(trigger)).Inc()
		metrics.RecordingDurationSeconds.Observe(float64(elapsed))
		metrics.RecordingBytes.Observe(float64(final.Size()))
		logger.Info("recording stopped",
			logging.String(logging.FieldEventType, "recording_stopped"),
			logging.String("trigger", string(trigger)),
			logging.Int("duration_seconds", elapsed),
			logging.Int("bytes", final.Size()),
			logging.Bool("duration_corrected", corrected),
		)
		m.notify(logger, notifications.EventRecordingStopped, notifications.Payload{
			"durationSeconds": elapsed,
			"trigger":         string(trigger),
		})
	}
	return snap, nil
}

// finalize corrects the container duration, falling back to the raw blob.
func (m *Manager) finalize(logger *slog.Logger, raw blob.Blob, elapsed int) (blob.Blob, bool) {
	if m.finalizer == nil {
		return raw, false
	}
	fixed, err := m.finalizer.Correct(raw, int64(elapsed)*1000)
	if err != nil {
		metrics.FinalizeFailuresTotal.Inc()
		logging.WarnWithContext(logger, "duration correction failed; exposing uncorrected recording", "finalize_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the recording plays but seeking may not work"),
			logging.String(logging.FieldImpact, "recording duration metadata is missing or wrong"),
		)
		return raw, false
	}
	return fixed, true
}
