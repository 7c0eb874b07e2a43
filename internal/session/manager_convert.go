package session

import (
	"context"
	"errors"

	"screencap/internal/logging"
	"screencap/internal/notifications"
	"screencap/internal/services"
)

// Convert remuxes the stopped session's recording to MP4 and returns the
// snapshot carrying the converted URL. A second call while converting returns
// ErrConversionInProgress; after success the cached conversion is returned.
func (m *Manager) Convert(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if err := m.guardLocked("convert", StatusStopped); err != nil {
		m.mu.Unlock()
		return Snapshot{}, err
	}
	if m.converter == nil {
		m.mu.Unlock()
		return Snapshot{}, services.Wrap(services.ErrConfiguration, "session", "convert", "conversion is disabled", nil)
	}
	done := m.state.stopDone
	id := m.state.id
	m.mu.Unlock()
	if done != nil {
		<-done
	}

	m.mu.Lock()
	if m.state.id != id || m.state.status != StatusStopped {
		status := m.state.status
		m.mu.Unlock()
		return Snapshot{}, invalidTransition("convert", status)
	}
	job := m.state.job
	if job == nil {
		m.mu.Unlock()
		return Snapshot{}, services.Wrap(services.ErrNotFound, "session", "convert", "no recording to convert", nil)
	}
	if m.state.transcodedURL != "" {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.mu.Unlock()

	logger := logging.WithContext(services.WithSessionID(ctx, id), m.logger)
	out, err := m.converter.Convert(m.baseCtxFor(id), job)
	if errors.Is(err, services.ErrConversionInProgress) {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.state.id == id && m.state.job == job
	if err != nil {
		logging.WarnWithContext(logger, "conversion failed; original recording still available", "transcode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry convert or save the original webm"),
			logging.String(logging.FieldImpact, "mp4 download unavailable"),
		)
		m.notify(logger, notifications.EventError, notifications.Payload{"context": "conversion", "error": err.Error()})
		return m.snapshotLocked(), err
	}
	if !current {
		return m.snapshotLocked(), services.Wrap(services.ErrInvalidState, "session", "convert", "session restarted during conversion", nil)
	}
	if m.state.transcodedURL == "" {
		m.state.transcodedURL = m.registry.Create(out)
		m.notify(logger, notifications.EventConversionCompleted, notifications.Payload{"bytes": out.Size()})
	}
	return m.snapshotLocked(), nil
}
