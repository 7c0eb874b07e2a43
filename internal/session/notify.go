package session

import (
	"log/slog"

	"screencap/internal/logging"
	"screencap/internal/notifications"
)

// notify publishes in the background so a slow ntfy server never delays a
// state transition. Close waits for pending sends.
func (m *Manager) notify(logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.notifier.Publish(m.baseCtx, event, payload); err != nil {
			logger.Debug("notification failed",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	}()
}
