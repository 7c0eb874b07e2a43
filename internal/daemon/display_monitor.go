package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"screencap/internal/config"
	"screencap/internal/logging"
)

// displayMonitor listens for DRM hotplug uevents (monitor unplugged, mode
// change) and ends the active capture, the same way the host's "stop
// sharing" control would.
type displayMonitor struct {
	logger  *slog.Logger
	handler func(reason string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newDisplayMonitor returns nil unless capture.stop_on_display_change is set.
func newDisplayMonitor(cfg *config.Config, logger *slog.Logger, handler func(reason string)) *displayMonitor {
	if cfg == nil || !cfg.Capture.StopOnDisplayChange {
		return nil
	}
	return &displayMonitor{
		logger:  logging.NewComponentLogger(logger, "display-monitor"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events.
func (m *displayMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; display changes will not stop recordings", "display_monitor_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "recordings continue across display changes"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("display monitor started",
		logging.String(logging.FieldEventType, "display_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *displayMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("display monitor stopped",
		logging.String(logging.FieldEventType, "display_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *displayMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *displayMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, buildDisplayMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "display monitor error", "display_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "display changes may be missed"),
			)
		}
	}
}

// buildDisplayMatcher matches SUBSYSTEM=drm, HOTPLUG=1, ACTION=change.
func buildDisplayMatcher() netlink.Matcher {
	action := "change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
			"HOTPLUG":   "1",
		},
	})
	return rules
}

func (m *displayMonitor) handleEvent(uevent netlink.UEvent) {
	card := cardName(uevent)
	m.logger.Info("display change detected",
		logging.String(logging.FieldEventType, "display_change_detected"),
		logging.String("card", card),
		logging.String("action", string(uevent.Action)),
	)
	if m.handler == nil {
		return
	}
	m.handler("display change on " + card)
}

// cardName extracts the DRM card from a uevent ("card0").
func cardName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return strings.TrimPrefix(devname, "dri/")
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		devpath = uevent.KObj
	}
	if devpath == "" {
		return "unknown"
	}
	parts := strings.Split(devpath, "/")
	return parts[len(parts)-1]
}
