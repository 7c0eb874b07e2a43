package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"screencap/internal/config"
)

func TestNewDisplayMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := newDisplayMonitor(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("disabled option returns nil", func(t *testing.T) {
		cfg := config.Default()
		cfg.Capture.StopOnDisplayChange = false
		if m := newDisplayMonitor(&cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when stop_on_display_change is off")
		}
	})

	t.Run("enabled option creates monitor", func(t *testing.T) {
		cfg := config.Default()
		cfg.Capture.StopOnDisplayChange = true
		if m := newDisplayMonitor(&cfg, nil, nil); m == nil {
			t.Fatal("expected non-nil monitor")
		}
	})
}

func TestDisplayMonitorNilSafety(t *testing.T) {
	var m *displayMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
}

func TestDisplayMonitorStopUnstarted(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.StopOnDisplayChange = true
	m := newDisplayMonitor(&cfg, nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false after Stop on unstarted monitor")
	}
}

func TestBuildDisplayMatcher(t *testing.T) {
	matcher := buildDisplayMatcher()

	hotplug := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "drm", "HOTPLUG": "1"},
	}
	if !matcher.Evaluate(hotplug) {
		t.Error("expected matcher to accept drm hotplug event")
	}

	block := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "block", "HOTPLUG": "1"},
	}
	if matcher.Evaluate(block) {
		t.Error("expected matcher to reject non-drm subsystem")
	}

	remove := netlink.UEvent{
		Action: netlink.REMOVE,
		Env:    map[string]string{"SUBSYSTEM": "drm", "HOTPLUG": "1"},
	}
	if matcher.Evaluate(remove) {
		t.Error("expected matcher to reject REMOVE action")
	}
}

func TestDisplayMonitorHandleEvent(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.StopOnDisplayChange = true

	var reasons []string
	m := newDisplayMonitor(&cfg, nil, func(reason string) { reasons = append(reasons, reason) })

	m.handleEvent(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"DEVNAME": "dri/card1"},
	})
	m.handleEvent(netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"DEVPATH": "/devices/pci0000:00/0000:00:02.0/drm/card0"},
	})

	if len(reasons) != 2 {
		t.Fatalf("expected two handler calls, got %d", len(reasons))
	}
	if reasons[0] != "display change on card1" || reasons[1] != "display change on card0" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}
}
