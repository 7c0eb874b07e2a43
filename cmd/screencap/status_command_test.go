package main

import (
	"encoding/json"
	"testing"

	"screencap/internal/daemonctl"
)

func TestStatusCommandReportsSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "== Session ==")
	requireContains(t, out, "Idle")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "Recordings directory")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snap daemonctl.StatusSnapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if !snap.Reachable || snap.Session.Status != "idle" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
