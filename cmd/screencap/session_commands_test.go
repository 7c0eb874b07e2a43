package main

import (
	"os"
	"path/filepath"
	"testing"

	"screencap/internal/services"
	"screencap/internal/session/sessiontest"
)

func TestSessionCommandsRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start", "--mic"}, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Recording")
	requireContains(t, out, "Microphone:  yes")

	out, _, err = runCLI(t, []string{"pause"}, env.configPath)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	requireContains(t, out, "Paused")

	if _, _, err := runCLI(t, []string{"resume"}, env.configPath); err != nil {
		t.Fatalf("resume: %v", err)
	}

	out, _, err = runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Stopped")
	requireContains(t, out, "blob:")

	target := filepath.Join(t.TempDir(), "out.webm")
	out, _, err = runCLI(t, []string{"save", "--output", target}, env.configPath)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	requireContains(t, out, "Saved "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != string(sessiontest.RecordedBytes) {
		t.Fatalf("unexpected saved bytes %q", data)
	}

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "out.webm")

	out, _, err = runCLI(t, []string{"restart"}, env.configPath)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	requireContains(t, out, "Idle")
}

func TestStartCancelledSelection(t *testing.T) {
	composer := &sessiontest.StubComposer{Err: services.Wrap(services.ErrAcquisitionDenied, "capture", "acquire", "selection cancelled", nil)}
	env := setupCLITestEnv(t, sessiontest.WithComposer(composer))

	out, _, err := runCLI(t, []string{"start"}, env.configPath)
	if err != nil {
		t.Fatalf("expected cancelled selection to succeed quietly, got %v", err)
	}
	requireContains(t, out, "Screen selection was cancelled")
}

func TestSaveBeforeStopExplains(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"save"}, env.configPath)
	if err == nil {
		t.Fatal("expected save without a recording to fail")
	}
	requireContains(t, err.Error(), "screencap stop")
}

func TestRemoveByShortID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"start"}, env.configPath); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err := runCLI(t, []string{"stop"}, env.configPath); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, _, err := runCLI(t, []string{"save", "--name", "keep-me"}, env.configPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	recs, err := env.store.List(t.Context(), 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected one catalog entry, got %d (%v)", len(recs), err)
	}

	out, _, err := runCLI(t, []string{"remove", "--keep-file", recs[0].ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Forgot")
	if _, err := os.Stat(recs[0].Path); err != nil {
		t.Fatalf("expected file kept: %v", err)
	}

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, "No saved recordings")
}
