package preflight

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"screencap/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDisplay(t *testing.T) {
	dir := t.TempDir()
	old := x11SocketDir
	x11SocketDir = dir
	t.Cleanup(func() { x11SocketDir = old })

	ln, err := net.Listen("unix", filepath.Join(dir, "X7"))
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	cases := map[string]bool{
		":7":       true,
		":7.0":     true,
		"unix:7":   true,
		"remote:0": true,
		":8":       false,
		"":         false,
		"nonsense": false,
		":":        false,
	}
	for display, want := range cases {
		if got := CheckDisplay(display); got.Passed != want {
			t.Fatalf("CheckDisplay(%q) passed=%v, want %v (%s)", display, got.Passed, want, got.Detail)
		}
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil, got %v", results)
	}
}

func TestRunAll_ReportsMissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(cfg)
	if len(results) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(results))
	}
	for _, r := range results[:4] {
		if !r.Passed {
			t.Fatalf("expected %s to pass: %s", r.Name, r.Detail)
		}
	}

	cfg.Paths.RecordingsDir = filepath.Join(t.TempDir(), "missing")
	failed := Failed(RunAll(cfg))
	if len(failed) == 0 || failed[0].Name != "Recordings directory" {
		t.Fatalf("expected recordings directory failure, got %+v", failed)
	}
}
