package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"screencap/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("expected blank command detail, got %q", results[2].Detail)
	}

	missing := MissingRequired(results)
	if len(missing) != 2 {
		t.Fatalf("expected two missing required deps, got %d", len(missing))
	}
}

func TestRequirementsMarksPactlOptional(t *testing.T) {
	cfg := config.Default()
	reqs := Requirements(&cfg)
	if len(reqs) != 2 {
		t.Fatalf("expected two requirements, got %d", len(reqs))
	}
	if reqs[0].Command != "ffmpeg" || reqs[0].Optional {
		t.Fatalf("expected ffmpeg to be required, got %#v", reqs[0])
	}
	if !reqs[1].Optional {
		t.Fatalf("expected pactl to be optional, got %#v", reqs[1])
	}
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D libopus              libopus Opus (codec opus)
 V....D mpeg4                MPEG-4 part 2
`

func TestCheckEncoders(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffmpeg")
	body := "#!/bin/sh\ncat <<'OUT'\n" + encodersOutput + "OUT\n"
	if err := os.WriteFile(stub, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckEncoders(context.Background(), stub, "libvpx-vp9", "libopus")
	if !status.Available {
		t.Fatalf("expected encoders available, got detail %q", status.Detail)
	}

	status = CheckEncoders(context.Background(), stub, "libvpx-vp9", "libaom-av1")
	if status.Available {
		t.Fatal("expected missing encoder to fail the check")
	}
	if !strings.Contains(status.Detail, "libaom-av1") {
		t.Fatalf("expected detail to name the missing encoder, got %q", status.Detail)
	}
}

func TestCheckEncodersCommandFailure(t *testing.T) {
	status := CheckEncoders(context.Background(), filepath.Join(t.TempDir(), "missing-ffmpeg"), "libopus")
	if status.Available || status.Detail == "" {
		t.Fatalf("expected failure with detail, got %#v", status)
	}
}

func TestParseEncodersSkipsLegend(t *testing.T) {
	found := parseEncoders(encodersOutput)
	if _, ok := found["="]; ok {
		t.Fatal("legend rows should be skipped")
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 encoders, got %d", len(found))
	}
}
