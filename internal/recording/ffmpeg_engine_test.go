package recording_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screencap/internal/capture"
	"screencap/internal/logging"
	"screencap/internal/recording"
	"screencap/internal/testsupport"
)

// recorderStub writes "[<segment suffix>]" for recordings and, in concat
// mode, joins the files named in the list in order.
const recorderStub = `for last; do :; done
case " $* " in
*" concat "*)
  prev=""
  for a; do
    if [ "$prev" = "-i" ]; then list="$a"; fi
    prev="$a"
  done
  sed -n "s/^file '\\(.*\\)'$/\\1/p" "$list" | while IFS= read -r f; do cat "$f"; done > "$last"
  exit 0
  ;;
esac
printf '[%s]' "${last##*-}" > "$last"
read -r _
exit 0
`

const crashingStub = `for last; do :; done
printf 'partial' > "$last"
exit 1
`

func TestBuildArgsMapsTracks(t *testing.T) {
	mic := capture.NewTrack(capture.KindAudio, "mic", capture.Source{Format: "pulse", Device: "mic-src", Args: []string{"-sample_rate", "44100"}}, capture.Settings{NoiseSuppression: true})
	screen := capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0", Args: []string{"-framerate", "30"}}, capture.Settings{})
	args := recording.BuildArgs(capture.NewStream(mic, screen), recording.ArgsOptions{
		MaxWidth:  4096,
		MaxHeight: 2160,
		FrameRate: 30,
	}, "/tmp/out.webm")
	joined := strings.Join(args, " ")

	for _, fragment := range []string{
		"-sample_rate 44100 -f pulse -i mic-src",
		"-framerate 30 -f x11grab -i :0",
		"-map 1:v",
		"-map 0:a",
		"min(iw,4096)",
		"min(ih,2160)",
		"-c:v libvpx-vp9",
		"-filter:a afftdn",
		"-c:a libopus",
		"-f webm /tmp/out.webm",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args: %s", fragment, joined)
		}
	}
}

func TestBuildArgsWithoutAudio(t *testing.T) {
	screen := capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{})
	joined := strings.Join(recording.BuildArgs(capture.NewStream(screen), recording.ArgsOptions{}, "out.webm"), " ")
	if strings.Contains(joined, "-c:a") || strings.Contains(joined, "-map 0:a") {
		t.Fatalf("expected no audio encoding, got %s", joined)
	}
}

func TestConcatArgsCopiesStreams(t *testing.T) {
	joined := strings.Join(recording.ConcatArgs("/tmp/list.txt", "/tmp/out.webm"), " ")
	for _, fragment := range []string{
		"-f concat -safe 0 -i /tmp/list.txt",
		"-c copy",
		"-f webm /tmp/out.webm",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args: %s", fragment, joined)
		}
	}
	if strings.Contains(joined, "libvpx") {
		t.Fatalf("joining segments must not re-encode: %s", joined)
	}
}

func TestConcatListQuotesPaths(t *testing.T) {
	got := recording.ConcatList([]string{"/tmp/a.webm", "/tmp/it's.webm"})
	want := "file '/tmp/a.webm'\nfile '/tmp/it'\\''s.webm'\n"
	if got != want {
		t.Fatalf("ConcatList = %q, want %q", got, want)
	}
}

func TestSegmentPathIsOrdered(t *testing.T) {
	first := recording.SegmentPath("/staging", "abc", 0)
	second := recording.SegmentPath("/staging", "abc", 1)
	if first != filepath.Join("/staging", "recording-abc-000.webm") {
		t.Fatalf("unexpected segment path %q", first)
	}
	if !(first < second) {
		t.Fatalf("segment paths must sort in recording order: %q %q", first, second)
	}
}

func TestFFmpegEngineRecordsAndStops(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffmpeg", recorderStub))
	engine := recording.NewFFmpegEngine(cfg, logging.NewNop())

	stream := capture.NewStream(capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{}))
	if err := engine.Start(context.Background(), stream); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// Give the stub time to write its output before asking it to quit.
	time.Sleep(100 * time.Millisecond)
	data, err := engine.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if string(data.Data) != "[000.webm]" || data.Type != "video/webm" {
		t.Fatalf("unexpected blob: %q %q", data.Data, data.Type)
	}
	if stream.VideoTracks()[0].Live() != true {
		t.Fatal("a requested stop must not end the tracks")
	}
	assertStagingEmpty(t, cfg.Paths.StagingDir)
}

func TestFFmpegEnginePauseSplitsSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffmpeg", recorderStub))
	engine := recording.NewFFmpegEngine(cfg, logging.NewNop())

	stream := capture.NewStream(capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{}))
	if err := engine.Start(context.Background(), stream); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if err := engine.Pause(); err == nil {
		t.Fatal("expected second Pause to fail while no segment is running")
	}

	// Nothing is encoding while paused.
	entries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the finished first segment while paused, got %d entries", len(entries))
	}

	if err := engine.Resume(); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	data, err := engine.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if string(data.Data) != "[000.webm][001.webm]" {
		t.Fatalf("expected both spans joined in order, got %q", data.Data)
	}
	if stream.VideoTracks()[0].Live() != true {
		t.Fatal("pausing must not end the tracks")
	}
	assertStagingEmpty(t, cfg.Paths.StagingDir)
}

func TestFFmpegEngineStopWhilePaused(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffmpeg", recorderStub))
	engine := recording.NewFFmpegEngine(cfg, logging.NewNop())

	stream := capture.NewStream(capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{}))
	if err := engine.Start(context.Background(), stream); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	data, err := engine.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if string(data.Data) != "[000.webm]" {
		t.Fatalf("expected the single recorded span, got %q", data.Data)
	}
	assertStagingEmpty(t, cfg.Paths.StagingDir)
}

func assertStagingEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "recording-") {
			t.Fatalf("expected segment files to be removed, found %s", entry.Name())
		}
	}
}

func TestFFmpegEngineUnexpectedExitEndsTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubScript("ffmpeg", crashingStub))
	engine := recording.NewFFmpegEngine(cfg, logging.NewNop())

	screen := capture.NewTrack(capture.KindVideo, "screen", capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{})
	ended := make(chan struct{})
	screen.OnEnded(func() { close(ended) })

	if err := engine.Start(context.Background(), capture.NewStream(screen)); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("expected unexpected exit to end the display track")
	}

	data, err := engine.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop after crash returned error: %v", err)
	}
	if string(data.Data) != "partial" {
		t.Fatalf("expected partial recording, got %q", data.Data)
	}
}
