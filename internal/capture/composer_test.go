package capture_test

import (
	"context"
	"errors"
	"testing"

	"screencap/internal/capture"
	"screencap/internal/config"
	"screencap/internal/logging"
	"screencap/internal/services"
)

type stubHost struct {
	mic        *capture.Stream
	micErr     error
	display    *capture.Stream
	displayErr error

	micCalls     int
	displayCalls int
	lastDisplay  capture.DisplayConstraints
}

func (s *stubHost) Supported(context.Context) error { return nil }

func (s *stubHost) RequestMicrophone(_ context.Context, _ capture.AudioConstraints) (*capture.Stream, error) {
	s.micCalls++
	return s.mic, s.micErr
}

func (s *stubHost) RequestDisplay(_ context.Context, c capture.DisplayConstraints) (*capture.Stream, error) {
	s.displayCalls++
	s.lastDisplay = c
	return s.display, s.displayErr
}

func newComposer(host capture.Host) *capture.Composer {
	cfg := config.Default()
	return capture.NewComposer(host, capture.ConstraintsFromConfig(&cfg), logging.NewNop())
}

func audio(label string) *capture.Track {
	return capture.NewTrack(capture.KindAudio, label, capture.Source{Format: "pulse", Device: label}, capture.Settings{})
}

func video(label string) *capture.Track {
	return capture.NewTrack(capture.KindVideo, label, capture.Source{Format: "x11grab", Device: ":0"}, capture.Settings{})
}

func TestAcquireWithMicrophoneDropsSystemAudio(t *testing.T) {
	micTrack := audio("mic")
	systemTrack := audio("system")
	screen := video("screen")
	host := &stubHost{
		mic:     capture.NewStream(micTrack),
		display: capture.NewStream(screen, systemTrack),
	}

	stream, err := newComposer(host).Acquire(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	tracks := stream.Tracks()
	if len(tracks) != 2 || tracks[0] != micTrack || tracks[1] != screen {
		t.Fatalf("unexpected composite tracks: %+v", tracks)
	}
	if !systemTrack.Stopped() {
		t.Fatal("expected unused system audio track to be released")
	}
	if host.lastDisplay.Video.MaxWidth != 4096 || host.lastDisplay.Video.MaxHeight != 2160 || host.lastDisplay.Video.FrameRate != 30 {
		t.Fatalf("unexpected display constraints: %+v", host.lastDisplay)
	}
	if host.lastDisplay.Audio.SampleRate != 44100 || !host.lastDisplay.Audio.EchoCancellation || !host.lastDisplay.Audio.NoiseSuppression {
		t.Fatalf("unexpected audio constraints: %+v", host.lastDisplay.Audio)
	}
}

func TestAcquireWithoutMicrophoneUsesSystemAudio(t *testing.T) {
	systemTrack := audio("system")
	screen := video("screen")
	host := &stubHost{display: capture.NewStream(screen, systemTrack)}

	stream, err := newComposer(host).Acquire(context.Background(), false, nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if host.micCalls != 0 {
		t.Fatalf("expected no microphone request, got %d", host.micCalls)
	}
	if got := stream.AudioTracks(); len(got) != 1 || got[0] != systemTrack {
		t.Fatalf("expected system audio track, got %+v", got)
	}
	if len(stream.VideoTracks()) != 1 {
		t.Fatalf("expected one video track")
	}
}

func TestAcquireMicrophoneDeniedFallsBack(t *testing.T) {
	systemTrack := audio("system")
	host := &stubHost{
		micErr:  errors.New("permission denied"),
		display: capture.NewStream(video("screen"), systemTrack),
	}

	stream, err := newComposer(host).Acquire(context.Background(), true, nil)
	if err != nil {
		t.Fatalf("expected microphone denial to be non-fatal, got %v", err)
	}
	if got := stream.AudioTracks(); len(got) != 1 || got[0] != systemTrack {
		t.Fatalf("expected fallback to system audio, got %+v", got)
	}
}

func TestAcquireDisplayDeniedReleasesMicrophone(t *testing.T) {
	micTrack := audio("mic")
	host := &stubHost{
		mic:        capture.NewStream(micTrack),
		displayErr: errors.New("user cancelled"),
	}

	_, err := newComposer(host).Acquire(context.Background(), true, nil)
	if !errors.Is(err, services.ErrAcquisitionDenied) {
		t.Fatalf("expected acquisition denied, got %v", err)
	}
	if !micTrack.Stopped() {
		t.Fatal("expected microphone track released on display denial")
	}
}

func TestAcquireRejectsDisplayWithoutVideo(t *testing.T) {
	host := &stubHost{display: capture.NewStream(audio("system"))}
	if _, err := newComposer(host).Acquire(context.Background(), false, nil); !errors.Is(err, services.ErrAcquisitionDenied) {
		t.Fatalf("expected acquisition denied, got %v", err)
	}
}

func TestAcquireObserverFiresOnceOnHostEnd(t *testing.T) {
	first := video("screen-0")
	second := video("screen-1")
	host := &stubHost{display: capture.NewStream(first, second)}

	fired := 0
	stream, err := newComposer(host).Acquire(context.Background(), false, func() { fired++ })
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if len(stream.VideoTracks()) != 2 {
		t.Fatal("expected all display video tracks in the composite")
	}

	second.End()
	if fired != 0 {
		t.Fatal("observer must only watch the first video track")
	}
	first.End()
	first.End()
	if fired != 1 {
		t.Fatalf("expected observer to fire once, got %d", fired)
	}
}

func TestTrackStopSuppressesEnded(t *testing.T) {
	track := video("screen")
	fired := 0
	track.OnEnded(func() { fired++ })

	track.Stop()
	track.Stop()
	track.End()

	if fired != 0 {
		t.Fatalf("stop must not fire ended observers, got %d", fired)
	}
	if track.Releases() != 1 {
		t.Fatalf("expected single release, got %d", track.Releases())
	}
	if track.Live() {
		t.Fatal("expected stopped track not live")
	}
}
