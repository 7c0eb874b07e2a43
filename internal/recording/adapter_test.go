package recording_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screencap/internal/blob"
	"screencap/internal/capture"
	"screencap/internal/logging"
	"screencap/internal/recording"
	"screencap/internal/services"
)

type stubEngine struct {
	mu        sync.Mutex
	starts    int
	pauses    int
	resumes   int
	stops     int
	startErr  error
	release   chan struct{}
	stopBlob  blob.Blob
	stopError error
}

func (s *stubEngine) Start(context.Context, *capture.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return s.startErr
}

func (s *stubEngine) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	return nil
}

func (s *stubEngine) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *stubEngine) Stop(context.Context) (blob.Blob, error) {
	s.mu.Lock()
	s.stops++
	release := s.release
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	return s.stopBlob, s.stopError
}

func (s *stubEngine) counts() (int, int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.pauses, s.resumes, s.stops
}

func testStream() *capture.Stream {
	return capture.NewStream(capture.NewTrack(capture.KindVideo, "screen", capture.Source{}, capture.Settings{}))
}

func awaitResult(t *testing.T, ch <-chan recording.StopResult) recording.StopResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("stop future never resolved")
		return recording.StopResult{}
	}
}

func TestAdapterPauseResumeOnlyInValidStates(t *testing.T) {
	engine := &stubEngine{}
	adapter := recording.NewAdapter(engine, logging.NewNop())

	adapter.Pause()
	adapter.Resume()
	if _, pauses, resumes, _ := engine.counts(); pauses != 0 || resumes != 0 {
		t.Fatalf("expected no engine calls while inactive, got pause=%d resume=%d", pauses, resumes)
	}

	if err := adapter.Start(context.Background(), testStream()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	adapter.Resume()
	adapter.Pause()
	adapter.Pause()
	if adapter.State() != recording.StatePaused {
		t.Fatalf("expected paused, got %s", adapter.State())
	}
	adapter.Resume()
	adapter.Resume()
	if _, pauses, resumes, _ := engine.counts(); pauses != 1 || resumes != 1 {
		t.Fatalf("expected one pause and one resume, got pause=%d resume=%d", pauses, resumes)
	}
}

func TestAdapterStopIsFutureAndIdempotent(t *testing.T) {
	engine := &stubEngine{release: make(chan struct{}), stopBlob: blob.New([]byte("webm"), blob.MimeWebM)}
	adapter := recording.NewAdapter(engine, logging.NewNop())
	if err := adapter.Start(context.Background(), testStream()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	first := adapter.Stop(context.Background())
	second := adapter.Stop(context.Background())
	select {
	case <-first:
		t.Fatal("stop resolved before engine finished")
	case <-time.After(20 * time.Millisecond):
	}
	close(engine.release)

	a := awaitResult(t, first)
	b := awaitResult(t, second)
	if a.Err != nil || string(a.Blob.Data) != "webm" || string(b.Blob.Data) != "webm" {
		t.Fatalf("unexpected results: %+v %+v", a, b)
	}
	if _, _, _, stops := engine.counts(); stops != 1 {
		t.Fatalf("expected engine stopped once, got %d", stops)
	}
	if adapter.State() != recording.StateStopped {
		t.Fatalf("expected stopped, got %s", adapter.State())
	}
}

func TestAdapterStopWhenInactive(t *testing.T) {
	adapter := recording.NewAdapter(&stubEngine{}, logging.NewNop())
	res := awaitResult(t, adapter.Stop(context.Background()))
	if !errors.Is(res.Err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", res.Err)
	}
}

func TestAdapterStartFailureReturnsToInactive(t *testing.T) {
	engine := &stubEngine{startErr: errors.New("no encoder")}
	adapter := recording.NewAdapter(engine, logging.NewNop())
	if err := adapter.Start(context.Background(), testStream()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if adapter.State() != recording.StateInactive {
		t.Fatalf("expected inactive after failed start, got %s", adapter.State())
	}
}

func TestAdapterRestartsAfterStop(t *testing.T) {
	engine := &stubEngine{stopBlob: blob.New([]byte("x"), blob.MimeWebM)}
	adapter := recording.NewAdapter(engine, logging.NewNop())
	for i := 0; i < 2; i++ {
		if err := adapter.Start(context.Background(), testStream()); err != nil {
			t.Fatalf("Start %d returned error: %v", i, err)
		}
		if res := awaitResult(t, adapter.Stop(context.Background())); res.Err != nil {
			t.Fatalf("Stop %d returned error: %v", i, res.Err)
		}
	}
	if starts, _, _, stops := engine.counts(); starts != 2 || stops != 2 {
		t.Fatalf("expected two cycles, got starts=%d stops=%d", starts, stops)
	}
}
