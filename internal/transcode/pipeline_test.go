package transcode_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screencap/internal/blob"
	"screencap/internal/logging"
	"screencap/internal/services"
	"screencap/internal/transcode"
)

// minimalMP4 is an ftyp box followed by an empty moov box.
var minimalMP4 = []byte{
	0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0,
	0, 0, 0, 8, 'm', 'o', 'o', 'v',
}

type stubEngine struct {
	mu       sync.Mutex
	loads    int
	execs    int
	loadErr  error
	execErr  error
	output   []byte
	files    map[string][]byte
	args     []string
	gate     chan struct{}
	inflight int
	maxPar   int
}

func newStubEngine() *stubEngine {
	return &stubEngine{output: minimalMP4, files: map[string][]byte{}}
}

func (s *stubEngine) Load(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.loadErr
}

func (s *stubEngine) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *stubEngine) Exec(_ context.Context, args []string) error {
	s.mu.Lock()
	s.execs++
	s.args = args
	s.inflight++
	if s.inflight > s.maxPar {
		s.maxPar = s.inflight
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.execErr != nil {
		return s.execErr
	}
	if _, ok := s.files[transcode.InputName]; !ok {
		return errors.New("input missing")
	}
	s.files[transcode.OutputName] = s.output
	return nil
}

func (s *stubEngine) ReadFile(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (s *stubEngine) DeleteFile(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
	return nil
}

func (s *stubEngine) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.execs
}

func source() blob.Blob {
	return blob.New([]byte("webm-data"), blob.MimeWebM)
}

func TestConvertTwiceRunsEngineOnce(t *testing.T) {
	engine := newStubEngine()
	pipeline := transcode.NewPipeline(engine, logging.NewNop())
	job := transcode.NewJob(source())

	first, err := pipeline.Convert(context.Background(), job)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	second, err := pipeline.Convert(context.Background(), job)
	if err != nil {
		t.Fatalf("second Convert returned error: %v", err)
	}
	if first.Type != blob.MimeMP4 || string(second.Data) != string(first.Data) {
		t.Fatalf("unexpected outputs: %+v %+v", first, second)
	}
	if loads, execs := engine.counts(); loads != 1 || execs != 1 {
		t.Fatalf("expected one load and one exec, got %d/%d", loads, execs)
	}
	if got := engine.args; len(got) != 5 || got[1] != "input.webm" || got[4] != "output.mp4" {
		t.Fatalf("unexpected remux args: %v", got)
	}
	if len(engine.files) != 0 {
		t.Fatalf("expected engine files cleaned up, got %v", engine.files)
	}
}

func TestConvertWhileInProgress(t *testing.T) {
	engine := newStubEngine()
	engine.gate = make(chan struct{})
	pipeline := transcode.NewPipeline(engine, logging.NewNop())
	job := transcode.NewJob(source())

	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Convert(context.Background(), job)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !job.InProgress() {
		if time.Now().After(deadline) {
			t.Fatal("conversion never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := pipeline.Convert(context.Background(), job); !errors.Is(err, services.ErrConversionInProgress) {
		t.Fatalf("expected conversion in progress, got %v", err)
	}
	close(engine.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Convert returned error: %v", err)
	}
	if _, execs := engine.counts(); execs != 1 {
		t.Fatalf("expected a single exec, got %d", execs)
	}
}

func TestConvertFailureAllowsRetry(t *testing.T) {
	engine := newStubEngine()
	engine.execErr = errors.New("boom")
	pipeline := transcode.NewPipeline(engine, logging.NewNop())
	job := transcode.NewJob(source())

	if _, err := pipeline.Convert(context.Background(), job); !errors.Is(err, services.ErrTranscodeFailure) {
		t.Fatalf("expected transcode failure, got %v", err)
	}
	if job.InProgress() || job.Err() == nil {
		t.Fatalf("expected job reset with error, inProgress=%v err=%v", job.InProgress(), job.Err())
	}
	if _, ok := job.Output(); ok {
		t.Fatal("failed job must not have output")
	}
	if string(job.Input().Data) != "webm-data" {
		t.Fatal("original blob must stay available")
	}

	engine.mu.Lock()
	engine.execErr = nil
	engine.mu.Unlock()
	if _, err := pipeline.Convert(context.Background(), job); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if job.Err() != nil {
		t.Fatalf("expected error cleared after retry, got %v", job.Err())
	}
}

func TestConvertRejectsInvalidMP4(t *testing.T) {
	engine := newStubEngine()
	engine.output = []byte{0, 0, 0, 8, 'f', 'r', 'e', 'e'}
	pipeline := transcode.NewPipeline(engine, logging.NewNop())
	if _, err := pipeline.Convert(context.Background(), transcode.NewJob(source())); !errors.Is(err, services.ErrTranscodeFailure) {
		t.Fatalf("expected transcode failure for output without moov, got %v", err)
	}
}

func TestInitializeRetriesAfterFailure(t *testing.T) {
	engine := newStubEngine()
	engine.loadErr = errors.New("missing")
	pipeline := transcode.NewPipeline(engine, logging.NewNop())

	if err := pipeline.Initialize(context.Background()); !errors.Is(err, services.ErrTranscodeFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if pipeline.Ready() {
		t.Fatal("pipeline must not be ready after failed load")
	}

	engine.mu.Lock()
	engine.loadErr = nil
	engine.mu.Unlock()
	if err := pipeline.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize returned error: %v", err)
	}
	if err := pipeline.Initialize(context.Background()); err != nil {
		t.Fatalf("third Initialize returned error: %v", err)
	}
	if loads, _ := engine.counts(); loads != 2 {
		t.Fatalf("expected two load attempts, got %d", loads)
	}
}

func TestRemuxSerializesEngineUse(t *testing.T) {
	engine := newStubEngine()
	engine.gate = make(chan struct{})
	pipeline := transcode.NewPipeline(engine, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = pipeline.Convert(context.Background(), transcode.NewJob(source()))
		}()
	}
	for i := 0; i < 3; i++ {
		engine.gate <- struct{}{}
	}
	wg.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.maxPar != 1 {
		t.Fatalf("expected serialized engine use, saw %d concurrent execs", engine.maxPar)
	}
}

func TestVerifyMP4(t *testing.T) {
	if err := transcode.VerifyMP4(minimalMP4); err != nil {
		t.Fatalf("VerifyMP4 rejected valid boxes: %v", err)
	}
	if err := transcode.VerifyMP4(nil); err == nil {
		t.Fatal("expected error for empty data")
	}
}
