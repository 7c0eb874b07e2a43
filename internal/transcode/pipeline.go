package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abema/go-mp4"
	"golang.org/x/sync/singleflight"

	"screencap/internal/blob"
	"screencap/internal/logging"
	"screencap/internal/metrics"
	"screencap/internal/services"
)

// Fixed names inside the engine's working area.
const (
	InputName  = "input.webm"
	OutputName = "output.mp4"
)

// Engine is a transcoder with a private file area. Load must succeed before
// any other call.
type Engine interface {
	Load(ctx context.Context) error
	WriteFile(name string, data []byte) error
	Exec(ctx context.Context, args []string) error
	ReadFile(name string) ([]byte, error)
	DeleteFile(name string) error
}

// RemuxArgs is the container-only conversion command.
func RemuxArgs() []string {
	return []string{"-i", InputName, "-c", "copy", OutputName}
}

// Pipeline loads an Engine once per process and serializes its use.
type Pipeline struct {
	engine Engine
	logger *slog.Logger

	loads  singleflight.Group
	loaded atomic.Bool
	execMu sync.Mutex
}

// NewPipeline wraps engine. Nothing is loaded until Initialize or the first
// conversion.
func NewPipeline(engine Engine, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		engine: engine,
		logger: logging.NewComponentLogger(logger, "transcode"),
	}
}

// Ready reports whether the engine has loaded.
func (p *Pipeline) Ready() bool {
	return p.loaded.Load()
}

// Initialize loads the engine. Concurrent callers share one load; a failed
// load is attempted again by the next caller.
func (p *Pipeline) Initialize(ctx context.Context) error {
	if p.loaded.Load() {
		return nil
	}
	_, err, _ := p.loads.Do("load", func() (any, error) {
		if p.loaded.Load() {
			return nil, nil
		}
		start := time.Now()
		if err := p.engine.Load(ctx); err != nil {
			logging.WarnWithContext(p.logger, "transcode engine load failed", "transcode_load_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that ffmpeg is installed"),
				logging.String(logging.FieldImpact, "conversion unavailable until a later attempt succeeds"),
			)
			return nil, err
		}
		p.loaded.Store(true)
		metrics.TranscodeEngineReady.Set(1)
		p.logger.Info("transcode engine loaded",
			logging.String(logging.FieldEventType, "transcode_loaded"),
			logging.Duration("elapsed", time.Since(start)),
		)
		return nil, nil
	})
	if err != nil {
		return services.Wrap(services.ErrTranscodeFailure, "transcode", "load engine", "engine unavailable", err)
	}
	return nil
}

// Remux converts a WebM blob to MP4 by copying streams into a new container.
func (p *Pipeline) Remux(ctx context.Context, source blob.Blob) (blob.Blob, error) {
	if source.Empty() {
		return blob.Blob{}, services.Wrap(services.ErrTranscodeFailure, "transcode", "remux", "source recording is empty", nil)
	}
	if err := p.Initialize(ctx); err != nil {
		return blob.Blob{}, err
	}

	p.execMu.Lock()
	defer p.execMu.Unlock()

	start := time.Now()
	data, err := p.run(ctx, source.Data)
	if err != nil {
		metrics.TranscodeTotal.WithLabelValues("failure").Inc()
		return blob.Blob{}, services.Wrap(services.ErrTranscodeFailure, "transcode", "remux", "convert to mp4", err)
	}
	metrics.TranscodeTotal.WithLabelValues("success").Inc()
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())

	logging.WithContext(ctx, p.logger).Info("recording converted",
		logging.String(logging.FieldEventType, "transcode_complete"),
		logging.Int("input_bytes", source.Size()),
		logging.Int("output_bytes", len(data)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return blob.New(data, blob.MimeMP4), nil
}

func (p *Pipeline) run(ctx context.Context, input []byte) ([]byte, error) {
	defer func() {
		for _, name := range []string{InputName, OutputName} {
			if err := p.engine.DeleteFile(name); err != nil {
				p.logger.Debug("remove engine file failed", logging.String("name", name), logging.Error(err))
			}
		}
	}()

	if err := p.engine.WriteFile(InputName, input); err != nil {
		return nil, fmt.Errorf("write %s: %w", InputName, err)
	}
	if err := p.engine.Exec(ctx, RemuxArgs()); err != nil {
		return nil, err
	}
	data, err := p.engine.ReadFile(OutputName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", OutputName, err)
	}
	if err := VerifyMP4(data); err != nil {
		return nil, err
	}
	return data, nil
}

// VerifyMP4 checks that data has the top-level boxes a player needs.
func VerifyMP4(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty mp4 output")
	}
	boxes, err := mp4.ExtractBoxes(bytes.NewReader(data), nil, []mp4.BoxPath{
		{mp4.BoxTypeFtyp()},
		{mp4.BoxTypeMoov()},
	})
	if err != nil {
		return fmt.Errorf("parse mp4: %w", err)
	}
	var ftyp, moov bool
	for _, box := range boxes {
		switch box.Type {
		case mp4.BoxTypeFtyp():
			ftyp = true
		case mp4.BoxTypeMoov():
			moov = true
		}
	}
	if !ftyp || !moov {
		return fmt.Errorf("mp4 output missing boxes (ftyp=%t moov=%t)", ftyp, moov)
	}
	return nil
}
