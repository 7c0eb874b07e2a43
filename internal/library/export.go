package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"screencap/internal/blob"
	"screencap/internal/config"
	"screencap/internal/fileutil"
	"screencap/internal/logging"
	"screencap/internal/metrics"
	"screencap/internal/textutil"
)

// SaveRequest describes one blob to write to disk.
type SaveRequest struct {
	SessionID       string
	Kind            Kind
	Blob            blob.Blob
	DurationSeconds int
	Microphone      bool
	// Name overrides the generated base name. The extension follows the blob type.
	Name string
	// OutputPath is a target file or directory. Empty means the recordings dir.
	OutputPath string
}

// Exporter writes recordings to disk and catalogs them.
type Exporter struct {
	store  *Store
	dir    string
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter builds an exporter. store may be nil when the catalog is
// disabled; files are still written.
func NewExporter(cfg *config.Config, store *Store, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		dir:    cfg.Paths.RecordingsDir,
		prefix: cfg.Library.FilePrefix,
		logger: logging.NewComponentLogger(logger, "library"),
		now:    time.Now,
	}
}

// Save writes req.Blob and records it in the catalog.
func (e *Exporter) Save(ctx context.Context, req SaveRequest) (*Recording, error) {
	if req.Blob.Empty() {
		return nil, fmt.Errorf("nothing to save")
	}
	now := e.now().UTC()
	target, err := e.targetPath(req, now)
	if err != nil {
		return nil, err
	}
	if err := fileutil.WriteFileVerified(target, req.Blob.Data, 0o644); err != nil {
		return nil, err
	}

	rec := &Recording{
		SessionID:       req.SessionID,
		Kind:            req.Kind,
		Path:            target,
		MimeType:        req.Blob.Type,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       int64(req.Blob.Size()),
		Microphone:      req.Microphone,
		CreatedAt:       now,
	}
	if e.store != nil {
		if err := e.store.Add(ctx, rec); err != nil {
			return nil, err
		}
	}
	if rec.Kind == "" {
		rec.Kind = KindOriginal
	}
	metrics.SavedRecordingsTotal.WithLabelValues(string(rec.Kind)).Inc()
	logging.WithContext(ctx, e.logger).Info("recording saved",
		logging.String(logging.FieldEventType, "recording_saved"),
		logging.String("path", target),
		logging.String("kind", string(rec.Kind)),
		logging.Int64("bytes", rec.SizeBytes),
	)
	return rec, nil
}

func (e *Exporter) targetPath(req SaveRequest, now time.Time) (string, error) {
	ext := req.Blob.Extension()
	name := textutil.RecordingFileName(req.Name, e.prefix, now.Local())
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}

	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		output = e.dir
	} else {
		expanded, err := config.ExpandPath(output)
		if err != nil {
			return "", err
		}
		output = expanded
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name), nil
	}
	if req.OutputPath == "" || strings.HasSuffix(req.OutputPath, string(os.PathSeparator)) {
		return filepath.Join(output, name), nil
	}
	return output, nil
}
