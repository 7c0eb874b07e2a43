package webm

import (
	"log/slog"

	"screencap/internal/blob"
	"screencap/internal/logging"
	"screencap/internal/services"
)

// Finalizer patches recorded WebM blobs so players see the real duration.
type Finalizer struct {
	logger *slog.Logger
}

// NewFinalizer returns a Finalizer that logs under the finalizer component.
func NewFinalizer(logger *slog.Logger) *Finalizer {
	return &Finalizer{logger: logging.NewComponentLogger(logger, "finalizer")}
}

// Correct returns a copy of b whose container duration is durationMillis.
// The blob type is preserved.
func (f *Finalizer) Correct(b blob.Blob, durationMillis int64) (blob.Blob, error) {
	if b.Empty() {
		return blob.Blob{}, services.Wrap(services.ErrFinalizeCorrection, "finalizer", "correct", "recording is empty", nil)
	}
	fixed, err := FixDuration(b.Data, durationMillis)
	if err != nil {
		return blob.Blob{}, services.Wrap(services.ErrFinalizeCorrection, "finalizer", "correct", "rewrite duration", err)
	}
	f.logger.Debug("duration corrected",
		logging.String(logging.FieldEventType, "duration_corrected"),
		logging.Int64("duration_ms", durationMillis),
		logging.Int("bytes_before", len(b.Data)),
		logging.Int("bytes_after", len(fixed)),
	)
	return blob.New(fixed, b.Type), nil
}
