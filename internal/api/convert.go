package api

import (
	"screencap/internal/blob"
	"screencap/internal/deps"
	"screencap/internal/library"
	"screencap/internal/session"
)

// BlobPathPrefix is the HTTP route serving registry blobs.
const BlobPathPrefix = "/api/blobs/"

// FromSnapshot converts a session snapshot into its wire form.
func FromSnapshot(s session.Snapshot) Session {
	out := Session{
		ID:                s.ID,
		Status:            string(s.Status),
		ElapsedSeconds:    s.ElapsedSeconds,
		Elapsed:           FormatElapsed(s.ElapsedSeconds),
		DurationSeconds:   s.DurationSeconds,
		Microphone:        s.UseMicrophone,
		StopTrigger:       string(s.StopTrigger),
		Finalizing:        s.Finalizing,
		CorrectionApplied: s.CorrectionApplied,
		RecordedURL:       s.RecordedURL,
		RecordedPath:      BlobPath(s.RecordedURL),
		TranscodedURL:     s.TranscodedURL,
		TranscodedPath:    BlobPath(s.TranscodedURL),
		Converting:        s.Converting,
		TranscodeError:    s.TranscodeError,
		RecordingError:    s.RecordingError,
		Unsupported:       s.Unsupported,
	}
	if s.Status == session.StatusStopped {
		out.Elapsed = FormatElapsed(s.DurationSeconds)
	}
	if !s.StartedAt.IsZero() {
		out.StartedAt = s.StartedAt.UTC().Format(dateTimeFormat)
	}
	return out
}

// BlobPath maps a registry URL to the HTTP path serving it.
func BlobPath(url string) string {
	id := blob.ID(url)
	if id == "" {
		return ""
	}
	return BlobPathPrefix + id
}

// FromRecording converts a catalog entry into its wire form.
func FromRecording(rec *library.Recording) Recording {
	if rec == nil {
		return Recording{}
	}
	out := Recording{
		ID:              rec.ID,
		SessionID:       rec.SessionID,
		Kind:            string(rec.Kind),
		Path:            rec.Path,
		MimeType:        rec.MimeType,
		DurationSeconds: rec.DurationSeconds,
		Duration:        FormatElapsed(rec.DurationSeconds),
		SizeBytes:       rec.SizeBytes,
		Microphone:      rec.Microphone,
	}
	if !rec.CreatedAt.IsZero() {
		out.CreatedAt = rec.CreatedAt.UTC().Format(dateTimeFormat)
	}
	return out
}

// FromRecordings converts a list of catalog entries, skipping nils.
func FromRecordings(recs []*library.Recording) []Recording {
	out := make([]Recording, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, FromRecording(rec))
	}
	return out
}

// FromDependencyStatuses converts dependency checks and assigns severities.
func FromDependencyStatuses(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
			Severity:    dependencySeverity(s.Available, s.Optional),
		})
	}
	return out
}

func dependencySeverity(available, optional bool) string {
	switch {
	case available:
		return "ok"
	case optional:
		return "warn"
	default:
		return "error"
	}
}
