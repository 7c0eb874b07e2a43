package library

import "time"

// Kind distinguishes the original WebM from a converted MP4.
type Kind string

const (
	KindOriginal  Kind = "original"
	KindConverted Kind = "converted"
)

// Recording is one saved recording file.
type Recording struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Kind            Kind      `json:"kind"`
	Path            string    `json:"path"`
	MimeType        string    `json:"mime_type"`
	DurationSeconds int       `json:"duration_seconds"`
	SizeBytes       int64     `json:"size_bytes"`
	Microphone      bool      `json:"microphone"`
	CreatedAt       time.Time `json:"created_at"`
}
