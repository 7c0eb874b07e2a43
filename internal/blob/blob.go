package blob

import (
	"strings"
)

const (
	// MimeWebM is the container type produced by the recording engine.
	MimeWebM = "video/webm"
	// MimeRecording is the full codec-qualified type requested from the recorder.
	MimeRecording = `video/webm;codecs="vp9,opus"`
	// MimeMP4 is the container type produced by the transcode pipeline.
	MimeMP4 = "video/mp4"
)

// Blob is an immutable in-memory media payload with its MIME type.
type Blob struct {
	Data []byte
	Type string
}

// New wraps data as a blob of the given MIME type.
func New(data []byte, mimeType string) Blob {
	return Blob{Data: data, Type: strings.TrimSpace(mimeType)}
}

// Size returns the payload length in bytes.
func (b Blob) Size() int {
	return len(b.Data)
}

// Empty reports whether the blob carries no payload.
func (b Blob) Empty() bool {
	return len(b.Data) == 0
}

// BaseType returns the MIME type without parameters ("video/webm" for
// `video/webm;codecs="vp9,opus"`).
func (b Blob) BaseType() string {
	base, _, _ := strings.Cut(b.Type, ";")
	return strings.TrimSpace(base)
}

// Extension returns the file extension conventionally used for the blob type.
func (b Blob) Extension() string {
	switch b.BaseType() {
	case MimeMP4:
		return ".mp4"
	case MimeWebM:
		return ".webm"
	default:
		return ".bin"
	}
}
