// Package recording wraps the recording engine behind a small state machine
// and provides the ffmpeg-backed engine that encodes VP9/Opus WebM.
package recording
