// Package session implements the recording session state machine.
//
// A Manager moves one session through idle, acquiring_media, recording,
// paused and stopped, and back to idle on restart. It owns the composite
// capture stream while recording, feeds elapsed seconds from the process-wide
// clock, runs the stop sequence exactly once per session whichever trigger
// arrives first, and exposes the recorded and converted blobs as registry
// URLs.
package session
