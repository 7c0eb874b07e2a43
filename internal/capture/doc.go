// Package capture acquires screen and microphone tracks from the host and
// composes them into the stream the recorder consumes.
package capture
