// Package daemon coordinates the long-running screencap process and its
// system integration points.
//
// It wires the session manager, the transcode pipeline and the recording
// library into a single lifecycle with flock-based locking to prevent multiple
// instances. The daemon serves the HTTP API (session control, blob downloads,
// saved recordings, Prometheus metrics), records dependency health, and
// optionally watches DRM hotplug events so unplugging a display ends the
// capture the same way the host's stop-sharing control would.
//
// Keep orchestration logic here: session sequencing lives in the session
// package while the daemon focuses on startup, shutdown, and transport.
package daemon
