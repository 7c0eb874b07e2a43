// Package services defines the shared error vocabulary and context helpers
// used by the session components and the daemon surfaces.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper so a failure keeps both a
//     classification (acquisition denied, transcode failure, ...) and the
//     component/operation that produced it.
//   - Stable wire codes for markers via Code, consumed by IPC and HTTP.
//   - Context helpers that stamp session and correlation identifiers for
//     logging.
package services
