// Package daemonctl holds the client-side process control the CLI uses:
// launching a detached daemon, waiting for its socket, shutting it down with a
// SIGKILL fallback, and building status views that still work offline.
package daemonctl
