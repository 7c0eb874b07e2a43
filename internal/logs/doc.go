// Package logs reads the daemon's run logs for the CLI: the last N lines of
// the current run and a follow mode that survives daemon restarts by
// re-resolving the screencap.log pointer.
package logs
