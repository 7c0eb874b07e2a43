// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Session operations return api.Session payloads. Daemon-side errors travel as
// "[code] message" strings and come back as *RemoteError values that unwrap to
// the services markers, so callers can keep using errors.Is.
package ipc
