// Command screencap controls the screen recording daemon: session commands
// (start, pause, resume, stop, restart, convert, save), the recording
// catalog (list, remove), status, daemon lifecycle and config helpers.
package main
