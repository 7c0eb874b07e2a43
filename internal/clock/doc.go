// Package clock provides the session duration clock: a goroutine-owned
// elapsed-seconds counter driven by on/off/pause commands.
package clock
