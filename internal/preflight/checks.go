package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// x11SocketDir holds the per-display sockets of local X servers.
var x11SocketDir = "/tmp/.X11-unix"

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDisplay looks for the socket of a local X display such as ":0" or
// ":1.0". Remote displays ("host:0") cannot be checked locally and are reported as
// passed.
func CheckDisplay(display string) Result {
	const name = "X display"
	display = strings.TrimSpace(display)
	if display == "" {
		return Result{Name: name, Detail: "no display configured"}
	}
	host, rest, ok := strings.Cut(display, ":")
	if !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: expected host:display)", display)}
	}
	if host != "" && host != "unix" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (remote, not checked)", display)}
	}
	number, _, _ := strings.Cut(rest, ".")
	if number == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: missing display number)", display)}
	}
	socket := filepath.Join(x11SocketDir, "X"+number)
	info, err := os.Stat(socket)
	if err != nil || info.Mode()&os.ModeSocket == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (no X server socket at %s)", display, socket)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (server socket present)", display)}
}
