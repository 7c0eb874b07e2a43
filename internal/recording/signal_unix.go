//go:build unix

package recording

import (
	"os"

	"golang.org/x/sys/unix"
)

func interruptProcess(p *os.Process) error {
	return unix.Kill(p.Pid, unix.SIGINT)
}
