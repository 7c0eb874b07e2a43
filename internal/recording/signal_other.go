//go:build !unix

package recording

import "os"

func interruptProcess(p *os.Process) error { return p.Signal(os.Interrupt) }
