//go:build unix

package cli

import (
	"os"
	"syscall"
)

// resumeSignals mark a process continued after a stop (fg after Ctrl-Z).
var resumeSignals = []os.Signal{syscall.SIGCONT}
