//go:build !unix

package cli

import "os"

var resumeSignals []os.Signal
