//go:build unix

package process

import (
	"os"
	"syscall"
)

// signalExitCode maps death-by-signal to the shell convention 128+signal.
func signalExitCode(state *os.ProcessState) (int, bool) {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return 128 + int(status.Signal()), true
}
