//go:build !unix

package process

import "os"

func signalExitCode(state *os.ProcessState) (int, bool) {
	return 0, false
}
