//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureCommand ties the child's lifetime to the harness.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}
}
