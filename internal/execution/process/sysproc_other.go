//go:build !linux

package process

import "os/exec"

func configureCommand(cmd *exec.Cmd) {}
