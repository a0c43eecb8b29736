//go:build unix

package scheduler

import (
	"os/exec"
	"syscall"
)

func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// processAlive reports whether a process with the given pid exists.
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
