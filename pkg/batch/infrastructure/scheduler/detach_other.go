//go:build !unix

package scheduler

import (
	"os"
	"os/exec"
)

func detach(cmd *exec.Cmd) {}

func processAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
