package scheduler

import (
	"context"
	"errors"
	"os"
	"os/exec"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func configure(cmd *exec.Cmd, c port.Command) *exec.Cmd {
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd
}

// Run executes c and waits for it.
func (r *ExecRunner) Run(ctx context.Context, c port.Command) (int, error) {
	err := configure(exec.CommandContext(ctx, c.Path, c.Args...), c).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

// Start launches c in its own process group and releases it. The process outlives ctx.
func (r *ExecRunner) Start(_ context.Context, c port.Command) (int, error) {
	cmd := configure(exec.Command(c.Path, c.Args...), c)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, err
	}
	return pid, nil
}

var _ port.CommandRunner = (*ExecRunner)(nil)
