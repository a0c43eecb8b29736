package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const localPrefix = "local-"

// LocalSubmitter runs jobs as detached processes on the current host.
// afterany dependencies are honoured by a shell prologue waiting for the listed processes.
type LocalSubmitter struct {
	runner port.CommandRunner
	shell  string
}

// NewLocalSubmitter creates a LocalSubmitter.
func NewLocalSubmitter(runner port.CommandRunner) *LocalSubmitter {
	return &LocalSubmitter{runner: runner, shell: "/bin/sh"}
}

// Name returns "local".
func (l *LocalSubmitter) Name() string { return "local" }

// Command builds the detached command for req.
func (l *LocalSubmitter) Command(req port.JobRequest) port.Command {
	var script strings.Builder
	for _, dep := range req.AfterAny {
		if pid, ok := localPID(dep); ok {
			fmt.Fprintf(&script, "while kill -0 %d 2>/dev/null; do sleep 5; done; ", pid)
		}
	}
	script.WriteString(`exec "$0" "$@"`)

	args := append([]string{"-c", script.String(), req.Script}, req.Args...)
	return port.Command{
		Path: l.shell,
		Args: args,
		Dir:  req.WorkDir,
		Env:  envPairs(req.Env),
	}
}

// Submit starts the job and returns "local-<pid>".
func (l *LocalSubmitter) Submit(ctx context.Context, req port.JobRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	cmd := l.Command(req)
	if req.Output != "" {
		out := req.Output
		if !filepath.IsAbs(out) && req.WorkDir != "" {
			out = filepath.Join(req.WorkDir, out)
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return "", exception.NewCycleErrorf(moduleName, exception.KindSubmission, "cannot open job output %s", out, err)
		}
		defer f.Close()
		cmd.Stdout, cmd.Stderr = f, f
	}
	pid, err := l.runner.Start(ctx, cmd)
	if err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindSubmission, "cannot start '%s'", req.Name, err)
	}
	id := localPrefix + strconv.Itoa(pid)
	logger.Infof("Started local job %s (%s).", id, req.Name)
	return id, nil
}

// Status reports RUNNING while the process exists. The exit status of a released process is
// not observable, so a finished job is UNKNOWN and callers rely on the completion signal.
func (l *LocalSubmitter) Status(ctx context.Context, jobID string) (port.JobState, error) {
	pid, ok := localPID(jobID)
	if !ok {
		return port.JobStateUnknown, exception.NewCycleErrorf(moduleName, exception.KindSubmission, "'%s' is not a local job id", jobID)
	}
	if processAlive(pid) {
		return port.JobStateRunning, nil
	}
	return port.JobStateUnknown, nil
}

func localPID(jobID string) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimPrefix(jobID, localPrefix))
	if err != nil || !strings.HasPrefix(jobID, localPrefix) || pid <= 0 {
		return 0, false
	}
	return pid, true
}

var _ port.JobSubmitter = (*LocalSubmitter)(nil)
