// Package scheduler implements job submission to batch systems over a CommandRunner.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "scheduler"

// output runs a batch system command and returns its trimmed stdout.
// A non-zero exit status is a SubmissionError carrying stderr.
func output(ctx context.Context, runner port.CommandRunner, dir, name string, args ...string) (string, int, error) {
	var stdout, stderr bytes.Buffer
	code, err := runner.Run(ctx, port.Command{Path: name, Args: args, Dir: dir, Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		return "", code, exception.NewCycleErrorf(moduleName, exception.KindSubmission, "%s could not be run", name, err)
	}
	if code != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return stdout.String(), code, exception.NewCycleErrorf(moduleName, exception.KindSubmission,
			"%s %s failed with exit status %d: %s", name, strings.Join(args, " "), code, msg)
	}
	logger.Debugf("%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(stdout.String()))
	return strings.TrimSpace(stdout.String()), 0, nil
}

// envPairs renders env as sorted KEY=VALUE entries.
func envPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

func validate(req port.JobRequest) error {
	if req.Script == "" {
		return exception.NewCycleErrorf(moduleName, exception.KindConfig, "job '%s' has no script configured", req.Name)
	}
	return nil
}
