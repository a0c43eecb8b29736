package scheduler

import (
	"bufio"
	"context"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// PBSSubmitter submits jobs with qsub and queries them with qstat.
type PBSSubmitter struct {
	runner    port.CommandRunner
	extraArgs []string
}

// NewPBSSubmitter creates a PBSSubmitter. extraArgs are added to every qsub call.
func NewPBSSubmitter(runner port.CommandRunner, extraArgs []string) *PBSSubmitter {
	return &PBSSubmitter{runner: runner, extraArgs: extraArgs}
}

// Name returns "pbs".
func (p *PBSSubmitter) Name() string { return "pbs" }

// SubmitArgs builds the qsub argument list for req. Script arguments are passed with -F.
func (p *PBSSubmitter) SubmitArgs(req port.JobRequest) []string {
	var args []string
	if req.Name != "" {
		args = append(args, "-N", req.Name)
	}
	if req.Output != "" {
		args = append(args, "-j", "oe", "-o", req.Output)
	}
	env := envPairs(req.Env)
	if req.WorkDir != "" {
		env = append(env, "PBS_O_WORKDIR="+req.WorkDir)
	}
	if len(env) > 0 {
		args = append(args, "-v", strings.Join(env, ","))
	}
	if len(req.AfterAny) > 0 {
		args = append(args, "-W", "depend=afterany:"+strings.Join(req.AfterAny, ":"))
	}
	args = append(args, p.extraArgs...)
	args = append(args, req.ExtraArgs...)
	if len(req.Args) > 0 {
		args = append(args, "-F", strings.Join(req.Args, " "))
	}
	return append(args, req.Script)
}

// Submit runs qsub from the job's working directory and returns the job ID.
func (p *PBSSubmitter) Submit(ctx context.Context, req port.JobRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	id, _, err := output(ctx, p.runner, req.WorkDir, "qsub", p.SubmitArgs(req)...)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", exception.NewCycleErrorf(moduleName, exception.KindSubmission, "qsub returned no job id for '%s'", req.Name)
	}
	logger.Infof("Submitted pbs job %s (%s).", id, req.Name)
	return id, nil
}

// Status parses `qstat -f -x`. A job unknown to the server is reported as UNKNOWN.
func (p *PBSSubmitter) Status(ctx context.Context, jobID string) (port.JobState, error) {
	out, code, err := output(ctx, p.runner, "", "qstat", "-f", "-x", jobID)
	if err != nil {
		if code > 0 {
			return port.JobStateUnknown, nil
		}
		return port.JobStateUnknown, err
	}
	attrs := parseQstat(out)
	switch attrs["job_state"] {
	case "Q", "H", "W", "T", "S":
		return port.JobStatePending, nil
	case "R", "E", "B":
		return port.JobStateRunning, nil
	case "F", "C", "X":
		if status, ok := attrs["Exit_status"]; ok && status != "0" {
			return port.JobStateFailed, nil
		}
		return port.JobStateCompleted, nil
	default:
		return port.JobStateUnknown, nil
	}
}

// parseQstat extracts "key = value" attributes of a qstat -f listing.
func parseQstat(out string) map[string]string {
	attrs := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), " = ")
		if !ok {
			continue
		}
		attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return attrs
}

var _ port.JobSubmitter = (*PBSSubmitter)(nil)
