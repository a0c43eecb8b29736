package scheduler

import (
	"context"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// SlurmSubmitter submits jobs with sbatch and queries them with squeue and sacct.
type SlurmSubmitter struct {
	runner    port.CommandRunner
	extraArgs []string
}

// NewSlurmSubmitter creates a SlurmSubmitter. extraArgs are added to every sbatch call.
func NewSlurmSubmitter(runner port.CommandRunner, extraArgs []string) *SlurmSubmitter {
	return &SlurmSubmitter{runner: runner, extraArgs: extraArgs}
}

// Name returns "slurm".
func (s *SlurmSubmitter) Name() string { return "slurm" }

// SubmitArgs builds the sbatch argument list for req.
func (s *SlurmSubmitter) SubmitArgs(req port.JobRequest) []string {
	args := []string{"--parsable"}
	if req.Name != "" {
		args = append(args, "--job-name="+req.Name)
	}
	if req.WorkDir != "" {
		args = append(args, "--chdir="+req.WorkDir)
	}
	if req.Output != "" {
		args = append(args, "--output="+req.Output)
	}
	if len(req.Env) > 0 {
		args = append(args, "--export="+strings.Join(append([]string{"ALL"}, envPairs(req.Env)...), ","))
	}
	if len(req.AfterAny) > 0 {
		args = append(args, "--dependency=afterany:"+strings.Join(req.AfterAny, ":"))
	}
	args = append(args, s.extraArgs...)
	args = append(args, req.ExtraArgs...)
	args = append(args, req.Script)
	return append(args, req.Args...)
}

// Submit runs sbatch and returns the job ID.
func (s *SlurmSubmitter) Submit(ctx context.Context, req port.JobRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}
	out, _, err := output(ctx, s.runner, req.WorkDir, "sbatch", s.SubmitArgs(req)...)
	if err != nil {
		return "", err
	}
	// --parsable prints "jobid" or "jobid;cluster".
	id := strings.TrimSpace(strings.SplitN(out, ";", 2)[0])
	if id == "" {
		return "", exception.NewCycleErrorf(moduleName, exception.KindSubmission, "sbatch returned no job id for '%s'", req.Name)
	}
	logger.Infof("Submitted slurm job %s (%s).", id, req.Name)
	return id, nil
}

// Status asks squeue first and falls back to sacct once the job left the queue.
func (s *SlurmSubmitter) Status(ctx context.Context, jobID string) (port.JobState, error) {
	out, _, err := output(ctx, s.runner, "", "squeue", "-h", "-j", jobID, "-o", "%T")
	if err == nil && out != "" {
		return slurmState(firstLine(out)), nil
	}
	out, _, err = output(ctx, s.runner, "", "sacct", "-n", "-X", "-P", "-j", jobID, "-o", "State")
	if err != nil {
		return port.JobStateUnknown, err
	}
	if out == "" {
		return port.JobStateUnknown, nil
	}
	return slurmState(firstLine(out)), nil
}

func firstLine(s string) string {
	return strings.TrimSpace(strings.SplitN(s, "\n", 2)[0])
}

// slurmState maps a slurm job state (e.g. "CANCELLED by 123") onto JobState.
func slurmState(raw string) port.JobState {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return port.JobStateUnknown
	}
	switch strings.TrimSuffix(strings.ToUpper(fields[0]), "+") {
	case "PENDING", "CONFIGURING", "REQUEUED", "RESV_DEL_HOLD", "SUSPENDED":
		return port.JobStatePending
	case "RUNNING", "COMPLETING", "STAGE_OUT", "SIGNALING", "RESIZING":
		return port.JobStateRunning
	case "COMPLETED":
		return port.JobStateCompleted
	case "FAILED", "CANCELLED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "PREEMPTED", "BOOT_FAIL", "DEADLINE":
		return port.JobStateFailed
	default:
		return port.JobStateUnknown
	}
}

var _ port.JobSubmitter = (*SlurmSubmitter)(nil)
