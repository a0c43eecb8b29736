// Package port defines the core interfaces (ports) of the cycling orchestrator.
// These interfaces abstract the batch system, process execution, outcome classification and
// completion waiting so that engine components can be driven by fakes in tests.
package port

import (
	"context"
	"io"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// JobState is the batch-system view of a submitted job.
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
	// JobStateUnknown is reported when the batch system no longer knows the job.
	JobStateUnknown JobState = "UNKNOWN"
)

// IsTerminal reports whether the job will not change state any more.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateUnknown
}

// JobRequest describes one batch job submission.
type JobRequest struct {
	// Name is the job name shown by the batch system.
	Name string
	// Script is the batch script to submit.
	Script string
	// Args are passed to the script.
	Args []string
	// WorkDir is the directory the job starts in.
	WorkDir string
	// Env holds extra environment variables exported to the job.
	Env map[string]string
	// AfterAny lists job IDs that must terminate, in any state, before the job may start.
	AfterAny []string
	// Output is the file receiving the job's stdout and stderr. Empty leaves the batch system default.
	Output string
	// ExtraArgs are passed verbatim to the submission command.
	ExtraArgs []string
}

// JobSubmitter submits jobs to a batch system.
type JobSubmitter interface {
	// Submit enqueues the job and returns the batch system's job ID.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   req: The job to submit.
	//
	// Returns:
	//   string: The job ID assigned by the batch system.
	//   error: A SubmissionError if the batch system rejected the job.
	Submit(ctx context.Context, req JobRequest) (string, error)

	// Status returns the current state of a previously submitted job.
	Status(ctx context.Context, jobID string) (JobState, error)

	// Name returns the batch system name (e.g. "slurm").
	Name() string
}

// Command is one external process invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
	// Env entries (KEY=VALUE) are appended to the current environment.
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// CommandRunner executes external processes.
type CommandRunner interface {
	// Run executes cmd to completion. A non-zero exit status is returned as exitCode with a nil error;
	// the error is reserved for processes that could not be started or were interrupted.
	Run(ctx context.Context, cmd Command) (exitCode int, err error)

	// Start launches cmd detached from the caller and returns its process ID without waiting.
	Start(ctx context.Context, cmd Command) (pid int, err error)
}

// RunLogs locates the log files of one simulation attempt.
type RunLogs struct {
	// WorkDir is the step working directory.
	WorkDir string
	// Primary is the log carrying the success and main loop markers.
	Primary string
	// RankLogs are the per-rank logs scanned for instability and fault markers.
	RankLogs []string
	// Output is the captured stdout/stderr of the simulation command.
	Output string
}

// All returns every log path, primary first, without duplicates.
func (l RunLogs) All() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range append(append([]string{l.Primary}, l.RankLogs...), l.Output) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// OutcomeClassifier decides the outcome of a simulation attempt from its logs.
type OutcomeClassifier interface {
	Classify(ctx context.Context, logs RunLogs) (model.RunResult, error)
}

// CompletionChecker evaluates the completion state of the job owning workdir.
type CompletionChecker interface {
	IsComplete(workdir string) (model.CompletionState, error)
}

// Waiter blocks until the preprocessing job owning workdir reached a terminal completion state.
type Waiter interface {
	// Wait returns Success or Failure, or an error if ctx ends or the wait times out.
	Wait(ctx context.Context, workdir string) (model.CompletionState, error)
}

// AttemptListener observes simulation attempts.
type AttemptListener interface {
	// BeforeAttempt is called after the stability parameters were read and before the simulation starts.
	BeforeAttempt(ctx context.Context, record *model.AttemptRecord)
	// AfterAttempt is called once the attempt's outcome is known. record.Outcome is already set.
	AfterAttempt(ctx context.Context, record *model.AttemptRecord, result model.RunResult)
}

// SubmissionListener observes batch job submissions issued by the chain.
type SubmissionListener interface {
	OnSubmit(ctx context.Context, kind string, req JobRequest, jobID string, err error)
}
