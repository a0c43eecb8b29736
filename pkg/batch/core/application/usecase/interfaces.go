package usecase

import (
	"context"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/chain"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
)

// CycleLauncher runs the work of one batch allocation of the chain.
type CycleLauncher interface {
	// Start generates the step table, prepares and synchronously preprocesses the first step and submits
	// its simulation. It returns the simulation job ID.
	Start(ctx context.Context, opts StartOptions) (string, error)

	// RunAllocation is the body of the simulation allocation of stepID: stage the step, launch the
	// preprocessing of its successor, run the simulation, then recover or hand over to the next step and
	// dispatch post-processing.
	RunAllocation(ctx context.Context, stepID string, opts RunOptions) (AllocationResult, error)

	// Watch is the body of the detached watcher allocation of stepID.
	Watch(ctx context.Context, stepID string) (string, error)

	// Preprocess is the in-job wrapper run by the preprocessing job of stepID.
	Preprocess(ctx context.Context, stepID string) error
}

// CycleOperator performs operator interventions on an experiment.
type CycleOperator interface {
	// Generate writes the step table, or verifies that the existing one is identical.
	Generate(ctx context.Context) (model.StepTable, error)

	// Reset clears the restart counter of stepID. With opts.Preprocess the preprocessing state of the
	// step is forgotten as well, so that the next allocation resubmits it.
	Reset(ctx context.Context, stepID string, opts ResetOptions) error

	// Report exports the attempt ledger and returns the object it was written to.
	Report(ctx context.Context) (string, error)

	// Migrate applies (or with down, rolls back) the ledger schema.
	Migrate(ctx context.Context, down bool) error
}

// CycleExplorer queries the state of an experiment.
type CycleExplorer interface {
	// Status returns one entry per step of the step table, in table order.
	Status(ctx context.Context) ([]StepStatus, error)

	// Attempts returns the ledger rows of stepID, oldest first.
	Attempts(ctx context.Context, stepID string) ([]*model.AttemptRecord, error)
}

// StartOptions controls Start.
type StartOptions struct {
	// SkipPreprocess submits the simulation without waiting for preprocessing.
	SkipPreprocess bool
}

// RunOptions controls RunAllocation.
type RunOptions struct {
	// Mode overrides the automatic mode selection.
	Mode model.Mode
	// SkipPreprocess leaves the preprocessing of the next step alone.
	SkipPreprocess bool
}

// ResetOptions controls Reset.
type ResetOptions struct {
	Preprocess bool
}

// AllocationResult describes what one simulation allocation did.
type AllocationResult struct {
	Step   model.Step
	Mode   model.Mode
	Record *model.AttemptRecord
	Result model.RunResult
	// Recovery is set when the attempt failed and was resubmitted.
	Recovery *recovery.Decision
	// Chain is set when the attempt succeeded.
	Chain      *chain.Result
	Dispatches []postprocess.Dispatch
}

// StepStatus is the state of one step as seen from the shared file system.
type StepStatus struct {
	Step        model.Step
	Preprocess  model.CompletionState
	Restarts    model.RestartAttempt
	Attempts    int
	LastOutcome model.Outcome
	// Complete is true once the step's end-of-run restart artifacts exist or its last attempt succeeded.
	Complete bool
}
