package usecase

import (
	"context"

	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
)

// CycleExplorerParams holds the dependencies of SimpleCycleExplorer injected via Fx.
type CycleExplorerParams struct {
	fx.In
	Config    *config.Config
	Sequencer *stepseq.Sequencer
	Driver    *driver.Driver
	Checker   port.CompletionChecker
	Counters  repository.RestartCounterStore
	Attempts  repository.AttemptRepository
}

// SimpleCycleExplorer reads the experiment state from the step table, the step directories,
// the restart counters and the attempt ledger.
type SimpleCycleExplorer struct {
	p CycleExplorerParams
}

var _ CycleExplorer = (*SimpleCycleExplorer)(nil)

// NewSimpleCycleExplorer creates a new instance of SimpleCycleExplorer.
func NewSimpleCycleExplorer(p CycleExplorerParams) *SimpleCycleExplorer {
	return &SimpleCycleExplorer{p: p}
}

// Status implements CycleExplorer.
func (e *SimpleCycleExplorer) Status(ctx context.Context) ([]StepStatus, error) {
	table, err := e.p.Sequencer.Table()
	if err != nil {
		return nil, err
	}
	out := make([]StepStatus, 0, table.Len())
	for _, step := range table.Steps {
		st, err := e.status(ctx, step)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (e *SimpleCycleExplorer) status(ctx context.Context, step model.Step) (StepStatus, error) {
	st := StepStatus{Step: step}
	var err error
	if st.Preprocess, err = e.p.Checker.IsComplete(e.p.Config.StepDir(step.ID)); err != nil {
		return st, err
	}
	if st.Restarts, err = e.p.Counters.Load(ctx, step.ID); err != nil {
		return st, err
	}
	attempts, err := e.Attempts(ctx, step.ID)
	if err != nil {
		return st, err
	}
	st.Attempts = len(attempts)
	if n := len(attempts); n > 0 {
		st.LastOutcome = attempts[n-1].Outcome
	}
	artifacts, err := e.p.Driver.RestartArtifacts(step.EndTimestamp())
	if err != nil {
		return st, err
	}
	st.Complete = len(artifacts) > 0 || st.LastOutcome == model.OutcomeSuccess
	return st, nil
}

// Attempts implements CycleExplorer.
func (e *SimpleCycleExplorer) Attempts(ctx context.Context, stepID string) ([]*model.AttemptRecord, error) {
	return e.p.Attempts.FindAttemptsByStep(ctx, e.p.Config.ExperimentName(), stepID)
}
