// Package recovery decides what happens after a failed simulation attempt: adapt the stability
// parameters and resubmit the same step, resubmit it unchanged after a transient fault, or abort.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "recovery"

// Resubmitter submits the simulation of the same step again.
type Resubmitter interface {
	ResubmitCurrent(ctx context.Context, step model.Step) (string, error)
}

// Branch names the recovery path taken.
type Branch string

const (
	BranchInstability Branch = "instability"
	BranchTransient   Branch = "transient"
)

// Decision describes an applied recovery.
type Decision struct {
	Step   string
	Branch Branch
	// Attempt is the counter after the increment.
	Attempt model.RestartAttempt
	Before  model.StabilityConfig
	After   model.StabilityConfig
	Delay   time.Duration
	JobID   string
}

// Policy is the crash recovery policy.
type Policy struct {
	cfg         *config.Config
	store       repository.RestartCounterStore
	resubmitter Resubmitter
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewPolicy creates a Policy.
func NewPolicy(cfg *config.Config, store repository.RestartCounterStore, resubmitter Resubmitter) *Policy {
	return &Policy{cfg: cfg, store: store, resubmitter: resubmitter, sleep: sleepContext, now: time.Now}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recoverable reports whether res qualifies for automatic recovery: a numerical instability after the
// main loop was entered, or a transient fault signature in the job output.
func Recoverable(res model.RunResult) bool {
	if res.Outcome == model.OutcomeSuccess {
		return false
	}
	return res.TransientFault || (res.Outcome == model.OutcomeNumericalInstability && res.MainLoopEntered)
}

// Fatal converts a non-recoverable result into its taxonomy error.
func Fatal(res model.RunResult) error {
	switch {
	case res.Outcome == model.OutcomeSegFault:
		return exception.NewCycleErrorf(moduleName, exception.KindSegFault, "step %s: %s", res.Step, res.Detail)
	case res.Outcome == model.OutcomeNumericalInstability && !res.MainLoopEntered:
		return exception.NewCycleErrorf(moduleName, exception.KindUnknown,
			"step %s: instability reported before the main loop was entered (%s)", res.Step, res.Detail)
	default:
		return exception.NewCycleErrorf(moduleName, exception.KindUnknown, "step %s ended without a recognised marker", res.Step)
	}
}

// Recover applies the recovery branch matching res and resubmits step.
// Non-recoverable results and exhausted budgets are returned as fatal errors after the log tail of the
// attempt has been surfaced.
func (p *Policy) Recover(ctx context.Context, step model.Step, res model.RunResult) (Decision, error) {
	d, err := p.recover(ctx, step, res)
	if err != nil {
		logger.Errorf("Recovery of step %s aborted: %v", step.ID, err)
		logger.SurfaceTail(os.Stdout, p.cfg.Wrfcycle.System.Logging.TailLines, res.Logs...)
	}
	return d, err
}

func (p *Policy) recover(ctx context.Context, step model.Step, res model.RunResult) (Decision, error) {
	if res.Outcome == model.OutcomeSuccess {
		return Decision{}, exception.NewCycleErrorf(moduleName, exception.KindUnknown, "step %s succeeded, nothing to recover", step.ID)
	}
	if !Recoverable(res) {
		return Decision{}, Fatal(res)
	}
	attempt, err := p.store.Load(ctx, step.ID)
	if err != nil {
		return Decision{}, err
	}
	attempt.StepID = step.ID

	var d Decision
	if res.Outcome == model.OutcomeNumericalInstability && res.MainLoopEntered {
		d, err = p.instability(ctx, step, attempt)
	} else {
		d, err = p.transient(ctx, step, attempt)
	}
	if err != nil {
		return d, err
	}
	if err := p.sleep(ctx, d.Delay); err != nil {
		return d, exception.NewCycleErrorf(moduleName, exception.KindEnvironmentalTransient, "cool-down of step %s interrupted", step.ID, err)
	}
	jobID, err := p.resubmitter.ResubmitCurrent(ctx, step)
	if err != nil {
		return d, err
	}
	d.JobID = jobID
	logger.Infof("Step %s resubmitted after %s recovery as job %s (R=%d, transient=%d).",
		step.ID, d.Branch, jobID, d.Attempt.Instability, d.Attempt.Transient)
	return d, nil
}

func (p *Policy) instability(ctx context.Context, step model.Step, attempt model.RestartAttempt) (Decision, error) {
	rc := p.cfg.Wrfcycle.Recovery
	d := Decision{Step: step.ID, Branch: BranchInstability}
	if attempt.Instability > rc.MaxRestarts {
		return d, exception.NewCycleErrorf(moduleName, exception.KindRecoveryExhausted,
			"step %s: R=%d > M=%d", step.ID, attempt.Instability, rc.MaxRestarts, ErrBudgetExceeded)
	}

	path := filepath.Join(p.cfg.StepDir(step.ID), p.cfg.Wrfcycle.Experiment.SimulationNamelist)
	doc, err := namelist.Load(path)
	if err != nil {
		return d, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read %s", path, err)
	}
	cur, err := ReadStability(doc, rc)
	if err != nil {
		return d, exception.ConfigErrorf(moduleName, "stability parameters missing from %s", path, err)
	}
	initial, err := p.InitialTimeStep()
	if err != nil {
		return d, err
	}
	next, err := NewAdjuster(rc, initial).Next(attempt.Instability, cur)
	if err != nil {
		kind := exception.KindRecoveryExhausted
		if errors.Is(err, ErrUntrackedChange) {
			kind = exception.KindConfig
		}
		return d, exception.NewCycleErrorf(moduleName, kind, "step %s", step.ID, err)
	}

	audit := fmt.Sprintf("wrfcycle restart %d of step %s", attempt.Instability+1, step.ID)
	if err := WriteStability(doc, rc, cur, next, audit); err != nil {
		return d, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot update %s", path, err)
	}
	if err := doc.Save(path); err != nil {
		return d, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot save %s", path, err)
	}

	attempt.Instability++
	attempt.UpdatedAt = p.now().UTC()
	if err := p.store.Save(ctx, attempt); err != nil {
		return d, err
	}
	logger.Warnf("Numerical instability in step %s: %s -> %s", step.ID, cur, next)
	d.Attempt, d.Before, d.After = attempt, cur, next
	return d, nil
}

func (p *Policy) transient(ctx context.Context, step model.Step, attempt model.RestartAttempt) (Decision, error) {
	ceiling := p.cfg.Wrfcycle.Recovery.MaxRestarts
	d := Decision{Step: step.ID, Branch: BranchTransient}
	if attempt.Total() > ceiling {
		return d, exception.NewCycleErrorf(moduleName, exception.KindRecoveryExhausted,
			"step %s: instability %d + transient %d > %d", step.ID, attempt.Instability, attempt.Transient, ceiling, ErrBudgetExceeded)
	}
	attempt.Transient++
	attempt.UpdatedAt = p.now().UTC()
	if err := p.store.Save(ctx, attempt); err != nil {
		return d, err
	}
	d.Attempt = attempt
	d.Delay = p.cfg.Wrfcycle.Scheduler.TransientDelay()
	logger.Warnf("Transient fault in step %s, resubmitting unchanged after %s.", step.ID, d.Delay)
	return d, nil
}

// InitialTimeStep returns the configured initial time step, or the one of the experiment's namelist
// template when none is configured.
func (p *Policy) InitialTimeStep() (float64, error) {
	rc := p.cfg.Wrfcycle.Recovery
	if rc.InitialTimeStep > 0 {
		return rc.InitialTimeStep, nil
	}
	path := p.cfg.ExperimentPath(p.cfg.Wrfcycle.Experiment.SimulationNamelist)
	doc, err := namelist.Load(path)
	if err != nil {
		return 0, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read template %s", path, err)
	}
	ts, err := doc.Float(rc.TimeStepKey.Section, rc.TimeStepKey.Key)
	if err != nil {
		return 0, exception.ConfigErrorf(moduleName, "initial time step missing from %s", path, err)
	}
	return ts, nil
}

// Reset clears the restart counter of step.
func (p *Policy) Reset(ctx context.Context, stepID string) error {
	return p.store.Reset(ctx, stepID)
}
