package usecase

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/chain"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/preprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/simulation"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "cycle"

// CycleLauncherParams holds the dependencies of SimpleCycleLauncher injected via Fx.
type CycleLauncherParams struct {
	fx.In
	Config     *config.Config
	Sequencer  *stepseq.Sequencer
	Driver     *driver.Driver
	Launcher   *preprocess.Launcher
	Executor   *preprocess.Executor
	Runner     *simulation.Runner
	Policy     *recovery.Policy
	Chainer    *chain.Chainer
	Dispatcher *postprocess.Dispatcher
	Counters   repository.RestartCounterStore
	Recorder   metrics.MetricRecorder `optional:"true"`
	Listeners  []port.AttemptListener `group:"attempt_listeners"`
}

// SimpleCycleLauncher is the default CycleLauncher. It runs every component in the calling goroutine;
// all parallelism of the chain comes from the batch system running separate allocations.
type SimpleCycleLauncher struct {
	p   CycleLauncherParams
	now func() time.Time
}

// Verify that SimpleCycleLauncher implements the CycleLauncher interface.
var _ CycleLauncher = (*SimpleCycleLauncher)(nil)

// NewSimpleCycleLauncher creates a new instance of SimpleCycleLauncher.
func NewSimpleCycleLauncher(p CycleLauncherParams) *SimpleCycleLauncher {
	if p.Recorder == nil {
		p.Recorder = metrics.NewNoOpMetricRecorder()
	}
	return &SimpleCycleLauncher{p: p, now: time.Now}
}

// Start implements CycleLauncher.
func (l *SimpleCycleLauncher) Start(ctx context.Context, opts StartOptions) (string, error) {
	table, err := l.p.Sequencer.Init()
	if err != nil {
		return "", err
	}
	first, err := l.p.Driver.Next("")
	if err != nil {
		return "", err
	}
	if err := l.p.Driver.PrepareStep(first, true); err != nil {
		return "", err
	}
	if !opts.SkipPreprocess {
		started := l.now()
		if _, err := l.p.Launcher.Launch(ctx, first, preprocess.LaunchOptions{Sync: true}); err != nil {
			return "", err
		}
		l.p.Recorder.RecordDuration(ctx, "preprocess_wait", l.now().Sub(started))
	}
	jobID, err := l.p.Chainer.SubmitSimulation(ctx, first)
	if err != nil {
		return "", err
	}
	logger.Infof("Experiment %s started: %d steps, first simulation %s submitted as job %s.",
		l.p.Config.ExperimentName(), table.Len(), first.ID, jobID)
	return jobID, nil
}

// RunAllocation implements CycleLauncher.
//
// Failures of the simulation itself are not errors of the allocation when crash recovery resubmits the
// step. Everything else that goes wrong is returned, aggregated, so that the exit code carries the count.
func (l *SimpleCycleLauncher) RunAllocation(ctx context.Context, stepID string, opts RunOptions) (AllocationResult, error) {
	var out AllocationResult
	step, err := l.p.Sequencer.Step(stepID)
	if err != nil {
		return out, err
	}
	out.Step = step

	if err := l.stage(ctx, step, opts.Mode, &out); err != nil {
		return out, err
	}

	next, err := l.p.Sequencer.Successor(step.ID)
	if err != nil {
		return out, err
	}
	if !next.IsZero() {
		if err := l.launchNext(ctx, next, opts.SkipPreprocess); err != nil {
			return out, err
		}
	}

	res, err := l.attempt(ctx, step, &out)
	if err != nil {
		return out, err
	}
	if res.Outcome != model.OutcomeSuccess {
		d, err := l.p.Policy.Recover(ctx, step, res)
		if err != nil {
			return out, err
		}
		l.p.Recorder.RecordRestart(ctx, step.ID, string(d.Branch))
		out.Recovery = &d
		return out, nil
	}

	var errs error
	cr, err := l.p.Chainer.Chain(ctx, step)
	if err != nil {
		logger.Errorf("Hand-over after step %s failed: %v", step.ID, err)
		errs = exception.Append(errs, err)
	} else {
		out.Chain = &cr
	}
	// The boundary is only known when the successor was resolved.
	if err == nil || !cr.Next.IsZero() {
		dispatches, derr := l.p.Dispatcher.Dispatch(ctx, step, cr.Next)
		out.Dispatches = dispatches
		errs = exception.Append(errs, derr)
	}
	return out, errs
}

func (l *SimpleCycleLauncher) stage(ctx context.Context, step model.Step, explicit model.Mode, out *AllocationResult) error {
	first, err := l.p.Sequencer.IsFirst(step.ID)
	if err != nil {
		return err
	}
	if err := l.p.Driver.PrepareStep(step, first); err != nil {
		return err
	}
	mode, err := l.p.Driver.SelectMode(step, explicit)
	if err != nil {
		return err
	}
	out.Mode = mode
	started := l.now()
	if err := l.p.Driver.Stage(ctx, step, mode); err != nil {
		return err
	}
	l.p.Recorder.RecordDuration(ctx, "stage", l.now().Sub(started))
	if mode != model.ModeClean {
		return nil
	}

	// The purge took the preprocessed inputs of step with it.
	if err := l.p.Launcher.Reset(step); err != nil {
		return err
	}
	started = l.now()
	if _, err := l.p.Launcher.Launch(ctx, step, preprocess.LaunchOptions{Sync: true}); err != nil {
		return err
	}
	l.p.Recorder.RecordDuration(ctx, "preprocess_wait", l.now().Sub(started))
	return nil
}

// launchNext prepares the successor and submits its preprocessing so that it runs while this
// allocation simulates.
func (l *SimpleCycleLauncher) launchNext(ctx context.Context, next model.Step, skip bool) error {
	if err := l.p.Driver.PrepareStep(next, false); err != nil {
		return err
	}
	_, err := l.p.Launcher.Launch(ctx, next, preprocess.LaunchOptions{Skip: skip})
	return err
}

// attempt runs one simulation of step between the attempt listeners.
func (l *SimpleCycleLauncher) attempt(ctx context.Context, step model.Step, out *AllocationResult) (model.RunResult, error) {
	counter, err := l.p.Counters.Load(ctx, step.ID)
	if err != nil {
		return model.RunResult{}, err
	}
	stability, err := l.readStability(step)
	if err != nil {
		return model.RunResult{}, err
	}
	record := model.NewAttemptRecord(l.p.Config.ExperimentName(), step.ID, counter, stability, l.now().UTC())
	out.Record = record
	for _, lis := range l.p.Listeners {
		lis.BeforeAttempt(ctx, record)
	}

	res, runErr := l.p.Runner.Run(ctx, step, counter.Total())
	record.FinishedAt = l.now().UTC()
	if runErr != nil {
		record.Outcome = model.OutcomeUnknown
		record.Message = exception.ExtractErrorMessage(runErr)
	} else {
		record.Outcome = res.Outcome
		record.Message = res.Detail
	}
	out.Result = res
	for _, lis := range l.p.Listeners {
		lis.AfterAttempt(ctx, record, res)
	}
	return res, runErr
}

func (l *SimpleCycleLauncher) readStability(step model.Step) (model.StabilityConfig, error) {
	path := filepath.Join(l.p.Config.StepDir(step.ID), l.p.Config.Wrfcycle.Experiment.SimulationNamelist)
	doc, err := namelist.Load(path)
	if err != nil {
		return model.StabilityConfig{}, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read %s", path, err)
	}
	s, err := recovery.ReadStability(doc, l.p.Config.Wrfcycle.Recovery)
	if err != nil {
		return model.StabilityConfig{}, exception.ConfigErrorf(moduleName, "stability parameters missing from %s", path, err)
	}
	return s, nil
}

// Watch implements CycleLauncher.
func (l *SimpleCycleLauncher) Watch(ctx context.Context, stepID string) (string, error) {
	step, err := l.p.Sequencer.Step(stepID)
	if err != nil {
		return "", err
	}
	started := l.now()
	jobID, err := l.p.Chainer.Watch(ctx, step)
	l.p.Recorder.RecordDuration(ctx, "watch", l.now().Sub(started))
	return jobID, err
}

// Preprocess implements CycleLauncher.
func (l *SimpleCycleLauncher) Preprocess(ctx context.Context, stepID string) error {
	step, err := l.p.Sequencer.Step(stepID)
	if err != nil {
		return err
	}
	return l.p.Executor.Execute(ctx, step)
}
