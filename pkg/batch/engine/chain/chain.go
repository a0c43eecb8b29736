// Package chain hands the experiment over from one batch allocation to the next.
//
// After a successful simulation the chain verifies that the next step can warm-start, then either submits
// its simulation (preprocessing already succeeded) or a detached watcher allocation that waits for
// preprocessing and performs the submission itself. The simulation of a step is never submitted while its
// preprocessing reports anything but Success.
package chain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "chain"

// Submission kinds reported to SubmissionListeners.
const (
	KindSimulation = "simulation"
	KindWatcher    = "watcher"
)

// ArtifactLister finds restart artifacts in the canonical output area.
type ArtifactLister interface {
	RestartArtifacts(timestamp string) ([]model.RestartArtifact, error)
}

// Action is what Chain did for the next step.
type Action string

const (
	// ActionEnd means the current step was the last one.
	ActionEnd Action = "END"
	// ActionSubmitted means the simulation of the next step was submitted.
	ActionSubmitted Action = "SUBMITTED"
	// ActionWatcher means a watcher was submitted because preprocessing is still pending.
	ActionWatcher Action = "WATCHER"
)

// Result describes the hand-over.
type Result struct {
	Next      model.Step
	Action    Action
	JobID     string
	Artifacts int
}

// Chainer is the ResubmissionChainer.
type Chainer struct {
	cfg       *config.Config
	seq       *stepseq.Sequencer
	artifacts ArtifactLister
	submitter port.JobSubmitter
	signal    port.CompletionChecker
	waiter    port.Waiter
	listeners []port.SubmissionListener
}

// NewChainer creates a Chainer.
func NewChainer(cfg *config.Config, seq *stepseq.Sequencer, artifacts ArtifactLister, submitter port.JobSubmitter,
	checker port.CompletionChecker, waiter port.Waiter, listeners ...port.SubmissionListener) *Chainer {
	return &Chainer{
		cfg:       cfg,
		seq:       seq,
		artifacts: artifacts,
		submitter: submitter,
		signal:    checker,
		waiter:    waiter,
		listeners: listeners,
	}
}

// SimulationJobName returns the batch job name of the simulation of stepID.
func SimulationJobName(stepID string) string { return "wrf-" + stepID }

// WatcherJobName returns the batch job name of the watcher waiting for stepID.
func WatcherJobName(stepID string) string { return "watch-" + stepID }

// Chain hands over after the successful simulation of current.
func (c *Chainer) Chain(ctx context.Context, current model.Step) (Result, error) {
	next, err := c.seq.Successor(current.ID)
	if err != nil {
		return Result{}, err
	}
	if next.IsZero() {
		logger.Infof("Step %s was the last step of the experiment, chain complete.", current.ID)
		return Result{Action: ActionEnd}, nil
	}
	res := Result{Next: next}

	found, err := c.artifacts.RestartArtifacts(next.StartTimestamp())
	if err != nil {
		return res, err
	}
	res.Artifacts = len(found)
	if res.Artifacts == 0 {
		return res, exception.ConfigErrorf(moduleName, "no %s artifacts for %s in %s, step %s cannot warm-start",
			c.cfg.Wrfcycle.Experiment.RestartPrefix, next.StartTimestamp(), c.cfg.OutputDir(), next.ID)
	}

	state, err := c.signal.IsComplete(c.cfg.StepDir(next.ID))
	if err != nil {
		return res, err
	}
	switch state {
	case model.CompletionSuccess:
		res.Action = ActionSubmitted
		res.JobID, err = c.SubmitSimulation(ctx, next)
	case model.CompletionPending:
		res.Action = ActionWatcher
		res.JobID, err = c.submitWatcher(ctx, next)
	default:
		err = c.preprocessingFailed(next)
	}
	return res, err
}

// ResubmitCurrent submits the simulation of step again. It is the single-step path used by crash recovery.
func (c *Chainer) ResubmitCurrent(ctx context.Context, step model.Step) (string, error) {
	return c.SubmitSimulation(ctx, step)
}

// Watch is the body of the watcher allocation: it waits for the preprocessing of step to terminate and
// submits the simulation of step on Success.
func (c *Chainer) Watch(ctx context.Context, step model.Step) (string, error) {
	logger.Infof("Watching preprocessing of step %s.", step.ID)
	state, err := c.waiter.Wait(ctx, c.cfg.StepDir(step.ID))
	if err != nil {
		return "", err
	}
	if state != model.CompletionSuccess {
		return "", c.preprocessingFailed(step)
	}
	return c.SubmitSimulation(ctx, step)
}

// SubmitSimulation submits the simulation job of step.
func (c *Chainer) SubmitSimulation(ctx context.Context, step model.Step) (string, error) {
	return c.submit(ctx, KindSimulation, c.request(step, SimulationJobName(step.ID), c.cfg.Wrfcycle.Scheduler.Scripts.Simulation, "run", "simulation.job.out"))
}

func (c *Chainer) submitWatcher(ctx context.Context, step model.Step) (string, error) {
	req := c.request(step, WatcherJobName(step.ID), c.cfg.Wrfcycle.Scheduler.Scripts.Watcher, "watch", "watcher.job.out")
	if strings.EqualFold(c.cfg.Wrfcycle.Scheduler.DependencyMode, config.DependencyModeNative) {
		jobID, err := signal.ReadJobID(c.cfg.StepDir(step.ID), c.cfg.Wrfcycle.Preprocess.JobIDFile)
		if err != nil {
			return "", err
		}
		if jobID != "" {
			req.AfterAny = []string{jobID}
		}
	}
	return c.submit(ctx, KindWatcher, req)
}

func (c *Chainer) request(step model.Step, name, script, verb, output string) port.JobRequest {
	dir := c.cfg.StepDir(step.ID)
	return port.JobRequest{
		Name:    name,
		Script:  c.cfg.ExperimentPath(script),
		Args:    []string{verb, step.ID},
		WorkDir: dir,
		Env: map[string]string{
			"WRFCYCLE_STEP":   step.ID,
			"WRFCYCLE_INIDIR": c.cfg.Wrfcycle.Experiment.IniDir,
		},
		Output:    filepath.Join(dir, output),
		ExtraArgs: c.cfg.Wrfcycle.Scheduler.SubmitArgs,
	}
}

func (c *Chainer) submit(ctx context.Context, kind string, req port.JobRequest) (string, error) {
	jobID, err := c.submitter.Submit(ctx, req)
	for _, l := range c.listeners {
		l.OnSubmit(ctx, kind, req, jobID, err)
	}
	if err != nil {
		return "", err
	}
	logger.Infof("Submitted %s job %s for step %s.", kind, jobID, req.Env["WRFCYCLE_STEP"])
	return jobID, nil
}

func (c *Chainer) preprocessingFailed(step model.Step) error {
	dir := c.cfg.StepDir(step.ID)
	pp := c.cfg.Wrfcycle.Preprocess
	logger.SurfaceTail(os.Stdout, c.cfg.Wrfcycle.System.Logging.TailLines,
		filepath.Join(dir, pp.LogFile), filepath.Join(dir, "preprocess.out"))
	return exception.NewCycleErrorf(moduleName, exception.KindPreprocessing,
		"preprocessing of step %s failed, its simulation is not submitted", step.ID)
}
