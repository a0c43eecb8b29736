// Package preprocess submits the preprocessing job of a step and implements the in-job wrapper it runs.
package preprocess

import (
	"context"
	"os"
	"path/filepath"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "preprocess"

// JobName returns the batch job name of the preprocessing job of stepID.
func JobName(stepID string) string { return "pre-" + stepID }

// LaunchOptions controls a Launch call.
type LaunchOptions struct {
	// Skip leaves preprocessing alone and only reports the current state.
	Skip bool
	// Sync waits for the job to reach Success or Failure.
	Sync bool
}

// Launcher is the PreprocessingLauncher.
type Launcher struct {
	cfg       *config.Config
	submitter port.JobSubmitter
	signal    *signal.CompletionSignal
	waiter    port.Waiter
	listeners []port.SubmissionListener
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg *config.Config, submitter port.JobSubmitter, sig *signal.CompletionSignal, waiter port.Waiter, listeners ...port.SubmissionListener) *Launcher {
	return &Launcher{cfg: cfg, submitter: submitter, signal: sig, waiter: waiter, listeners: listeners}
}

// Request builds the batch job request for the preprocessing of step.
func (l *Launcher) Request(step model.Step) port.JobRequest {
	dir := l.cfg.StepDir(step.ID)
	return port.JobRequest{
		Name:    JobName(step.ID),
		Script:  l.cfg.ExperimentPath(l.cfg.Wrfcycle.Scheduler.Scripts.Preprocess),
		Args:    []string{"preprocess", step.ID},
		WorkDir: dir,
		Env: map[string]string{
			"WRFCYCLE_STEP":   step.ID,
			"WRFCYCLE_INIDIR": l.cfg.Wrfcycle.Experiment.IniDir,
		},
		Output: filepath.Join(dir, "preprocess.out"),
	}
}

// Launch submits the preprocessing of step unless it already succeeded or a submitted job is still
// pending. With Sync it then waits for a terminal state; Failure is a fatal PreprocessingFailure.
func (l *Launcher) Launch(ctx context.Context, step model.Step, opts LaunchOptions) (model.CompletionState, error) {
	dir := l.cfg.StepDir(step.ID)
	state, err := l.signal.IsComplete(dir)
	if err != nil {
		return state, err
	}
	if opts.Skip {
		logger.Infof("Preprocessing of step %s skipped on request (%s).", step.ID, state)
		return state, nil
	}

	switch state {
	case model.CompletionSuccess:
		logger.Infof("Preprocessing of step %s already complete.", step.ID)
		return state, nil
	case model.CompletionFailure:
		return state, l.failure(step)
	}

	jobID, err := signal.ReadJobID(dir, l.cfg.Wrfcycle.Preprocess.JobIDFile)
	if err != nil {
		return state, err
	}
	if jobID != "" {
		logger.Infof("Preprocessing of step %s already submitted as job %s.", step.ID, jobID)
	} else if err := l.submit(ctx, step); err != nil {
		return state, err
	}

	if !opts.Sync {
		return state, nil
	}
	state, err = l.waiter.Wait(ctx, dir)
	if err != nil {
		return state, err
	}
	if state == model.CompletionFailure {
		return state, l.failure(step)
	}
	return state, nil
}

func (l *Launcher) submit(ctx context.Context, step model.Step) error {
	dir := l.cfg.StepDir(step.ID)
	if _, err := os.Stat(dir); err != nil {
		return exception.ConfigErrorf(moduleName, "working directory of step %s is missing", step.ID, err)
	}
	req := l.Request(step)
	jobID, err := l.submitter.Submit(ctx, req)
	for _, lis := range l.listeners {
		lis.OnSubmit(ctx, "preprocess", req, jobID, err)
	}
	if err != nil {
		return err
	}
	return signal.RecordJobID(dir, l.cfg.Wrfcycle.Preprocess.JobIDFile, jobID)
}

// Reset forgets the previous preprocessing run of step so that the next Launch resubmits it.
func (l *Launcher) Reset(step model.Step) error {
	dir := l.cfg.StepDir(step.ID)
	if err := l.signal.Clear(dir); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(dir, l.cfg.Wrfcycle.Preprocess.JobIDFile))
	if err != nil && !os.IsNotExist(err) {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove job id of step %s", step.ID, err)
	}
	return nil
}

func (l *Launcher) failure(step model.Step) error {
	dir := l.cfg.StepDir(step.ID)
	logger.SurfaceTail(os.Stdout, l.cfg.Wrfcycle.System.Logging.TailLines,
		filepath.Join(dir, l.cfg.Wrfcycle.Preprocess.LogFile), filepath.Join(dir, "preprocess.out"))
	return exception.NewCycleErrorf(moduleName, exception.KindPreprocessing,
		"preprocessing of step %s ended without '%s' in %s", step.ID, l.cfg.Wrfcycle.Preprocess.SuccessMarker, l.cfg.Wrfcycle.Preprocess.LogFile)
}
