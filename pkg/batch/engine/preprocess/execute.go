package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// Executor is the wrapper run inside the preprocessing job.
type Executor struct {
	cfg    *config.Config
	runner port.CommandRunner
	signal *signal.CompletionSignal
}

// NewExecutor creates an Executor.
func NewExecutor(cfg *config.Config, runner port.CommandRunner, sig *signal.CompletionSignal) *Executor {
	return &Executor{cfg: cfg, runner: runner, signal: sig}
}

// Execute purges and recreates the scratch area, runs the configured preprocessing commands in the
// working directory of step with their output appended to the designated log, and writes the sentinel
// whatever the outcome. Commands stop at the first failure; the returned error carries every failure.
func (e *Executor) Execute(ctx context.Context, step model.Step) (err error) {
	pp := e.cfg.Wrfcycle.Preprocess
	dir := e.cfg.StepDir(step.ID)
	if _, statErr := os.Stat(dir); statErr != nil {
		return exception.ConfigErrorf(moduleName, "working directory of step %s is missing", step.ID, statErr)
	}
	if err := e.signal.Clear(dir); err != nil {
		return err
	}
	defer func() {
		if werr := e.signal.WriteSentinel(dir, exception.ExitCode(err)); werr != nil {
			err = exception.Append(err, werr)
		}
	}()

	scratch, err := e.resetScratch(step)
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, pp.LogFile)
	logFile, err := os.Create(logPath)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", logPath, err)
	}
	defer logFile.Close()

	env := []string{"WRFCYCLE_STEP=" + step.ID}
	if scratch != "" {
		env = append(env, "WRFCYCLE_SCRATCH="+scratch)
	}
	var errs error
	for i, argv := range pp.Commands {
		if len(argv) == 0 {
			continue
		}
		logger.Infof("Preprocessing step %s [%d/%d]: %s", step.ID, i+1, len(pp.Commands), strings.Join(argv, " "))
		fmt.Fprintf(logFile, "==> %s\n", strings.Join(argv, " "))
		code, runErr := e.runner.Run(ctx, port.Command{Path: argv[0], Args: argv[1:], Dir: dir, Env: env, Stdout: logFile, Stderr: logFile})
		if runErr != nil || code != 0 {
			errs = exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindPreprocessing,
				"%s failed with exit status %d", argv[0], code, runErr))
			break
		}
	}

	if errs == nil {
		found, cerr := signal.ContainsMarker(logPath, pp.SuccessMarker)
		if cerr != nil {
			errs = exception.Append(errs, cerr)
		} else if !found {
			errs = exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindPreprocessing,
				"commands finished but '%s' is missing from %s", pp.SuccessMarker, pp.LogFile))
		}
	}
	if errs != nil {
		logger.SurfaceTail(os.Stdout, e.cfg.Wrfcycle.System.Logging.TailLines, logPath)
	}
	return errs
}

func (e *Executor) resetScratch(step model.Step) (string, error) {
	root := e.cfg.Wrfcycle.Experiment.ScratchDir
	if root == "" {
		return "", nil
	}
	scratch := e.cfg.ExperimentPath(root)
	if err := os.RemoveAll(scratch); err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot purge scratch area %s", scratch, err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create scratch area %s", scratch, err)
	}
	logger.Debugf("Scratch area %s recreated for step %s.", scratch, step.ID)
	return scratch, nil
}
