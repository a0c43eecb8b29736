// Package simulation runs one attempt of the main simulation inside its allocation and classifies the result.
package simulation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "simulation"

// Runner executes the simulation command of a step.
type Runner struct {
	cfg        *config.Config
	runner     port.CommandRunner
	classifier port.OutcomeClassifier
	stdout     io.Writer
}

// NewRunner creates a Runner that tees the simulation output to os.Stdout.
func NewRunner(cfg *config.Config, runner port.CommandRunner, classifier port.OutcomeClassifier) *Runner {
	return &Runner{cfg: cfg, runner: runner, classifier: classifier, stdout: os.Stdout}
}

// WithStdout replaces the writer receiving the teed simulation output.
func (r *Runner) WithStdout(w io.Writer) *Runner {
	r.stdout = w
	return r
}

// Logs locates the log files of the attempt in dir.
func (r *Runner) Logs(dir string) port.RunLogs {
	m := r.cfg.Wrfcycle.Simulation.Markers
	logs := port.RunLogs{WorkDir: dir, Output: filepath.Join(dir, r.cfg.Wrfcycle.Simulation.Output)}
	if m.PrimaryLog != "" {
		logs.Primary = filepath.Join(dir, m.PrimaryLog)
	}
	logs.RankLogs = globAll(dir, m.RankLogGlobs)
	return logs
}

// Run executes one simulation attempt for step. attempt numbers the log archive.
//
// The returned RunResult carries the classified outcome; the error is reserved for failures of the
// orchestrator itself (missing directory, unreadable logs, output that could not be moved). A crashed
// simulation is not an error.
func (r *Runner) Run(ctx context.Context, step model.Step, attempt int) (model.RunResult, error) {
	sim := r.cfg.Wrfcycle.Simulation
	if len(sim.Command) == 0 {
		return model.RunResult{}, exception.ConfigErrorf(moduleName, "simulation.command is empty")
	}
	dir := r.cfg.StepDir(step.ID)
	if _, err := os.Stat(dir); err != nil {
		return model.RunResult{}, exception.ConfigErrorf(moduleName, "working directory of step %s is missing", step.ID, err)
	}
	if err := r.clearStale(dir); err != nil {
		return model.RunResult{}, err
	}

	logs := r.Logs(dir)
	out, err := os.Create(logs.Output)
	if err != nil {
		return model.RunResult{}, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", logs.Output, err)
	}
	w := io.Writer(out)
	if r.stdout != nil {
		w = io.MultiWriter(out, r.stdout)
	}

	logger.Infof("Running simulation of step %s (attempt %d): %s", step.ID, attempt, strings.Join(sim.Command, " "))
	started := time.Now()
	code, runErr := r.runner.Run(ctx, port.Command{
		Path:   sim.Command[0],
		Args:   sim.Command[1:],
		Dir:    dir,
		Env:    []string{"WRFCYCLE_STEP=" + step.ID},
		Stdout: w,
		Stderr: w,
	})
	out.Close()
	if runErr != nil {
		return model.RunResult{}, exception.NewCycleErrorf(moduleName, exception.KindIO, "simulation of step %s could not run", step.ID, runErr)
	}
	logger.Infof("Simulation of step %s exited with status %d after %s.", step.ID, code, time.Since(started).Round(time.Second))

	// Rank logs only exist once the model started.
	logs = r.Logs(dir)
	res, err := r.classifier.Classify(ctx, logs)
	if err != nil {
		return res, err
	}
	res.Step = step.ID

	archive := filepath.Join(dir, ArchiveName(attempt))
	if err := ArchiveLogs(archive, res.Logs); err != nil {
		logger.Warnf("Log archive of step %s not written: %v", step.ID, err)
	} else {
		res.Archive = archive
	}

	if res.Outcome == model.OutcomeSuccess {
		if err := r.moveOutputs(dir); err != nil {
			return res, err
		}
	}
	return res, nil
}

// clearStale removes logs and result files left over from a previous attempt.
func (r *Runner) clearStale(dir string) error {
	m := r.cfg.Wrfcycle.Simulation.Markers
	stale := globAll(dir, m.RankLogGlobs)
	for _, name := range []string{m.PrimaryLog, m.ResultFile} {
		if name != "" {
			stale = append(stale, filepath.Join(dir, name))
		}
	}
	var errs error
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove stale log %s", p, err))
		}
	}
	return errs
}

// moveOutputs moves the regular files matching the output globs into the canonical output area.
// Symbolic links are left alone: they point at artifacts of earlier steps that already live there.
func (r *Runner) moveOutputs(dir string) error {
	dest := r.cfg.OutputDir()
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create output area %s", dest, err)
	}
	var errs error
	moved := 0
	for _, src := range globAll(dir, r.cfg.Wrfcycle.Experiment.OutputGlobs) {
		info, err := os.Lstat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if err := moveFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			errs = exception.Append(errs, err)
			continue
		}
		moved++
	}
	logger.Infof("Moved %d output files from %s to %s.", moved, dir, dest)
	return errs
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across file systems; fall back to copy and remove.
	in, err := os.Open(src)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot open %s", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot copy %s", src, err)
	}
	if err := out.Close(); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot close %s", dst, err)
	}
	if err := os.Remove(src); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove %s", src, err)
	}
	return nil
}

// globAll returns the sorted, de-duplicated matches of patterns inside dir.
func globAll(dir string, patterns []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			logger.Warnf("Ignoring malformed glob '%s': %v", p, err)
			continue
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}
