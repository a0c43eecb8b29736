// Package driver prepares step working directories and stages them according to the cycle mode.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "driver"

// StaticBackup saves the static inputs of an experiment.
type StaticBackup interface {
	Backup(ctx context.Context, step model.Step) error
}

// Driver is the CycleDriver.
type Driver struct {
	cfg    *config.Config
	seq    *stepseq.Sequencer
	runner port.CommandRunner
	backup StaticBackup
}

// NewDriver creates a Driver. backup may be nil.
func NewDriver(cfg *config.Config, seq *stepseq.Sequencer, runner port.CommandRunner, backup StaticBackup) *Driver {
	return &Driver{cfg: cfg, seq: seq, runner: runner, backup: backup}
}

// Next returns the step following prevID, the first step for an empty prevID, or the empty step at the end of the chain.
func (d *Driver) Next(prevID string) (model.Step, error) {
	if prevID == "" {
		t, err := d.seq.Table()
		if err != nil {
			return model.Step{}, err
		}
		return t.First(), nil
	}
	return d.seq.Successor(prevID)
}

// SelectMode returns explicit when set. Otherwise the first step starts FRESH, or NOGEO when terrain
// output already exists, and every later step starts as a RESTART.
func (d *Driver) SelectMode(step model.Step, explicit model.Mode) (model.Mode, error) {
	if explicit != "" {
		return explicit, nil
	}
	first, err := d.seq.IsFirst(step.ID)
	if err != nil {
		return "", err
	}
	switch {
	case !first:
		return model.ModeRestart, nil
	case d.HasTerrain():
		return model.ModeNoGeo, nil
	default:
		return model.ModeFresh, nil
	}
}

// Stage brings the working directory of step into the state required by mode before its simulation runs.
// CLEAN purges the other step directories and then stages with the automatically selected mode.
// Every step but the first warm starts from the restart artifacts at its start, whatever the mode.
func (d *Driver) Stage(ctx context.Context, step model.Step, mode model.Mode) error {
	dir := d.cfg.StepDir(step.ID)
	if !exists(dir) {
		return exception.ConfigErrorf(moduleName, "working directory %s of step %s does not exist", dir, step.ID)
	}
	first, err := d.seq.IsFirst(step.ID)
	if err != nil {
		return err
	}
	if mode == model.ModeClean {
		if err := d.Clean(step); err != nil {
			return err
		}
		auto, err := d.SelectMode(step, "")
		if err != nil {
			return err
		}
		mode = auto
	}
	logger.Infof("Staging step %s in %s mode.", step.ID, mode)

	switch mode {
	case model.ModeFresh:
		if err := d.RunTerrain(ctx); err != nil {
			return err
		}
	case model.ModeRestart:
		if !d.HasTerrain() {
			if err := d.RunTerrain(ctx); err != nil {
				return err
			}
		}
		if _, err := d.LinkRestartArtifacts(step); err != nil {
			return err
		}
	case model.ModeNoGeo, model.ModeNoStat:
	default:
		return exception.ConfigErrorf(moduleName, "unknown cycle mode '%s'", mode)
	}
	if !first && mode != model.ModeRestart {
		if _, err := d.LinkRestartArtifacts(step); err != nil {
			return err
		}
	}

	if err := d.linkTerrain(dir); err != nil {
		return err
	}
	if mode == model.ModeFresh || mode == model.ModeNoGeo {
		if d.backup != nil {
			if err := d.backup.Backup(ctx, step); err != nil {
				return err
			}
		}
	}
	return d.SetStartFlag(step, !first)
}

// HasTerrain reports whether terrain preprocessing output exists.
func (d *Driver) HasTerrain() bool {
	return len(d.terrainFiles()) > 0
}

func (d *Driver) terrainFiles() []string {
	matches, _ := filepath.Glob(filepath.Join(d.cfg.StaticDir(), d.cfg.Wrfcycle.Experiment.TerrainPrefix+".d*.nc"))
	sort.Strings(matches)
	return matches
}

// RunTerrain runs the terrain preprocessing command synchronously in the static directory.
func (d *Driver) RunTerrain(ctx context.Context) error {
	argv := d.cfg.Wrfcycle.Preprocess.TerrainCommand
	if len(argv) == 0 {
		return exception.ConfigErrorf(moduleName, "terrain preprocessing required but preprocess.terrain_command is empty")
	}
	static := d.cfg.StaticDir()
	if err := os.MkdirAll(static, 0o755); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", static, err)
	}
	logPath := filepath.Join(static, "terrain.log")
	f, err := os.Create(logPath)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", logPath, err)
	}
	defer f.Close()

	logger.Infof("Running terrain preprocessing in %s: %v", static, argv)
	code, err := d.runner.Run(ctx, port.Command{Path: argv[0], Args: argv[1:], Dir: static, Stdout: f, Stderr: f})
	if err != nil || code != 0 {
		logger.SurfaceTail(os.Stdout, d.cfg.Wrfcycle.System.Logging.TailLines, logPath)
		return exception.NewCycleErrorf(moduleName, exception.KindPreprocessing, "terrain preprocessing failed with exit status %d", code, err)
	}
	if !d.HasTerrain() {
		return exception.NewCycleErrorf(moduleName, exception.KindPreprocessing, "terrain preprocessing produced no %s files in %s",
			d.cfg.Wrfcycle.Experiment.TerrainPrefix, static)
	}
	return nil
}

func (d *Driver) linkTerrain(dir string) error {
	for _, src := range d.terrainFiles() {
		if err := link(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot link %s", src, err)
		}
	}
	return nil
}

// RestartArtifacts lists the restart artifacts in the output area whose timestamp equals ts, ordered by domain.
func (d *Driver) RestartArtifacts(ts string) ([]model.RestartArtifact, error) {
	entries, err := os.ReadDir(d.cfg.OutputDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot list %s", d.cfg.OutputDir(), err)
	}
	prefix := d.cfg.Wrfcycle.Experiment.RestartPrefix
	var out []model.RestartArtifact
	for _, e := range entries {
		a, ok := model.ParseRestartArtifact(e.Name())
		if ok && a.Matches(prefix, ts) {
			// Keep the separator style of the file on disk.
			a.Timestamp = e.Name()[len(e.Name())-len(model.TimestampLayout):]
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

// LinkRestartArtifacts links the predecessor's end-of-run restart artifacts into the working directory
// of step. Finding none is a ConfigError: the step cannot warm-start.
func (d *Driver) LinkRestartArtifacts(step model.Step) (int, error) {
	prev, err := d.seq.Predecessor(step.ID)
	if err != nil {
		return 0, err
	}
	if prev.IsZero() {
		return 0, exception.ConfigErrorf(moduleName, "step %s is the first step and cannot restart", step.ID)
	}
	ts := prev.EndTimestamp()
	artifacts, err := d.RestartArtifacts(ts)
	if err != nil {
		return 0, err
	}
	if len(artifacts) == 0 {
		return 0, exception.ConfigErrorf(moduleName, "no %s artifacts for %s in %s; step %s cannot warm-start",
			d.cfg.Wrfcycle.Experiment.RestartPrefix, ts, d.cfg.OutputDir(), step.ID)
	}
	dir := d.cfg.StepDir(step.ID)
	for _, a := range artifacts {
		name := fmt.Sprintf("%s_d%02d_%s", a.Prefix, a.Domain, a.Timestamp)
		if err := link(filepath.Join(d.cfg.OutputDir(), name), filepath.Join(dir, name)); err != nil {
			return 0, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot link %s", name, err)
		}
	}
	logger.Infof("Linked %d restart artifacts (%s) into %s.", len(artifacts), ts, dir)
	return len(artifacts), nil
}

// Clean removes every other step directory and everything but the preserved configuration files
// from the directory of step. Failures are collected and returned together.
func (d *Driver) Clean(step model.Step) error {
	table, err := d.seq.Table()
	if err != nil {
		return err
	}
	var errs error
	for _, s := range table.Steps {
		if s.ID == step.ID {
			continue
		}
		dir := d.cfg.StepDir(s.ID)
		if !exists(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove %s", dir, err))
		}
	}

	keep := make(map[string]bool)
	for _, name := range d.cfg.Wrfcycle.Experiment.PreservedFiles {
		keep[name] = true
	}
	dir := d.cfg.StepDir(step.ID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot list %s", dir, err))
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = exception.Append(errs, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove %s", e.Name(), err))
		}
	}
	if errs != nil {
		logger.Errorf("CLEAN of step %s finished with %d errors.", step.ID, exception.ErrorCount(errs))
	}
	return errs
}
