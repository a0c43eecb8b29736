package config

import (
	"path/filepath"
	"strings"

	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

// Validate checks settings that would otherwise fail late inside a batch allocation.
func (c *Config) Validate() error {
	w := c.Wrfcycle
	switch {
	case w.Experiment.IniDir == "":
		return exception.ConfigErrorf(moduleName, "experiment.ini_dir must be set")
	case w.Experiment.StepFile == "":
		return exception.ConfigErrorf(moduleName, "experiment.step_file must be set")
	case w.Experiment.RestartIntervals <= 0:
		return exception.ConfigErrorf(moduleName, "experiment.restart_intervals must be positive, got %d", w.Experiment.RestartIntervals)
	case w.Scheduler.PollIntervalSeconds <= 0:
		return exception.ConfigErrorf(moduleName, "scheduler.poll_interval_seconds must be positive, got %d", w.Scheduler.PollIntervalSeconds)
	case w.Scheduler.GracePeriodSeconds < 0 || w.Scheduler.TransientDelaySeconds < 0:
		return exception.ConfigErrorf(moduleName, "scheduler delays must not be negative")
	case w.Recovery.MaxRestarts < 0:
		return exception.ConfigErrorf(moduleName, "recovery.max_restarts must not be negative, got %d", w.Recovery.MaxRestarts)
	case w.Recovery.Enumerator <= 0 || w.Recovery.Denominator <= 0:
		return exception.ConfigErrorf(moduleName, "recovery.enumerator and recovery.denominator must be positive")
	case w.Recovery.DampingFactor < 0 || w.Recovery.DampingFactor > 1:
		return exception.ConfigErrorf(moduleName, "recovery.damping_factor must be within [0,1], got %g", w.Recovery.DampingFactor)
	case len(w.Recovery.Bands) == 0:
		return exception.ConfigErrorf(moduleName, "recovery.bands must not be empty")
	}
	switch mode := strings.ToLower(w.Scheduler.DependencyMode); mode {
	case DependencyModePoll, DependencyModeNative:
		c.Wrfcycle.Scheduler.DependencyMode = mode
	default:
		return exception.ConfigErrorf(moduleName, "unknown scheduler.dependency_mode '%s'", w.Scheduler.DependencyMode)
	}
	for _, b := range w.Recovery.Bands {
		if b.Decrement <= 0 {
			return exception.ConfigErrorf(moduleName, "recovery band for time step >= %g has non-positive decrement %g", b.MinTimeStep, b.Decrement)
		}
	}
	return nil
}

// ExperimentPath resolves p against the experiment root unless it is absolute.
func (c *Config) ExperimentPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Wrfcycle.Experiment.IniDir, p)
}

// StepDir returns the working directory of a step.
func (c *Config) StepDir(stepID string) string {
	return filepath.Join(c.Wrfcycle.Experiment.IniDir, stepID)
}

// StepFilePath returns the path of the step table.
func (c *Config) StepFilePath() string {
	return c.ExperimentPath(c.Wrfcycle.Experiment.StepFile)
}

// OutputDir returns the canonical output area.
func (c *Config) OutputDir() string {
	return c.ExperimentPath(c.Wrfcycle.Experiment.OutputDir)
}

// StateDir returns the durable orchestrator state directory.
func (c *Config) StateDir() string {
	return c.ExperimentPath(c.Wrfcycle.Experiment.StateDir)
}

// StaticDir returns the terrain preprocessing output directory.
func (c *Config) StaticDir() string {
	return c.ExperimentPath(c.Wrfcycle.Experiment.StaticDir)
}

// ExperimentName returns experiment.name, or the base name of the experiment root when unset.
func (c *Config) ExperimentName() string {
	if c.Wrfcycle.Experiment.Name != "" {
		return c.Wrfcycle.Experiment.Name
	}
	abs, err := filepath.Abs(c.Wrfcycle.Experiment.IniDir)
	if err != nil {
		return filepath.Base(c.Wrfcycle.Experiment.IniDir)
	}
	return filepath.Base(abs)
}
