package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

// PreprocessNamelist is a two-domain preprocessing namelist template.
const PreprocessNamelist = `&share
 wrf_core = 'ARW',
 max_dom = 2,
 start_date = '1999-01-01_00:00:00','1999-01-01_00:00:00',
 end_date   = '1999-01-02_00:00:00','1999-01-02_00:00:00',
 interval_seconds = 21600,
/

&geogrid
 parent_id         =   1,   1,
 e_we              =  91, 112,
/
`

// SimulationNamelist is a two-domain simulation namelist template.
const SimulationNamelist = ` &time_control
 run_days                            = 0,
 run_hours                           = 0,
 run_minutes                         = 0,
 run_seconds                         = 0,
 start_year                          = 1999, 1999,
 start_month                         = 01,   01,
 start_day                           = 01,   01,
 start_hour                          = 00,   00,
 end_year                            = 1999, 1999,
 end_month                           = 01,   01,
 end_day                             = 02,   02,
 end_hour                            = 00,   00,
 restart                             = .false.,
 restart_interval                    = 1440,
 /

 &domains
 time_step                           = 120,
 max_dom                             = 2,
 /

 &physics
 sf_urban_physics                    = 1,     1,
 /

 &dynamics
 time_step_sound                     = 4,     4,
 epssm                               = 0.1,   0.1,
 /
`

// ThreeMonthTable is the step table of a three-month experiment starting in January 2000.
const ThreeMonthTable = `2000-01   '2000-01-01_00:00:00'  '2000-02-01_00:00:00'
2000-02   '2000-02-01_00:00:00'  '2000-03-01_00:00:00'
2000-03   '2000-03-01_00:00:00'  '2000-04-01_00:00:00'
`

// NewExperiment creates an experiment root in a temporary directory holding both namelist templates
// and returns a configuration pointing at it. Polling and delays are shortened for tests.
func NewExperiment(t testing.TB) *config.Config {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, filepath.Join(dir, "namelist.wps"), PreprocessNamelist)
	WriteFile(t, filepath.Join(dir, "namelist.input"), SimulationNamelist)

	cfg := config.NewConfig()
	w := &cfg.Wrfcycle
	w.Experiment.Name = "test"
	w.Experiment.IniDir = dir
	w.Sequence = config.SequenceConfig{Begin: "2000-01-01_00:00:00", End: "2000-04-01_00:00:00", Interval: "1M"}
	w.Scheduler.Type = "local"
	w.Scheduler.PollIntervalSeconds = 1
	w.Scheduler.GracePeriodSeconds = 0
	w.Scheduler.TransientDelaySeconds = 0
	w.Scheduler.Scripts = config.ScriptsConfig{
		Preprocess: "run_preprocess.sh",
		Simulation: "run_simulation.sh",
		Watcher:    "run_watcher.sh",
		Archive:    "run_archive.sh",
		Average:    "run_average.sh",
	}
	w.Recovery.InitialTimeStep = 120
	return cfg
}

// WithStepTable writes ThreeMonthTable as the step file of cfg.
func WithStepTable(t testing.TB, cfg *config.Config) *config.Config {
	t.Helper()
	WriteFile(t, cfg.StepFilePath(), ThreeMonthTable)
	return cfg
}

// WriteFile writes body to path, creating parent directories.
func WriteFile(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path.
func ReadFile(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// MarkPreprocessed writes the end-of-job sentinel of the preprocessing of stepID, with the success
// marker in the preprocessing log when success is set.
func MarkPreprocessed(t testing.TB, cfg *config.Config, stepID string, success bool) {
	t.Helper()
	pp := cfg.Wrfcycle.Preprocess
	dir := cfg.StepDir(stepID)
	body := "real.exe: metgrid input read\n"
	if success {
		body += "d01 2000-01-01_00:00:00 real_em: " + pp.SuccessMarker + "\n"
	}
	WriteFile(t, filepath.Join(dir, pp.LogFile), body)
	WriteFile(t, filepath.Join(dir, pp.Sentinel), "2024-01-01T00:00:00Z exit=0\n")
}
