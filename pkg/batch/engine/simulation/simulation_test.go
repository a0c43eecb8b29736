package simulation

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

var jan = model.Step{ID: "2000-01"}

func newRunner(t *testing.T, handler func(cmd port.Command) (int, error)) (*config.Config, *Runner, *bytes.Buffer) {
	cfg := test.NewExperiment(t)
	cfg.Wrfcycle.Simulation.Command = []string{"mpirun", "./wrf.exe"}
	require.NoError(t, os.MkdirAll(cfg.StepDir(jan.ID), 0o755))
	classifier, err := NewClassifier(cfg)
	require.NoError(t, err)
	var stdout bytes.Buffer
	r := NewRunner(cfg, &test.FakeCommandRunner{Handler: handler}, classifier).WithStdout(&stdout)
	return cfg, r, &stdout
}

// wrf writes the given rank logs into the working directory and echoes a line on stdout.
func wrf(logs map[string]string) func(cmd port.Command) (int, error) {
	return func(cmd port.Command) (int, error) {
		for name, body := range logs {
			if err := os.WriteFile(filepath.Join(cmd.Dir, name), []byte(body), 0o644); err != nil {
				return 0, err
			}
		}
		io.WriteString(cmd.Stdout, "starting wrf task 0\n")
		return 0, nil
	}
}

func archiveEntries(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
	}
	sort.Strings(names)
	return names
}

func TestRun_SuccessMovesOutputs(t *testing.T) {
	cfg, r, stdout := newRunner(t, func(cmd port.Command) (int, error) {
		test.WriteFile(t, filepath.Join(cmd.Dir, "rsl.error.0000"), "Timing for main: time 2000-01-01_00:02:00\nd01 2000-02-01_00:00:00 wrf: SUCCESS COMPLETE WRF\n")
		test.WriteFile(t, filepath.Join(cmd.Dir, "rsl.out.0000"), "ok\n")
		test.WriteFile(t, filepath.Join(cmd.Dir, "wrfout_d01_2000-01-01_00:00:00"), "netcdf")
		test.WriteFile(t, filepath.Join(cmd.Dir, "wrfrst_d01_2000-02-01_00:00:00"), "restart")
		io.WriteString(cmd.Stdout, "wrf.exe started\n")
		return 0, nil
	})

	// A restart artifact linked from the previous step must not be moved over its target.
	prev := filepath.Join(cfg.OutputDir(), "wrfrst_d01_2000-01-01_00:00:00")
	test.WriteFile(t, prev, "previous restart")
	require.NoError(t, os.Symlink(prev, filepath.Join(cfg.StepDir(jan.ID), filepath.Base(prev))))

	res, err := r.Run(context.Background(), jan, 0)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome)
	assert.True(t, res.MainLoopEntered)
	assert.False(t, res.TransientFault)
	assert.Equal(t, "2000-01", res.Step)

	assert.Contains(t, stdout.String(), "wrf.exe started")
	assert.Contains(t, test.ReadFile(t, filepath.Join(cfg.StepDir(jan.ID), "simulation.out")), "wrf.exe started")

	assert.FileExists(t, filepath.Join(cfg.OutputDir(), "wrfout_d01_2000-01-01_00:00:00"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir(), "wrfrst_d01_2000-02-01_00:00:00"))
	assert.NoFileExists(t, filepath.Join(cfg.StepDir(jan.ID), "wrfout_d01_2000-01-01_00:00:00"))
	assert.Equal(t, "previous restart", test.ReadFile(t, prev))

	assert.Equal(t, filepath.Join(cfg.StepDir(jan.ID), "logs_attempt0.tar.gz"), res.Archive)
	assert.Equal(t, []string{"rsl.error.0000", "rsl.out.0000", "simulation.out"}, archiveEntries(t, res.Archive))
}

func TestRun_Instability(t *testing.T) {
	cfg, r, _ := newRunner(t, wrf(map[string]string{
		"rsl.error.0000": "Timing for main: time 2000-01-03_00:02:00\n",
		"rsl.error.0003": "Timing for main\n  d01 2000-01-03 points exceeded cfl=2 in domain d01\n",
	}))

	res, err := r.Run(context.Background(), jan, 2)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNumericalInstability, res.Outcome)
	assert.True(t, res.MainLoopEntered)
	assert.Contains(t, res.Detail, "rsl.error.0003")
	assert.FileExists(t, filepath.Join(cfg.StepDir(jan.ID), "logs_attempt2.tar.gz"))
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir(), "rsl.error.0000"))
}

func TestRun_ClearsStaleLogs(t *testing.T) {
	cfg, r, _ := newRunner(t, wrf(map[string]string{"rsl.error.0000": "starting\n"}))
	stale := filepath.Join(cfg.StepDir(jan.ID), "rsl.error.0001")
	test.WriteFile(t, stale, "NaN from the previous attempt\n")

	res, err := r.Run(context.Background(), jan, 1)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.Equal(t, model.OutcomeUnknown, res.Outcome)
	assert.False(t, res.MainLoopEntered)
}

func TestRun_TransientFaultInOutput(t *testing.T) {
	_, r, _ := newRunner(t, func(cmd port.Command) (int, error) {
		io.WriteString(cmd.Stdout, "srun: error: Application launch failed: Socket timed out\n")
		return 1, nil
	})

	res, err := r.Run(context.Background(), jan, 0)
	require.NoError(t, err)
	assert.True(t, res.TransientFault)
	assert.False(t, res.MainLoopEntered)
	assert.Equal(t, model.OutcomeUnknown, res.Outcome)
}

func TestRun_SegFault(t *testing.T) {
	_, r, _ := newRunner(t, wrf(map[string]string{
		"rsl.error.0000": "Timing for main\n",
		"rsl.error.0001": "forrtl: severe (174): SIGSEGV, segmentation fault occurred\n",
	}))

	res, err := r.Run(context.Background(), jan, 0)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSegFault, res.Outcome)
}

func TestRun_Errors(t *testing.T) {
	cfg, r, _ := newRunner(t, nil)
	_, err := r.Run(context.Background(), model.Step{ID: "1999-12"}, 0)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))

	cfg.Wrfcycle.Simulation.Command = nil
	_, err = r.Run(context.Background(), jan, 0)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}

func TestMarkerClassifier_InstabilityWinsOverSegFault(t *testing.T) {
	dir := t.TempDir()
	test.WriteFile(t, filepath.Join(dir, "rsl.error.0000"), "Timing for main\n")
	test.WriteFile(t, filepath.Join(dir, "rsl.error.0001"), "Segmentation fault\n")
	test.WriteFile(t, filepath.Join(dir, "rsl.error.0002"), "u = NaN\n")

	c := NewMarkerClassifier(config.NewConfig().Wrfcycle.Simulation.Markers)
	res, err := c.Classify(context.Background(), port.RunLogs{
		WorkDir:  dir,
		Primary:  filepath.Join(dir, "rsl.error.0000"),
		RankLogs: []string{filepath.Join(dir, "rsl.error.0000"), filepath.Join(dir, "rsl.error.0001"), filepath.Join(dir, "rsl.error.0002")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNumericalInstability, res.Outcome)
}

func TestResultFileClassifier(t *testing.T) {
	dir := t.TempDir()
	markers := config.NewConfig().Wrfcycle.Simulation.Markers
	c := NewResultFileClassifier("run_result.json", NewMarkerClassifier(markers))
	logs := port.RunLogs{WorkDir: dir, Primary: filepath.Join(dir, "rsl.error.0000")}

	test.WriteFile(t, logs.Primary, "SUCCESS COMPLETE WRF\n")
	res, err := c.Classify(context.Background(), logs)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, res.Outcome, "falls back to markers without a result file")

	test.WriteFile(t, filepath.Join(dir, "run_result.json"), `{"outcome":"numerical_instability","main_loop_entered":true,"detail":"w > 80 m/s"}`)
	res, err = c.Classify(context.Background(), logs)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeNumericalInstability, res.Outcome)
	assert.True(t, res.MainLoopEntered)
	assert.Equal(t, "w > 80 m/s", res.Detail)

	test.WriteFile(t, filepath.Join(dir, "run_result.json"), `{"outcome":"exploded"}`)
	res, err = c.Classify(context.Background(), logs)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnknown, res.Outcome)

	test.WriteFile(t, filepath.Join(dir, "run_result.json"), `{`)
	_, err = c.Classify(context.Background(), logs)
	assert.Error(t, err)
}

func TestNewClassifier(t *testing.T) {
	cfg := config.NewConfig()
	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MarkerClassifier{}, c)

	cfg.Wrfcycle.Simulation.Classifier = "result_file"
	c, err = NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &ResultFileClassifier{}, c)

	cfg.Wrfcycle.Simulation.Classifier = "oracle"
	_, err = NewClassifier(cfg)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}
