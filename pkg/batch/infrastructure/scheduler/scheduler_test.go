package scheduler

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

type answer struct {
	out  string
	code int
}

// replies answers each command by executable name.
func replies(answers map[string]answer) *test.FakeCommandRunner {
	return &test.FakeCommandRunner{Handler: func(cmd port.Command) (int, error) {
		a := answers[cmd.Path]
		if a.code != 0 {
			_, _ = io.WriteString(cmd.Stderr, a.out)
			return a.code, nil
		}
		_, _ = io.WriteString(cmd.Stdout, a.out)
		return 0, nil
	}}
}

func TestSlurmSubmitArgs(t *testing.T) {
	s := NewSlurmSubmitter(nil, []string{"--account=clim"})
	args := s.SubmitArgs(port.JobRequest{
		Name:     "wrf-2000-02",
		Script:   "/exp/run_wrf.sh",
		Args:     []string{"run", "2000-02"},
		WorkDir:  "/exp/2000-02",
		Env:      map[string]string{"WRFCYCLE_STEP": "2000-02", "A": "1"},
		AfterAny: []string{"11", "12"},
		Output:   "wrf.%j.out",
	})
	assert.Equal(t, []string{
		"--parsable",
		"--job-name=wrf-2000-02",
		"--chdir=/exp/2000-02",
		"--output=wrf.%j.out",
		"--export=ALL,A=1,WRFCYCLE_STEP=2000-02",
		"--dependency=afterany:11:12",
		"--account=clim",
		"/exp/run_wrf.sh", "run", "2000-02",
	}, args)
}

func TestSlurmSubmit(t *testing.T) {
	runner := replies(map[string]answer{"sbatch": {out: "4711;cluster\n"}})
	id, err := NewSlurmSubmitter(runner, nil).Submit(context.Background(), port.JobRequest{Name: "x", Script: "run.sh"})
	require.NoError(t, err)
	assert.Equal(t, "4711", id)
	assert.Equal(t, []string{"sbatch"}, runner.Paths())
}

func TestSlurmSubmit_Rejected(t *testing.T) {
	runner := replies(map[string]answer{"sbatch": {out: "sbatch: error: invalid account", code: 1}})
	_, err := NewSlurmSubmitter(runner, nil).Submit(context.Background(), port.JobRequest{Name: "x", Script: "run.sh"})
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindSubmission))
	assert.Contains(t, err.Error(), "invalid account")
}

func TestSlurmSubmit_RequiresScript(t *testing.T) {
	_, err := NewSlurmSubmitter(&test.FakeCommandRunner{}, nil).Submit(context.Background(), port.JobRequest{Name: "x"})
	assert.True(t, exception.IsKind(err, exception.KindConfig))
}

func TestSlurmStatus(t *testing.T) {
	queued := replies(map[string]answer{"squeue": {out: "RUNNING\n"}})
	state, err := NewSlurmSubmitter(queued, nil).Status(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, port.JobStateRunning, state)
	assert.Equal(t, []string{"squeue"}, queued.Paths())

	finished := replies(map[string]answer{"squeue": {out: ""}, "sacct": {out: "CANCELLED by 1000\n"}})
	state, err = NewSlurmSubmitter(finished, nil).Status(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, port.JobStateFailed, state)
	assert.Equal(t, []string{"squeue", "sacct"}, finished.Paths())
}

func TestSlurmState(t *testing.T) {
	assert.Equal(t, port.JobStatePending, slurmState("PENDING"))
	assert.Equal(t, port.JobStateCompleted, slurmState("COMPLETED"))
	assert.Equal(t, port.JobStateFailed, slurmState("TIMEOUT"))
	assert.Equal(t, port.JobStateUnknown, slurmState(""))
	assert.Equal(t, port.JobStateUnknown, slurmState("WHATEVER"))
}

func TestPBSSubmitArgs(t *testing.T) {
	p := NewPBSSubmitter(nil, nil)
	args := p.SubmitArgs(port.JobRequest{
		Name:     "real-2000-02",
		Script:   "run_real.sh",
		Args:     []string{"preprocess", "2000-02"},
		WorkDir:  "/exp/2000-02",
		Env:      map[string]string{"WRFCYCLE_STEP": "2000-02"},
		AfterAny: []string{"9.srv"},
		Output:   "real.out",
	})
	assert.Equal(t, []string{
		"-N", "real-2000-02",
		"-j", "oe", "-o", "real.out",
		"-v", "WRFCYCLE_STEP=2000-02,PBS_O_WORKDIR=/exp/2000-02",
		"-W", "depend=afterany:9.srv",
		"-F", "preprocess 2000-02",
		"run_real.sh",
	}, args)
}

func TestPBSStatus(t *testing.T) {
	listing := strings.Join([]string{
		"Job Id: 9.srv",
		"    Job_Name = real-2000-02",
		"    job_state = F",
		"    Exit_status = 271",
	}, "\n")
	runner := replies(map[string]answer{"qstat": {out: listing}})
	state, err := NewPBSSubmitter(runner, nil).Status(context.Background(), "9.srv")
	require.NoError(t, err)
	assert.Equal(t, port.JobStateFailed, state)

	gone := replies(map[string]answer{"qstat": {out: "qstat: Unknown Job Id 9.srv", code: 153}})
	state, err = NewPBSSubmitter(gone, nil).Status(context.Background(), "9.srv")
	require.NoError(t, err)
	assert.Equal(t, port.JobStateUnknown, state)
}

func TestLocalCommand_WaitsForDependencies(t *testing.T) {
	cmd := NewLocalSubmitter(nil).Command(port.JobRequest{
		Script:   "./watch.sh",
		Args:     []string{"watch", "2000-02"},
		AfterAny: []string{"local-321", "slurm-ignored"},
		Env:      map[string]string{"K": "V"},
	})
	assert.Equal(t, "/bin/sh", cmd.Path)
	assert.Equal(t, []string{"-c", `while kill -0 321 2>/dev/null; do sleep 5; done; exec "$0" "$@"`, "./watch.sh", "watch", "2000-02"}, cmd.Args)
	assert.Equal(t, []string{"K=V"}, cmd.Env)
}

func TestLocalSubmit(t *testing.T) {
	runner := &test.FakeCommandRunner{}
	id, err := NewLocalSubmitter(runner).Submit(context.Background(), port.JobRequest{Script: "./run.sh", WorkDir: t.TempDir(), Output: "job.out"})
	require.NoError(t, err)
	assert.Equal(t, "local-4242", id)
	require.Len(t, runner.Started, 1)
	assert.NotNil(t, runner.Started[0].Stdout)
}

func TestNewJobSubmitter(t *testing.T) {
	cfg := config.NewConfig()
	for typ, name := range map[string]string{"slurm": "slurm", "PBS": "pbs", "local": "local"} {
		cfg.Wrfcycle.Scheduler.Type = typ
		s, err := NewJobSubmitter(cfg, &test.FakeCommandRunner{})
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	cfg.Wrfcycle.Scheduler.Type = "lsf"
	_, err := NewJobSubmitter(cfg, &test.FakeCommandRunner{})
	assert.True(t, exception.IsKind(err, exception.KindConfig))
}
