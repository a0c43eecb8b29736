package chain

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

type fakeArtifacts map[string]int

func (f fakeArtifacts) RestartArtifacts(ts string) ([]model.RestartArtifact, error) {
	var out []model.RestartArtifact
	for d := 1; d <= f[ts]; d++ {
		out = append(out, model.RestartArtifact{Prefix: "wrfrst", Domain: d, Timestamp: ts})
	}
	return out, nil
}

type fixedWaiter struct {
	state model.CompletionState
}

func (w fixedWaiter) Wait(context.Context, string) (model.CompletionState, error) {
	return w.state, nil
}

type recordingListener struct{ kinds []string }

func (l *recordingListener) OnSubmit(_ context.Context, kind string, _ port.JobRequest, _ string, _ error) {
	l.kinds = append(l.kinds, kind)
}

var (
	jan = model.Step{ID: "2000-01"}
	feb = model.Step{ID: "2000-02"}
	mar = model.Step{ID: "2000-03"}
)

const febStart = "2000-02-01_00:00:00"

func newChainer(t *testing.T, waiter port.Waiter) (*config.Config, *Chainer, *test.FakeSubmitter, *recordingListener) {
	cfg := test.WithStepTable(t, test.NewExperiment(t))
	sub := test.NewFakeSubmitter()
	lis := &recordingListener{}
	c := NewChainer(cfg, stepseq.NewSequencer(cfg), fakeArtifacts{febStart: 2}, sub,
		signal.NewCompletionSignal(cfg), waiter, lis)
	return cfg, c, sub, lis
}

func TestChain_SubmitsNextWhenPreprocessed(t *testing.T) {
	cfg, c, sub, lis := newChainer(t, fixedWaiter{})
	test.MarkPreprocessed(t, cfg, feb.ID, true)

	res, err := c.Chain(context.Background(), jan)
	require.NoError(t, err)
	assert.Equal(t, ActionSubmitted, res.Action)
	assert.Equal(t, "2000-02", res.Next.ID)
	assert.Equal(t, 2, res.Artifacts)
	assert.Equal(t, "1001", res.JobID)

	reqs := sub.Submitted("wrf-2000-02")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"run", "2000-02"}, reqs[0].Args)
	assert.Equal(t, cfg.ExperimentPath("run_simulation.sh"), reqs[0].Script)
	assert.Equal(t, []string{KindSimulation}, lis.kinds)
}

func TestChain_PendingSubmitsWatcher(t *testing.T) {
	cfg, c, sub, _ := newChainer(t, fixedWaiter{})
	require.NoError(t, signal.RecordJobID(mkdir(t, cfg, feb), "preprocess.jobid", "777"))

	res, err := c.Chain(context.Background(), jan)
	require.NoError(t, err)
	assert.Equal(t, ActionWatcher, res.Action)
	assert.Empty(t, sub.Submitted("wrf-2000-02"), "no simulation while preprocessing is pending")
	watchers := sub.Submitted("watch-2000-02")
	require.Len(t, watchers, 1)
	assert.Equal(t, []string{"watch", "2000-02"}, watchers[0].Args)
	assert.Empty(t, watchers[0].AfterAny, "poll mode does not use batch dependencies")

	cfg.Wrfcycle.Scheduler.DependencyMode = config.DependencyModeNative
	_, err = c.Chain(context.Background(), jan)
	require.NoError(t, err)
	watchers = sub.Submitted("watch-2000-02")
	require.Len(t, watchers, 2)
	assert.Equal(t, []string{"777"}, watchers[1].AfterAny)

	cfg.Wrfcycle.Scheduler.DependencyMode = "NATIVE"
	_, err = c.Chain(context.Background(), jan)
	require.NoError(t, err)
	watchers = sub.Submitted("watch-2000-02")
	require.Len(t, watchers, 3)
	assert.Equal(t, []string{"777"}, watchers[2].AfterAny, "dependency mode is case-insensitive")
}

func TestChain_PreprocessingFailureIsFatal(t *testing.T) {
	cfg, c, sub, _ := newChainer(t, fixedWaiter{})
	test.MarkPreprocessed(t, cfg, feb.ID, false)

	_, err := c.Chain(context.Background(), jan)
	assert.Equal(t, exception.KindPreprocessing, exception.KindOf(err))
	assert.Empty(t, sub.Requests)
}

func TestChain_MissingArtifacts(t *testing.T) {
	cfg, c, sub, _ := newChainer(t, fixedWaiter{})
	test.MarkPreprocessed(t, cfg, mar.ID, true)

	_, err := c.Chain(context.Background(), feb)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
	assert.Empty(t, sub.Requests)
}

func TestChain_EndOfChain(t *testing.T) {
	_, c, sub, _ := newChainer(t, fixedWaiter{})
	res, err := c.Chain(context.Background(), mar)
	require.NoError(t, err)
	assert.Equal(t, ActionEnd, res.Action)
	assert.True(t, res.Next.IsZero())
	assert.Empty(t, sub.Requests)

	_, err = c.Chain(context.Background(), model.Step{ID: "1999-12"})
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}

func TestWatch(t *testing.T) {
	_, c, sub, _ := newChainer(t, fixedWaiter{state: model.CompletionSuccess})
	jobID, err := c.Watch(context.Background(), feb)
	require.NoError(t, err)
	assert.Equal(t, "1001", jobID)
	assert.Len(t, sub.Submitted("wrf-2000-02"), 1)

	_, c, sub, _ = newChainer(t, fixedWaiter{state: model.CompletionFailure})
	_, err = c.Watch(context.Background(), feb)
	assert.Equal(t, exception.KindPreprocessing, exception.KindOf(err))
	assert.Empty(t, sub.Requests)
}

func TestResubmitCurrent(t *testing.T) {
	cfg, c, sub, _ := newChainer(t, fixedWaiter{})
	cfg.Wrfcycle.Scheduler.SubmitArgs = []string{"--qos=long"}
	_, err := c.ResubmitCurrent(context.Background(), feb)
	require.NoError(t, err)
	reqs := sub.Submitted("wrf-2000-02")
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"--qos=long"}, reqs[0].ExtraArgs)
	assert.Equal(t, "2000-02", reqs[0].Env["WRFCYCLE_STEP"])
}

func mkdir(t *testing.T, cfg *config.Config, step model.Step) string {
	dir := cfg.StepDir(step.ID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}
