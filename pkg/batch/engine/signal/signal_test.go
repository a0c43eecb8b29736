package signal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

const marker = "SUCCESS COMPLETE REAL_EM INIT"

func newSignal(now time.Time) *CompletionSignal {
	cfg := config.NewConfig()
	s := NewCompletionSignal(cfg)
	s.GracePeriod = time.Minute
	s.now = func() time.Time { return now }
	return s
}

func touch(t *testing.T, path, body string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestIsComplete(t *testing.T) {
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no sentinel is pending even with marker", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "preprocess.log"), marker, now)
		state, err := newSignal(now).IsComplete(dir)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionPending, state)
	})

	t.Run("sentinel and marker is success", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "preprocess.done"), "", now)
		touch(t, filepath.Join(dir, "preprocess.log"), "real_em: wrote\n d01 "+marker+"\n", now)
		state, err := newSignal(now).IsComplete(dir)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionSuccess, state)
	})

	t.Run("sentinel without marker is pending within grace", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "preprocess.done"), "", now.Add(-30*time.Second))
		state, err := newSignal(now).IsComplete(dir)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionPending, state)
	})

	t.Run("sentinel without marker fails after grace", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "preprocess.done"), "", now.Add(-2*time.Minute))
		touch(t, filepath.Join(dir, "preprocess.log"), "ERROR: metgrid failed\n", now)
		state, err := newSignal(now).IsComplete(dir)
		require.NoError(t, err)
		assert.Equal(t, model.CompletionFailure, state)
	})
}

func TestWriteSentinelAndClear(t *testing.T) {
	dir := t.TempDir()
	s := newSignal(time.Now())

	require.NoError(t, s.WriteSentinel(dir, 0))
	assert.FileExists(t, filepath.Join(dir, "preprocess.done"))

	require.NoError(t, s.Clear(dir))
	require.NoError(t, s.Clear(dir))
	assert.NoFileExists(t, filepath.Join(dir, "preprocess.done"))
}

func TestJobIDRecord(t *testing.T) {
	dir := t.TempDir()
	id, err := ReadJobID(dir, "preprocess.jobid")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, RecordJobID(dir, "preprocess.jobid", "8812"))
	id, err = ReadJobID(dir, "preprocess.jobid")
	require.NoError(t, err)
	assert.Equal(t, "8812", id)
}

type scriptedChecker struct {
	states []model.CompletionState
	calls  int
}

func (c *scriptedChecker) IsComplete(string) (model.CompletionState, error) {
	c.calls++
	s := c.states[0]
	if len(c.states) > 1 {
		c.states = c.states[1:]
	}
	return s, nil
}

func TestPollWaiter(t *testing.T) {
	checker := &scriptedChecker{states: []model.CompletionState{
		model.CompletionPending, model.CompletionPending, model.CompletionSuccess,
	}}
	state, err := NewPollWaiter(checker, time.Millisecond, 0).Wait(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, model.CompletionSuccess, state)
	assert.Equal(t, 3, checker.calls)
}

func TestPollWaiter_Timeout(t *testing.T) {
	checker := &scriptedChecker{states: []model.CompletionState{model.CompletionPending}}
	_, err := NewPollWaiter(checker, time.Millisecond, 20*time.Millisecond).Wait(context.Background(), t.TempDir())
	assert.True(t, exception.IsKind(err, exception.KindPreprocessing))
}

func TestNativeWaiter_FollowsJobThenSignal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, RecordJobID(dir, "preprocess.jobid", "77"))

	sub := test.NewFakeSubmitter()
	sub.States["77"] = []port.JobState{port.JobStatePending, port.JobStateRunning, port.JobStateCompleted}
	checker := &scriptedChecker{states: []model.CompletionState{model.CompletionSuccess}}

	state, err := NewNativeWaiter(checker, sub, "preprocess.jobid", time.Millisecond, time.Second, 0).Wait(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, model.CompletionSuccess, state)
	assert.Equal(t, 1, checker.calls, "signal is only evaluated once the job terminated")
}

func TestNativeWaiter_TerminatedWithoutSentinelFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, RecordJobID(dir, "preprocess.jobid", "78"))

	sub := test.NewFakeSubmitter()
	sub.States["78"] = []port.JobState{port.JobStateFailed}
	checker := &scriptedChecker{states: []model.CompletionState{model.CompletionPending}}

	state, err := NewNativeWaiter(checker, sub, "preprocess.jobid", time.Millisecond, 5*time.Millisecond, 0).Wait(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, model.CompletionFailure, state)
}

func TestNewWaiter_SelectsByDependencyMode(t *testing.T) {
	cfg := config.NewConfig()
	checker := &scriptedChecker{states: []model.CompletionState{model.CompletionSuccess}}

	assert.IsType(t, &PollWaiter{}, NewWaiter(cfg, checker, test.NewFakeSubmitter()))

	cfg.Wrfcycle.Scheduler.DependencyMode = config.DependencyModeNative
	assert.IsType(t, &NativeWaiter{}, NewWaiter(cfg, checker, test.NewFakeSubmitter()))
}
