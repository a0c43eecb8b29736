package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/chain"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/preprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/simulation"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/wrfcycle/pkg/batch/listener/ledger"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

var stepEnds = map[string]string{
	"2000-01": "2000-02-01_00:00:00",
	"2000-02": "2000-03-01_00:00:00",
	"2000-03": "2000-04-01_00:00:00",
}

// fakeModel plays the simulation executable: it writes the primary log and, on success, the
// end-of-run restart artifact. Failures holds the log body of the next failing attempts per step.
type fakeModel struct {
	failures map[string][]string
	runs     map[string]int
}

func (m *fakeModel) handle(cmd port.Command) (int, error) {
	step := filepath.Base(cmd.Dir)
	m.runs[step]++
	log := filepath.Join(cmd.Dir, "rsl.error.0000")
	if queued := m.failures[step]; len(queued) > 0 {
		m.failures[step] = queued[1:]
		return 1, os.WriteFile(log, []byte(queued[0]), 0o644)
	}
	if err := os.WriteFile(log, []byte("Timing for main: time 2000-01-01_00:02:00\nd01 SUCCESS COMPLETE WRF\n"), 0o644); err != nil {
		return 1, err
	}
	return 0, os.WriteFile(filepath.Join(cmd.Dir, "wrfrst_d01_"+stepEnds[step]), []byte("state"), 0o644)
}

type fixture struct {
	cfg       *config.Config
	repo      *inmemory.InMemoryRepository
	submitter *test.FakeSubmitter
	model     *fakeModel
	launcher  *SimpleCycleLauncher
	operator  *DefaultCycleOperator
	explorer  *SimpleCycleExplorer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := test.NewExperiment(t)
	cfg.Wrfcycle.Simulation.Command = []string{"wrf.exe"}
	test.WriteFile(t, filepath.Join(cfg.StaticDir(), "geo_em.d01.nc"), "terrain")

	f := &fixture{
		cfg:       cfg,
		repo:      inmemory.NewInMemoryRepository(),
		submitter: test.NewFakeSubmitter(),
		model:     &fakeModel{failures: map[string][]string{}, runs: map[string]int{}},
	}
	runner := &test.FakeCommandRunner{Handler: f.model.handle}

	seq := stepseq.NewSequencer(cfg)
	drv := driver.NewDriver(cfg, seq, runner, nil)
	sig := signal.NewCompletionSignal(cfg)
	waiter := signal.NewWaiter(cfg, sig, f.submitter)
	classifier, err := simulation.NewClassifier(cfg)
	require.NoError(t, err)
	chainer := chain.NewChainer(cfg, seq, drv, f.submitter, sig, waiter)
	pre := preprocess.NewLauncher(cfg, f.submitter, sig, waiter)

	f.launcher = NewSimpleCycleLauncher(CycleLauncherParams{
		Config:     cfg,
		Sequencer:  seq,
		Driver:     drv,
		Launcher:   pre,
		Executor:   preprocess.NewExecutor(cfg, runner, sig),
		Runner:     simulation.NewRunner(cfg, runner, classifier).WithStdout(io.Discard),
		Policy:     recovery.NewPolicy(cfg, f.repo, chainer),
		Chainer:    chainer,
		Dispatcher: postprocess.NewDispatcher(cfg, f.submitter, nil),
		Counters:   f.repo,
		Listeners:  []port.AttemptListener{ledger.NewLedgerListener(f.repo)},
	})
	f.operator = NewDefaultCycleOperator(CycleOperatorParams{
		Sequencer: seq,
		Policy:    recovery.NewPolicy(cfg, f.repo, chainer),
		Launcher:  pre,
	})
	f.explorer = NewSimpleCycleExplorer(CycleExplorerParams{
		Config:    cfg,
		Sequencer: seq,
		Driver:    drv,
		Checker:   sig,
		Counters:  f.repo,
		Attempts:  f.repo,
	})
	return f
}

func (f *fixture) preprocessed(t *testing.T, steps ...string) {
	for _, id := range steps {
		test.MarkPreprocessed(t, f.cfg, id, true)
	}
}

const instabilityLog = "Timing for main: time 2000-02-03_00:02:00\n 12 points exceeded cfl=2 in domain d01\n"

func TestRunAllocation_CyclesThroughExperimentWithRecovery(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-01", "2000-02", "2000-03")
	f.model.failures["2000-02"] = []string{instabilityLog, instabilityLog}
	ctx := context.Background()

	jan, err := f.launcher.RunAllocation(ctx, "2000-01", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.ModeNoGeo, jan.Mode)
	require.NotNil(t, jan.Chain)
	assert.Equal(t, chain.ActionSubmitted, jan.Chain.Action)
	assert.Nil(t, jan.Recovery)

	for i := 0; i < 2; i++ {
		res, err := f.launcher.RunAllocation(ctx, "2000-02", RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, model.ModeRestart, res.Mode)
		require.NotNil(t, res.Recovery)
		assert.Equal(t, recovery.BranchInstability, res.Recovery.Branch)
		assert.Nil(t, res.Chain)
	}
	feb, err := f.launcher.RunAllocation(ctx, "2000-02", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, feb.Chain)
	assert.Equal(t, "2000-03", feb.Chain.Next.ID)

	mar, err := f.launcher.RunAllocation(ctx, "2000-03", RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, mar.Chain)
	assert.Equal(t, chain.ActionEnd, mar.Chain.Action)
	require.Len(t, mar.Dispatches, 2)
	for _, d := range mar.Dispatches {
		assert.True(t, d.Final)
	}

	counter, err := f.repo.Load(ctx, "2000-02")
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Instability)
	assert.Equal(t, 0, counter.Transient)

	doc, err := namelist.Load(filepath.Join(f.cfg.StepDir("2000-02"), "namelist.input"))
	require.NoError(t, err)
	stab, err := recovery.ReadStability(doc, f.cfg.Wrfcycle.Recovery)
	require.NoError(t, err)
	assert.Equal(t, 30.0, stab.TimeStep)
	assert.Equal(t, 6, stab.SubStepMultiplier)
	assert.InDelta(t, 0.775, stab.Damping, 1e-9)

	rows, err := f.explorer.Attempts(ctx, "2000-02")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, want := range []struct {
		outcome  model.Outcome
		timeStep float64
	}{
		{model.OutcomeNumericalInstability, 120},
		{model.OutcomeNumericalInstability, 60},
		{model.OutcomeSuccess, 30},
	} {
		assert.Equal(t, i, rows[i].Attempt)
		assert.Equal(t, want.outcome, rows[i].Outcome)
		assert.Equal(t, want.timeStep, rows[i].TimeStep)
		assert.False(t, rows[i].FinishedAt.IsZero())
	}
	assert.Contains(t, rows[0].Message, "points exceeded cfl")

	assert.Len(t, f.submitter.Submitted("wrf-2000-02"), 3)
	assert.Len(t, f.submitter.Submitted("wrf-2000-03"), 1)
	assert.Len(t, f.submitter.Submitted("average-2000-01"), 1)
	assert.Empty(t, f.submitter.Submitted("pre-2000-02"))
	assert.FileExists(t, filepath.Join(f.cfg.StepDir("2000-02"), simulation.ArchiveName(2)))
	assert.FileExists(t, filepath.Join(f.cfg.OutputDir(), "wrfrst_d01_2000-04-01_00:00:00"))

	status, err := f.explorer.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	for _, st := range status {
		assert.True(t, st.Complete, st.Step.ID)
		assert.Equal(t, model.CompletionSuccess, st.Preprocess)
		assert.Equal(t, model.OutcomeSuccess, st.LastOutcome)
	}
	assert.Equal(t, 3, status[1].Attempts)
	assert.Equal(t, 2, status[1].Restarts.Instability)
}

func TestRunAllocation_FailedPreprocessingOfNextStepAborts(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-01")
	test.MarkPreprocessed(t, f.cfg, "2000-02", false)

	_, err := f.launcher.RunAllocation(context.Background(), "2000-01", RunOptions{})
	require.Error(t, err)
	assert.True(t, exception.IsKind(err, exception.KindPreprocessing))
	assert.Zero(t, f.model.runs["2000-01"])
	assert.Empty(t, f.submitter.Requests)
}

func TestRunAllocation_CleanPreprocessesStepAgain(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-01", "2000-02")
	f.submitter.OnSubmit = func(req port.JobRequest, _ string) {
		if req.Name == preprocess.JobName("2000-01") {
			test.MarkPreprocessed(t, f.cfg, "2000-01", true)
		}
	}

	res, err := f.launcher.RunAllocation(context.Background(), "2000-01", RunOptions{Mode: model.ModeClean})
	require.NoError(t, err)
	assert.Equal(t, model.ModeClean, res.Mode)
	assert.Len(t, f.submitter.Submitted(preprocess.JobName("2000-01")), 1)
	assert.Equal(t, 1, f.model.runs["2000-01"])
	assert.FileExists(t, filepath.Join(f.cfg.StepDir("2000-01"), f.cfg.Wrfcycle.Preprocess.Sentinel))
	assert.FileExists(t, filepath.Join(f.cfg.StepDir("2000-01"), "namelist.input"))
}

func TestRunAllocation_SegFaultIsFatal(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-01", "2000-02")
	f.model.failures["2000-01"] = []string{"Timing for main: time 2000-01-01_00:02:00\nSegmentation fault\n"}

	res, err := f.launcher.RunAllocation(context.Background(), "2000-01", RunOptions{})
	require.Error(t, err)
	assert.Equal(t, exception.KindSegFault, exception.KindOf(err))
	assert.Equal(t, model.OutcomeSegFault, res.Result.Outcome)
	assert.Nil(t, res.Recovery)
	assert.Empty(t, f.submitter.Requests)

	rows, err := f.explorer.Attempts(context.Background(), "2000-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.OutcomeSegFault, rows[0].Outcome)
}

func TestRunAllocation_SkipPreprocessLeavesNextStepAlone(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-01")

	res, err := f.launcher.RunAllocation(context.Background(), "2000-01", RunOptions{SkipPreprocess: true})
	require.NoError(t, err)
	require.NotNil(t, res.Chain)
	assert.Equal(t, chain.ActionWatcher, res.Chain.Action)
	assert.Len(t, f.submitter.Submitted("watch-2000-02"), 1)
	assert.Empty(t, f.submitter.Submitted("pre-2000-02"))
}

func TestStart_SubmitsFirstSimulation(t *testing.T) {
	f := newFixture(t)
	f.preprocessed(t, "2000-01")

	jobID, err := f.launcher.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1001", jobID)
	assert.Equal(t, []string{"wrf-2000-01"}, f.submitter.Names())
	assert.FileExists(t, f.cfg.StepFilePath())
	assert.FileExists(t, filepath.Join(f.cfg.StepDir("2000-01"), "namelist.input"))

	table, err := f.operator.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestOperator_Reset(t *testing.T) {
	f := newFixture(t)
	test.WithStepTable(t, f.cfg)
	f.preprocessed(t, "2000-02")
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, model.RestartAttempt{StepID: "2000-02", Instability: 3, Transient: 1}))

	require.NoError(t, f.operator.Reset(ctx, "2000-02", ResetOptions{}))
	counter, err := f.repo.Load(ctx, "2000-02")
	require.NoError(t, err)
	assert.Zero(t, counter.Total())
	assert.FileExists(t, filepath.Join(f.cfg.StepDir("2000-02"), f.cfg.Wrfcycle.Preprocess.Sentinel))

	require.NoError(t, f.operator.Reset(ctx, "2000-02", ResetOptions{Preprocess: true}))
	assert.NoFileExists(t, filepath.Join(f.cfg.StepDir("2000-02"), f.cfg.Wrfcycle.Preprocess.Sentinel))

	err = f.operator.Reset(ctx, "1999-12", ResetOptions{})
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
}

func TestOperator_WithoutLedgerModules(t *testing.T) {
	f := newFixture(t)
	_, err := f.operator.Report(context.Background())
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
	assert.Equal(t, exception.KindConfig, exception.KindOf(f.operator.Migrate(context.Background(), false)))
}
