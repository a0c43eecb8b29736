package recovery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/test"
)

type recordingResubmitter struct {
	steps []string
	err   error
}

func (r *recordingResubmitter) ResubmitCurrent(_ context.Context, step model.Step) (string, error) {
	r.steps = append(r.steps, step.ID)
	return "2001", r.err
}

var feb = model.Step{ID: "2000-02"}

var instability = model.RunResult{Step: "2000-02", Outcome: model.OutcomeNumericalInstability, MainLoopEntered: true, Detail: "NaN"}

func newPolicy(t *testing.T) (*config.Config, *Policy, *inmemory.InMemoryRepository, *recordingResubmitter) {
	cfg := test.NewExperiment(t)
	test.WriteFile(t, filepath.Join(cfg.StepDir(feb.ID), "namelist.input"), test.SimulationNamelist)
	store := inmemory.NewInMemoryRepository()
	resub := &recordingResubmitter{}
	p := NewPolicy(cfg, store, resub)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return cfg, p, store, resub
}

func stability(t *testing.T, cfg *config.Config) model.StabilityConfig {
	doc, err := namelist.Load(filepath.Join(cfg.StepDir(feb.ID), "namelist.input"))
	require.NoError(t, err)
	s, err := ReadStability(doc, cfg.Wrfcycle.Recovery)
	require.NoError(t, err)
	return s
}

func TestBands_Decrement(t *testing.T) {
	b := NewBands([]config.DecrementBand{{MinTimeStep: 0, Decrement: 5}, {MinTimeStep: 120, Decrement: 60}, {MinTimeStep: 30, Decrement: 15}})
	assert.Equal(t, 60.0, b.Decrement(180))
	assert.Equal(t, 60.0, b.Decrement(120))
	assert.Equal(t, 15.0, b.Decrement(119))
	assert.Equal(t, 5.0, b.Decrement(29))

	d := NewBands(config.DefaultDecrementBands())
	for ts, want := range map[float64]float64{300: 120, 240: 120, 180: 60, 90: 30, 45: 15, 25: 10, 15: 5} {
		assert.Equal(t, want, d.Decrement(ts), "time step %g", ts)
	}
}

func TestRecover_InstabilitySequence(t *testing.T) {
	cfg, p, store, resub := newPolicy(t)
	ctx := context.Background()

	steps := []float64{stability(t, cfg).TimeStep}
	for i := 0; i < 4; i++ {
		d, err := p.Recover(ctx, feb, instability)
		require.NoError(t, err)
		assert.Equal(t, BranchInstability, d.Branch)
		assert.Equal(t, i+1, d.Attempt.Instability)
		assert.Equal(t, "2001", d.JobID)
		steps = append(steps, stability(t, cfg).TimeStep)
	}
	assert.Equal(t, []float64{120, 60, 30, 15}, steps[:4], "time step of the first four attempts")
	assert.Equal(t, 10.0, steps[4])
	assert.Equal(t, []string{"2000-02", "2000-02", "2000-02", "2000-02"}, resub.steps)

	c, err := store.Load(ctx, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Instability)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), c.UpdatedAt)
}

func TestRecover_DampingAndCanopy(t *testing.T) {
	cfg, p, _, _ := newPolicy(t)
	ctx := context.Background()

	_, err := p.Recover(ctx, feb, instability)
	require.NoError(t, err)
	s := stability(t, cfg)
	assert.Equal(t, model.StabilityConfig{TimeStep: 60, SubStepMultiplier: 5, Damping: 0.55}, s)

	_, err = p.Recover(ctx, feb, instability)
	require.NoError(t, err)
	_, err = p.Recover(ctx, feb, instability)
	require.NoError(t, err)
	s = stability(t, cfg)
	assert.Equal(t, 15.0, s.TimeStep)
	assert.Equal(t, 8, s.SubStepMultiplier)
	assert.InDelta(t, 0.8875, s.Damping, 1e-9)
	assert.False(t, s.CanopyDisabled)

	// The fourth failure happens with R=3 > 2.
	_, err = p.Recover(ctx, feb, instability)
	require.NoError(t, err)
	s = stability(t, cfg)
	assert.Equal(t, 1.0, s.Damping)
	assert.True(t, s.CanopyDisabled)

	doc, err := namelist.Load(filepath.Join(cfg.StepDir(feb.ID), "namelist.input"))
	require.NoError(t, err)
	v, _ := doc.Get("physics", "sf_urban_physics")
	assert.Equal(t, "0, 0", v)
	v, _ = doc.Get("dynamics", "epssm")
	assert.Equal(t, "1, 1", v)
	assert.Contains(t, string(doc.Bytes()), "wrfcycle restart 4 of step 2000-02")
}

func TestRecover_BudgetAndGuards(t *testing.T) {
	cfg, p, store, resub := newPolicy(t)
	ctx := context.Background()

	// Parameters edited by hand without a recorded restart.
	require.NoError(t, namelist.Write(filepath.Join(cfg.StepDir(feb.ID), "namelist.input"), "domains", "time_step", "90", "manual"))
	_, err := p.Recover(ctx, feb, instability)
	assert.ErrorIs(t, err, ErrUntrackedChange)
	assert.Equal(t, exception.KindConfig, exception.KindOf(err))
	assert.Empty(t, resub.steps)
	c, _ := store.Load(ctx, feb.ID)
	assert.Zero(t, c.Instability, "an aborted recovery does not count")

	require.NoError(t, store.Save(ctx, model.RestartAttempt{StepID: feb.ID, Instability: 6}))
	_, err = p.Recover(ctx, feb, instability)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.False(t, exception.IsRecoverable(err))

	cfg.Wrfcycle.Recovery.MaxRestarts = 10
	require.NoError(t, namelist.Write(filepath.Join(cfg.StepDir(feb.ID), "namelist.input"), "domains", "time_step", "5", "manual"))
	_, err = p.Recover(ctx, feb, instability)
	assert.ErrorIs(t, err, ErrCannotShrink)
	assert.Equal(t, exception.KindRecoveryExhausted, exception.KindOf(err))
	assert.Empty(t, resub.steps)
}

func TestRecover_BudgetCheckedBeforeNamelist(t *testing.T) {
	cfg, p, store, resub := newPolicy(t)
	ctx := context.Background()
	test.WriteFile(t, filepath.Join(cfg.StepDir(feb.ID), "namelist.input"), "&domains\n time_step =\n")
	require.NoError(t, store.Save(ctx, model.RestartAttempt{StepID: feb.ID, Instability: cfg.Wrfcycle.Recovery.MaxRestarts + 1}))

	_, err := p.Recover(ctx, feb, instability)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, exception.KindRecoveryExhausted, exception.KindOf(err))
	assert.False(t, exception.IsRecoverable(err))
	assert.Empty(t, resub.steps)
}

func TestRecover_Transient(t *testing.T) {
	cfg, p, store, resub := newPolicy(t)
	ctx := context.Background()
	cfg.Wrfcycle.Scheduler.TransientDelaySeconds = 300
	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	before := stability(t, cfg)

	res := model.RunResult{Step: feb.ID, Outcome: model.OutcomeUnknown, TransientFault: true}
	d, err := p.Recover(ctx, feb, res)
	require.NoError(t, err)
	assert.Equal(t, BranchTransient, d.Branch)
	assert.Equal(t, []time.Duration{300 * time.Second}, slept)
	assert.Equal(t, before, stability(t, cfg), "parameters untouched")
	assert.Equal(t, []string{"2000-02"}, resub.steps)

	require.NoError(t, store.Save(ctx, model.RestartAttempt{StepID: feb.ID, Instability: 3, Transient: 3}))
	_, err = p.Recover(ctx, feb, res)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, exception.KindRecoveryExhausted, exception.KindOf(err))
	assert.False(t, exception.IsRecoverable(err))
	assert.Len(t, resub.steps, 1)
}

func TestRecover_Fatal(t *testing.T) {
	_, p, store, resub := newPolicy(t)
	ctx := context.Background()

	cases := map[string]struct {
		res  model.RunResult
		kind exception.Kind
	}{
		"segfault":       {model.RunResult{Step: feb.ID, Outcome: model.OutcomeSegFault, MainLoopEntered: true}, exception.KindSegFault},
		"unknown":        {model.RunResult{Step: feb.ID, Outcome: model.OutcomeUnknown}, exception.KindUnknown},
		"initialization": {model.RunResult{Step: feb.ID, Outcome: model.OutcomeNumericalInstability}, exception.KindUnknown},
		"success":        {model.RunResult{Step: feb.ID, Outcome: model.OutcomeSuccess}, exception.KindUnknown},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := p.Recover(ctx, feb, tc.res)
			assert.Equal(t, tc.kind, exception.KindOf(err))
		})
	}
	assert.Empty(t, resub.steps)
	c, _ := store.Load(ctx, feb.ID)
	assert.Zero(t, c.Total())
}

func TestRecover_ResubmitFailure(t *testing.T) {
	_, p, store, resub := newPolicy(t)
	resub.err = errors.New("sbatch: error: Batch job submission failed")

	_, err := p.Recover(context.Background(), feb, instability)
	assert.Error(t, err)
	c, _ := store.Load(context.Background(), feb.ID)
	assert.Equal(t, 1, c.Instability, "the counter is committed before the resubmission")
}

func TestInitialTimeStep_FromTemplate(t *testing.T) {
	cfg, p, _, _ := newPolicy(t)
	cfg.Wrfcycle.Recovery.InitialTimeStep = 0
	ts, err := p.InitialTimeStep()
	require.NoError(t, err)
	assert.Equal(t, 120.0, ts)
}

func TestAdjuster_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rc := config.NewConfig().Wrfcycle.Recovery
		rc.MaxRestarts = 1000
		initial := float64(rapid.IntRange(1, 600).Draw(t, "initial"))
		cur := model.StabilityConfig{
			TimeStep:          initial,
			SubStepMultiplier: rapid.IntRange(1, 10).Draw(t, "sub"),
			Damping:           float64(rapid.IntRange(0, 100).Draw(t, "damping")) / 100,
		}
		a := NewAdjuster(rc, initial)
		for r := 0; ; r++ {
			next, err := a.Next(r, cur)
			if err != nil {
				if !errors.Is(err, ErrCannotShrink) {
					t.Fatalf("unexpected error at R=%d: %v", r, err)
				}
				return
			}
			if next.TimeStep <= 0 || next.TimeStep >= cur.TimeStep {
				t.Fatalf("time step %g -> %g at R=%d", cur.TimeStep, next.TimeStep, r)
			}
			if next.SubStepMultiplier < cur.SubStepMultiplier {
				t.Fatalf("sub-step multiplier decreased %d -> %d", cur.SubStepMultiplier, next.SubStepMultiplier)
			}
			if next.Damping < cur.Damping || next.Damping > 1 {
				t.Fatalf("damping %g -> %g", cur.Damping, next.Damping)
			}
			cur = next
		}
	})
}
