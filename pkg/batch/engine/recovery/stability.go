package recovery

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/namelist"
)

var (
	// ErrBudgetExceeded is returned once the restart counter passed the configured ceiling.
	ErrBudgetExceeded = errors.New("restart budget exceeded")
	// ErrCannotShrink is returned when the time step has no room left for another decrement.
	ErrCannotShrink = errors.New("cannot shrink further")
	// ErrUntrackedChange is returned when the time step differs from its initial value although no
	// restart was recorded for the step.
	ErrUntrackedChange = errors.New("parameters modified without a valid restart counter")
)

// Bands holds decrement bands ordered by descending MinTimeStep.
type Bands []config.DecrementBand

// NewBands copies and orders bands.
func NewBands(bands []config.DecrementBand) Bands {
	out := make(Bands, len(bands))
	copy(out, bands)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinTimeStep > out[j].MinTimeStep })
	return out
}

// Decrement returns the decrement of the first band whose lower bound timeStep reaches.
// A time step below every band uses the smallest band.
func (b Bands) Decrement(timeStep float64) float64 {
	for _, band := range b {
		if timeStep >= band.MinTimeStep {
			return band.Decrement
		}
	}
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1].Decrement
}

// Adjuster computes successive stability configurations for numerical-instability retries.
type Adjuster struct {
	cfg     config.RecoveryConfig
	bands   Bands
	initial float64
}

// NewAdjuster creates an Adjuster. initial is the time step the step's first attempt ran with.
func NewAdjuster(cfg config.RecoveryConfig, initial float64) *Adjuster {
	return &Adjuster{cfg: cfg, bands: NewBands(cfg.Bands), initial: initial}
}

// Next returns the configuration for the retry that follows a failure with restart counter r.
//
// The retry proceeds only if r does not exceed the ceiling and either the step was already retried and
// the time step still exceeds its decrement, or the time step is untouched. The first retry is therefore
// always allowed.
func (a *Adjuster) Next(r int, cur model.StabilityConfig) (model.StabilityConfig, error) {
	if r > a.cfg.MaxRestarts {
		return cur, fmt.Errorf("%w: R=%d > M=%d", ErrBudgetExceeded, r, a.cfg.MaxRestarts)
	}
	dec := a.bands.Decrement(cur.TimeStep)
	if !((r > 0 && cur.TimeStep > dec) || cur.TimeStep == a.initial) {
		if r == 0 {
			return cur, fmt.Errorf("%w: time_step %g differs from the initial %g but R=0", ErrUntrackedChange, cur.TimeStep, a.initial)
		}
		return cur, fmt.Errorf("%w: time_step %g does not exceed its decrement %g (R=%d)", ErrCannotShrink, cur.TimeStep, dec, r)
	}
	next := cur
	next.TimeStep = cur.TimeStep - dec
	if next.TimeStep <= 0 {
		return cur, fmt.Errorf("%w: time_step %g - %g leaves no positive step", ErrCannotShrink, cur.TimeStep, dec)
	}
	next.SubStepMultiplier = int(math.Round(float64(a.cfg.Enumerator*cur.SubStepMultiplier) / float64(a.cfg.Denominator)))
	if r <= 2 {
		next.Damping = roundCoefficient(1 - a.cfg.DampingFactor*(1-cur.Damping))
	} else {
		next.Damping = 1.0
		next.CanopyDisabled = true
	}
	return next, nil
}

// roundCoefficient keeps written coefficients free of binary representation noise.
func roundCoefficient(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// ReadStability reads the stability parameters from a simulation namelist.
func ReadStability(doc *namelist.Document, rc config.RecoveryConfig) (model.StabilityConfig, error) {
	var s model.StabilityConfig
	var err error
	if s.TimeStep, err = doc.Float(rc.TimeStepKey.Section, rc.TimeStepKey.Key); err != nil {
		return s, err
	}
	if s.SubStepMultiplier, err = doc.Int(rc.SubStepKey.Section, rc.SubStepKey.Key); err != nil {
		return s, err
	}
	if s.Damping, err = doc.Float(rc.DampingKey.Section, rc.DampingKey.Key); err != nil {
		return s, err
	}
	if rc.CanopyKey.Key != "" && doc.Has(rc.CanopyKey.Section, rc.CanopyKey.Key) {
		canopy, err := doc.Int(rc.CanopyKey.Section, rc.CanopyKey.Key)
		if err != nil {
			return s, err
		}
		s.CanopyDisabled = canopy == 0
	}
	return s, nil
}

// WriteStability writes the parameters that differ between prev and next, each with the audit comment.
// Per-domain keys are written to every domain column.
func WriteStability(doc *namelist.Document, rc config.RecoveryConfig, prev, next model.StabilityConfig, audit string) error {
	if next.TimeStep != prev.TimeStep {
		if err := doc.Set(rc.TimeStepKey.Section, rc.TimeStepKey.Key, namelist.FormatFloat(next.TimeStep), audit); err != nil {
			return err
		}
	}
	if next.SubStepMultiplier != prev.SubStepMultiplier {
		if err := doc.SetAll(rc.SubStepKey.Section, rc.SubStepKey.Key, strconv.Itoa(next.SubStepMultiplier), 1, audit); err != nil {
			return err
		}
	}
	if next.Damping != prev.Damping {
		if err := doc.SetAll(rc.DampingKey.Section, rc.DampingKey.Key, namelist.FormatFloat(next.Damping), 1, audit); err != nil {
			return err
		}
	}
	if next.CanopyDisabled && !prev.CanopyDisabled && rc.CanopyKey.Key != "" {
		if err := doc.SetAll(rc.CanopyKey.Section, rc.CanopyKey.Key, "0", 1, audit); err != nil {
			return err
		}
	}
	return nil
}
