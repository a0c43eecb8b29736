package model

import "fmt"

// StabilityConfig is the subset of the simulation configuration adjusted by crash recovery.
type StabilityConfig struct {
	// TimeStep is the principal time increment in seconds.
	TimeStep float64
	// SubStepMultiplier governs the number of acoustic sub-steps per time step.
	SubStepMultiplier int
	// Damping is the off-centering coefficient in [0,1].
	Damping float64
	// CanopyDisabled is set once the surface-canopy physics has been switched off.
	CanopyDisabled bool
}

func (s StabilityConfig) String() string {
	return fmt.Sprintf("time_step=%g sub_step=%d damping=%g canopy_disabled=%t", s.TimeStep, s.SubStepMultiplier, s.Damping, s.CanopyDisabled)
}
