package model

import (
	"time"

	"github.com/google/uuid"
)

// RestartAttempt is the durable per-step restart counter. It is only incremented by crash recovery
// and only reset by an operator.
type RestartAttempt struct {
	StepID string `json:"step"`
	// Instability counts numerical-instability retries (R).
	Instability int `json:"instability"`
	// Transient counts transient-fault retries.
	Transient int       `json:"transient"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total returns the number of retries of any kind.
func (r RestartAttempt) Total() int {
	return r.Instability + r.Transient
}

// AttemptRecord is one ledger row describing a finished simulation attempt.
type AttemptRecord struct {
	ID         string
	Experiment string
	StepID     string
	// Attempt is the instability counter R the attempt ran with.
	Attempt    int
	Transient  int
	Outcome    Outcome
	TimeStep   float64
	SubStep    int
	Damping    float64
	StartedAt  time.Time
	FinishedAt time.Time
	Message    string
}

// NewAttemptRecord creates an AttemptRecord with a fresh identifier.
func NewAttemptRecord(experiment, stepID string, attempt RestartAttempt, stability StabilityConfig, startedAt time.Time) *AttemptRecord {
	return &AttemptRecord{
		ID:         uuid.NewString(),
		Experiment: experiment,
		StepID:     stepID,
		Attempt:    attempt.Instability,
		Transient:  attempt.Transient,
		TimeStep:   stability.TimeStep,
		SubStep:    stability.SubStepMultiplier,
		Damping:    stability.Damping,
		StartedAt:  startedAt,
	}
}
