// Package repository defines persistence contracts for orchestrator state that must survive
// across batch allocations.
package repository

import (
	"context"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// RestartCounterStore persists the per-step RestartAttempt counter.
// Implementations must make a Save visible to every later allocation reading the same experiment tree.
type RestartCounterStore interface {
	// Load returns the counter of stepID; a step never retried yields a zero counter, not an error.
	Load(ctx context.Context, stepID string) (model.RestartAttempt, error)
	// Save persists the counter.
	Save(ctx context.Context, attempt model.RestartAttempt) error
	// Reset clears the counter of stepID (operator intervention).
	Reset(ctx context.Context, stepID string) error
}

// AttemptRepository is the ledger of simulation attempts.
type AttemptRepository interface {
	// SaveAttempt inserts or updates a record by ID.
	SaveAttempt(ctx context.Context, record *model.AttemptRecord) error
	// FindAttemptsByStep returns the attempts of one step, oldest first.
	FindAttemptsByStep(ctx context.Context, experiment, stepID string) ([]*model.AttemptRecord, error)
	// FindAll returns every attempt of the experiment, oldest first.
	FindAll(ctx context.Context, experiment string) ([]*model.AttemptRecord, error)
}
