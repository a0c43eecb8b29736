package inmemory

import (
	"context"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// Load returns the counter of stepID, or a zero counter.
func (r *InMemoryRepository) Load(ctx context.Context, stepID string) (model.RestartAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.counters[stepID]; ok {
		return c, nil
	}
	return model.RestartAttempt{StepID: stepID}, nil
}

// Save stores a copy of the counter.
func (r *InMemoryRepository) Save(ctx context.Context, attempt model.RestartAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[attempt.StepID] = attempt
	return nil
}

// Reset removes the counter of stepID.
func (r *InMemoryRepository) Reset(ctx context.Context, stepID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counters, stepID)
	return nil
}
