package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// SaveAttempt inserts or replaces a record by ID.
func (r *InMemoryRepository) SaveAttempt(ctx context.Context, record *model.AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy to prevent external modification of internal state.
	cloned := *record
	if _, ok := r.attempts[record.ID]; !ok {
		r.order = append(r.order, record.ID)
	}
	r.attempts[record.ID] = &cloned
	return nil
}

// FindAttemptsByStep returns the attempts of one step, oldest first.
func (r *InMemoryRepository) FindAttemptsByStep(ctx context.Context, experiment, stepID string) ([]*model.AttemptRecord, error) {
	return r.find(func(a *model.AttemptRecord) bool {
		return a.Experiment == experiment && a.StepID == stepID
	}), nil
}

// FindAll returns every attempt of the experiment, oldest first.
func (r *InMemoryRepository) FindAll(ctx context.Context, experiment string) ([]*model.AttemptRecord, error) {
	return r.find(func(a *model.AttemptRecord) bool { return a.Experiment == experiment }), nil
}

func (r *InMemoryRepository) find(match func(*model.AttemptRecord) bool) []*model.AttemptRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.AttemptRecord
	for _, id := range r.order {
		if a := r.attempts[id]; match(a) {
			cloned := *a
			out = append(out, &cloned)
		}
	}
	// Stable so that records sharing a start time keep their insertion order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
