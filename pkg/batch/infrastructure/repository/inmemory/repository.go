// Package inmemory provides in-memory implementations of the orchestrator repositories.
// State lives in maps within one process, which makes it suitable for tests and for dry runs where
// nothing has to survive the allocation.
package inmemory

import (
	"sync"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
)

// InMemoryRepository holds restart counters and attempt records in memory.
type InMemoryRepository struct {
	counters map[string]model.RestartAttempt
	attempts map[string]*model.AttemptRecord
	order    []string     // Attempt IDs in insertion order.
	mu       sync.RWMutex // Protects the maps.
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		counters: make(map[string]model.RestartAttempt),
		attempts: make(map[string]*model.AttemptRecord),
	}
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryRepository) Close() error {
	return nil
}

var (
	_ repository.RestartCounterStore = (*InMemoryRepository)(nil)
	_ repository.AttemptRepository   = (*InMemoryRepository)(nil)
)
