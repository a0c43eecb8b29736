package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// FakeCommandRunner records commands and delegates their effect to Handler.
type FakeCommandRunner struct {
	mu sync.Mutex

	Calls   []port.Command
	Started []port.Command
	// Handler simulates the command; it may write to cmd.Stdout or create files in cmd.Dir.
	// A nil Handler succeeds with exit code 0.
	Handler func(cmd port.Command) (int, error)
}

// Run records cmd and runs Handler.
func (f *FakeCommandRunner) Run(ctx context.Context, cmd port.Command) (int, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return 0, nil
	}
	return h(cmd)
}

// Start records cmd without running it and returns a fixed pid.
func (f *FakeCommandRunner) Start(ctx context.Context, cmd port.Command) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Started = append(f.Started, cmd)
	return 4242, nil
}

// Paths returns the executable of every Run call in order.
func (f *FakeCommandRunner) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.Path)
	}
	return out
}

var _ port.CommandRunner = (*FakeCommandRunner)(nil)
