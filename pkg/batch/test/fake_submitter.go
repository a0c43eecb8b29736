package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// FakeSubmitter records submissions and answers Status from scripted state sequences.
type FakeSubmitter struct {
	mu sync.Mutex

	// Requests holds every accepted submission in order.
	Requests []port.JobRequest
	// States scripts successive Status answers per job ID; the last state repeats.
	States map[string][]port.JobState
	// SubmitErr, when set, is returned by every Submit call.
	SubmitErr error
	// OnSubmit is called with each accepted request and its job ID.
	OnSubmit func(req port.JobRequest, jobID string)

	nextID int
}

// NewFakeSubmitter creates a FakeSubmitter whose job IDs start at 1001.
func NewFakeSubmitter() *FakeSubmitter {
	return &FakeSubmitter{States: make(map[string][]port.JobState), nextID: 1000}
}

// Submit records req and returns the next job ID.
func (f *FakeSubmitter) Submit(ctx context.Context, req port.JobRequest) (string, error) {
	f.mu.Lock()
	if f.SubmitErr != nil {
		f.mu.Unlock()
		return "", f.SubmitErr
	}
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	f.Requests = append(f.Requests, req)
	hook := f.OnSubmit
	f.mu.Unlock()

	if hook != nil {
		hook(req, id)
	}
	return id, nil
}

// Status pops the next scripted state of jobID. Unscripted jobs are COMPLETED.
func (f *FakeSubmitter) Status(ctx context.Context, jobID string) (port.JobState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := f.States[jobID]
	if len(seq) == 0 {
		return port.JobStateCompleted, nil
	}
	state := seq[0]
	if len(seq) > 1 {
		f.States[jobID] = seq[1:]
	}
	return state, nil
}

// Name returns "fake".
func (f *FakeSubmitter) Name() string { return "fake" }

// Submitted returns the recorded requests with the given job name.
func (f *FakeSubmitter) Submitted(name string) []port.JobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []port.JobRequest
	for _, r := range f.Requests {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Names returns the job names of all recorded requests in order.
func (f *FakeSubmitter) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Requests))
	for _, r := range f.Requests {
		out = append(out, r.Name)
	}
	return out
}

// MockJobSubmitter is a testify mock of port.JobSubmitter.
type MockJobSubmitter struct {
	mock.Mock
}

// Submit mocks port.JobSubmitter.Submit.
func (m *MockJobSubmitter) Submit(ctx context.Context, req port.JobRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Status mocks port.JobSubmitter.Status.
func (m *MockJobSubmitter) Status(ctx context.Context, jobID string) (port.JobState, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(port.JobState), args.Error(1)
}

// Name mocks port.JobSubmitter.Name.
func (m *MockJobSubmitter) Name() string {
	return m.Called().String(0)
}

var (
	_ port.JobSubmitter = (*FakeSubmitter)(nil)
	_ port.JobSubmitter = (*MockJobSubmitter)(nil)
)
