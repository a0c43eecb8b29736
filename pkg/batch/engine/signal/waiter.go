package signal

import (
	"context"
	"strings"
	"time"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// PollWaiter polls a CompletionChecker at a fixed interval.
type PollWaiter struct {
	checker  port.CompletionChecker
	interval time.Duration
	timeout  time.Duration
}

// NewPollWaiter creates a PollWaiter. A zero timeout waits until ctx ends.
func NewPollWaiter(checker port.CompletionChecker, interval, timeout time.Duration) *PollWaiter {
	return &PollWaiter{checker: checker, interval: interval, timeout: timeout}
}

// Wait polls until the checker reports Success or Failure.
func (w *PollWaiter) Wait(ctx context.Context, workdir string) (model.CompletionState, error) {
	ctx, cancel := withOptionalTimeout(ctx, w.timeout)
	defer cancel()

	logger.Infof("Waiting for preprocessing in %s (polling every %v).", workdir, w.interval)
	return poll(ctx, w.interval, workdir, func() (model.CompletionState, bool, error) {
		state, err := w.checker.IsComplete(workdir)
		if err != nil {
			return state, false, err
		}
		return state, state.IsTerminal(), nil
	})
}

// NativeWaiter follows the recorded batch job of the preprocessing run and evaluates the
// completion signal once the batch system reports it terminated. Without a recorded job it
// behaves like PollWaiter.
type NativeWaiter struct {
	checker   port.CompletionChecker
	submitter port.JobSubmitter
	jobIDFile string
	interval  time.Duration
	grace     time.Duration
	timeout   time.Duration
}

// NewNativeWaiter creates a NativeWaiter.
func NewNativeWaiter(checker port.CompletionChecker, submitter port.JobSubmitter, jobIDFile string, interval, grace, timeout time.Duration) *NativeWaiter {
	return &NativeWaiter{
		checker:   checker,
		submitter: submitter,
		jobIDFile: jobIDFile,
		interval:  interval,
		grace:     grace,
		timeout:   timeout,
	}
}

// Wait blocks until the recorded job terminated and the completion signal is decided.
// A job that terminated without leaving a sentinel within the grace period is a Failure.
func (w *NativeWaiter) Wait(ctx context.Context, workdir string) (model.CompletionState, error) {
	ctx, cancel := withOptionalTimeout(ctx, w.timeout)
	defer cancel()

	jobID, err := ReadJobID(workdir, w.jobIDFile)
	if err != nil {
		return model.CompletionPending, err
	}
	if jobID == "" {
		logger.Warnf("No preprocessing job recorded in %s; falling back to signal polling.", workdir)
		return NewPollWaiter(w.checker, w.interval, 0).Wait(ctx, workdir)
	}

	logger.Infof("Waiting for %s job %s (%s).", w.submitter.Name(), jobID, workdir)
	var terminatedAt time.Time
	return poll(ctx, w.interval, workdir, func() (model.CompletionState, bool, error) {
		if terminatedAt.IsZero() {
			js, err := w.submitter.Status(ctx, jobID)
			if err != nil {
				logger.Warnf("Status of job %s unavailable, retrying: %v", jobID, err)
				return model.CompletionPending, false, nil
			}
			if !js.IsTerminal() {
				return model.CompletionPending, false, nil
			}
			logger.Infof("Job %s reached %s.", jobID, js)
			terminatedAt = time.Now()
		}
		state, err := w.checker.IsComplete(workdir)
		if err != nil {
			return state, false, err
		}
		if state.IsTerminal() {
			return state, true, nil
		}
		if time.Since(terminatedAt) >= w.grace {
			logger.Errorf("Job %s terminated without a completion sentinel in %s.", jobID, workdir)
			return model.CompletionFailure, true, nil
		}
		return state, false, nil
	})
}

func poll(ctx context.Context, interval time.Duration, workdir string, check func() (model.CompletionState, bool, error)) (model.CompletionState, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		state, done, err := check()
		if err != nil {
			return state, err
		}
		if done {
			logger.Infof("Preprocessing in %s is %s after %d checks.", workdir, state, attempts)
			return state, nil
		}
		logger.Debugf("Preprocessing in %s still %s (check #%d).", workdir, state, attempts)

		select {
		case <-ctx.Done():
			return model.CompletionPending, exception.NewCycleErrorf(moduleName, exception.KindPreprocessing,
				"wait for %s interrupted after %d checks", workdir, attempts, ctx.Err())
		case <-ticker.C:
		}
	}
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// NewWaiter selects the Waiter implementation named by scheduler.dependency_mode.
func NewWaiter(cfg *config.Config, checker port.CompletionChecker, submitter port.JobSubmitter) port.Waiter {
	sc := cfg.Wrfcycle.Scheduler
	if strings.EqualFold(sc.DependencyMode, config.DependencyModeNative) && submitter != nil {
		return NewNativeWaiter(checker, submitter, cfg.Wrfcycle.Preprocess.JobIDFile, sc.PollInterval(), sc.GracePeriod(), sc.WaitTimeout())
	}
	return NewPollWaiter(checker, sc.PollInterval(), sc.WaitTimeout())
}

var (
	_ port.Waiter = (*PollWaiter)(nil)
	_ port.Waiter = (*NativeWaiter)(nil)
)
