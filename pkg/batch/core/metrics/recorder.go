package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics of the cycling orchestrator.
//
// A batch allocation lives for one simulation attempt at most, so recorders accumulate in memory
// and Flush writes the result once at the end of the invocation.
type MetricRecorder interface {
	// RecordAttemptStart records the start of a simulation attempt and its time step.
	//
	// ctx: The context for the operation.
	// record: The attempt about to run.
	RecordAttemptStart(ctx context.Context, record *model.AttemptRecord)

	// RecordAttemptEnd records the outcome and duration of a finished simulation attempt.
	//
	// ctx: The context for the operation.
	// record: The finished attempt. Outcome and FinishedAt are set.
	RecordAttemptEnd(ctx context.Context, record *model.AttemptRecord)

	// RecordRestart records an automatic restart applied by crash recovery.
	//
	// ctx: The context for the operation.
	// stepID: The restarted step.
	// kind: The recovery branch ("instability" or "transient").
	RecordRestart(ctx context.Context, stepID string, kind string)

	// RecordSubmission records a batch job submission.
	//
	// ctx: The context for the operation.
	// kind: The submission kind (e.g., "preprocess", "simulation", "archive").
	// err: The submission error, nil on success.
	RecordSubmission(ctx context.Context, kind string, err error)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the operation (e.g., "preprocess_wait", "stage").
	// duration: The length of the duration to record.
	RecordDuration(ctx context.Context, name string, duration time.Duration)

	// Flush writes the collected metrics to their destination. Recorders without a destination return nil.
	Flush() error
}
