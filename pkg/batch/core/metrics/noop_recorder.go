package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordAttemptStart(ctx context.Context, record *model.AttemptRecord) {}

func (r *NoOpMetricRecorder) RecordAttemptEnd(ctx context.Context, record *model.AttemptRecord) {}

func (r *NoOpMetricRecorder) RecordRestart(ctx context.Context, stepID string, kind string) {}

func (r *NoOpMetricRecorder) RecordSubmission(ctx context.Context, kind string, err error) {}

func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration) {}

func (r *NoOpMetricRecorder) Flush() error { return nil }

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartAttemptSpan(ctx context.Context, record *model.AttemptRecord) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

func (t *NoOpTracer) Shutdown(ctx context.Context) error { return nil }

var _ Tracer = (*NoOpTracer)(nil)
