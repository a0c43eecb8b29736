package metrics

import (
	"context"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
)

// --- Attempt Listener ---

type MetricsAttemptListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsAttemptListener(recorder metrics.MetricRecorder) *MetricsAttemptListener {
	return &MetricsAttemptListener{recorder: recorder}
}

func (l *MetricsAttemptListener) BeforeAttempt(ctx context.Context, record *model.AttemptRecord) {
	l.recorder.RecordAttemptStart(ctx, record)
}

func (l *MetricsAttemptListener) AfterAttempt(ctx context.Context, record *model.AttemptRecord, result model.RunResult) {
	l.recorder.RecordAttemptEnd(ctx, record)
}

var _ port.AttemptListener = (*MetricsAttemptListener)(nil)

// --- Submission Listener ---

type MetricsSubmissionListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsSubmissionListener(recorder metrics.MetricRecorder) *MetricsSubmissionListener {
	return &MetricsSubmissionListener{recorder: recorder}
}

func (l *MetricsSubmissionListener) OnSubmit(ctx context.Context, kind string, req port.JobRequest, jobID string, err error) {
	l.recorder.RecordSubmission(ctx, kind, err)
}

var _ port.SubmissionListener = (*MetricsSubmissionListener)(nil)
