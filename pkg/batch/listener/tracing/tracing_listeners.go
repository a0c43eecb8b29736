package tracing

import (
	"context"
	"sync"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
)

// TracingListener turns each simulation attempt into a span and records the submissions issued while
// an attempt is open as events of that span.
type TracingListener struct {
	tracer metrics.Tracer

	mu     sync.Mutex
	open   map[string]func()
	active context.Context
}

// NewTracingListener creates a TracingListener.
func NewTracingListener(tracer metrics.Tracer) *TracingListener {
	return &TracingListener{tracer: tracer, open: make(map[string]func())}
}

func (l *TracingListener) BeforeAttempt(ctx context.Context, record *model.AttemptRecord) {
	spanCtx, end := l.tracer.StartAttemptSpan(ctx, record)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open[record.ID] = end
	l.active = spanCtx
}

func (l *TracingListener) AfterAttempt(ctx context.Context, record *model.AttemptRecord, result model.RunResult) {
	l.mu.Lock()
	end, ok := l.open[record.ID]
	delete(l.open, record.ID)
	l.mu.Unlock()
	if !ok {
		return
	}
	if l.active != nil {
		l.tracer.RecordEvent(l.active, "classified", map[string]interface{}{
			"outcome":           record.Outcome.String(),
			"main_loop_entered": result.MainLoopEntered,
			"transient_fault":   result.TransientFault,
			"detail":            result.Detail,
		})
	}
	end()
}

func (l *TracingListener) OnSubmit(ctx context.Context, kind string, req port.JobRequest, jobID string, err error) {
	l.mu.Lock()
	spanCtx := l.active
	l.mu.Unlock()
	if spanCtx == nil {
		spanCtx = ctx
	}
	l.tracer.RecordEvent(spanCtx, "submit", map[string]interface{}{
		"kind":   kind,
		"name":   req.Name,
		"job_id": jobID,
	})
	if err != nil {
		l.tracer.RecordError(spanCtx, kind, err)
	}
}

var (
	_ port.AttemptListener    = (*TracingListener)(nil)
	_ port.SubmissionListener = (*TracingListener)(nil)
)
