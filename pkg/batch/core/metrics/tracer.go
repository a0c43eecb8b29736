package metrics

import (
	"context"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// It lets a tracing backend such as OpenTelemetry follow a step across the allocations that
// preprocess, simulate and chain it.
type Tracer interface {
	// StartAttemptSpan starts a Span for a simulation attempt.
	//
	// ctx: The parent context.
	// record: The attempt to be traced.
	//
	// Returns: A context with the new Span set, and a function ending the Span with the final state of record.
	StartAttemptSpan(ctx context.Context, record *model.AttemptRecord) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// ctx: The context with the current Span.
	// module: The component where the error occurred (e.g., "recovery", "chain").
	// err: The error to record.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// ctx: The context with the current Span.
	// name: The name of the event (e.g., "submit", "restart").
	// attributes: Additional attributes to associate with the event.
	//             Example: `map[string]interface{}{"kind": "simulation", "job_id": "4711"}`
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})

	// Shutdown flushes pending spans and releases the exporter.
	Shutdown(ctx context.Context) error
}
