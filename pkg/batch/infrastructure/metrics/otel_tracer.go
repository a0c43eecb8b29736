package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const instrumentationName = "github.com/tigerroll/wrfcycle"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer exporting over OTLP/HTTP to the configured endpoint.
// Without an endpoint spans are still created, so that trace IDs appear in logs, but never exported.
func NewOpenTelemetryTracer(ctx context.Context, cfg *config.Config) (*OpenTelemetryTracer, error) {
	tc := cfg.Wrfcycle.Tracing
	res := resource.NewSchemaless(
		attribute.String("service.name", "wrfcycle"),
		attribute.String("wrfcycle.experiment", cfg.ExperimentName()),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if tc.OTLPEndpoint != "" {
		exOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.OTLPEndpoint)}
		if tc.Insecure {
			exOpts = append(exOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exOpts...)
		if err != nil {
			return nil, exception.NewCycleErrorf(moduleName, exception.KindConfig, "cannot create OTLP exporter for %s", tc.OTLPEndpoint, err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Debugf("Tracing: exporting spans to %s.", tc.OTLPEndpoint)
	}
	return newOpenTelemetryTracer(sdktrace.NewTracerProvider(opts...)), nil
}

func newOpenTelemetryTracer(provider *sdktrace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{provider: provider, tracer: provider.Tracer(instrumentationName)}
}

// StartAttemptSpan starts a span for one simulation attempt. The returned function ends it with the
// outcome recorded on record at that time.
func (t *OpenTelemetryTracer) StartAttemptSpan(ctx context.Context, record *model.AttemptRecord) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "attempt "+record.StepID,
		trace.WithTimestamp(record.StartedAt),
		trace.WithAttributes(
			attribute.String("wrfcycle.attempt.id", record.ID),
			attribute.String("wrfcycle.step", record.StepID),
			attribute.Int("wrfcycle.attempt.instability", record.Attempt),
			attribute.Int("wrfcycle.attempt.transient", record.Transient),
			attribute.Float64("wrfcycle.time_step", record.TimeStep),
			attribute.Int("wrfcycle.sub_step", record.SubStep),
			attribute.Float64("wrfcycle.damping", record.Damping),
		))
	return ctx, func() {
		span.SetAttributes(attribute.String("wrfcycle.outcome", record.Outcome.String()))
		if record.Outcome == model.OutcomeSuccess {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, record.Message)
		}
		var opts []trace.SpanEndOption
		if !record.FinishedAt.IsZero() {
			opts = append(opts, trace.WithTimestamp(record.FinishedAt))
		}
		span.End(opts...)
	}
}

// RecordError records err on the span carried by ctx.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(
		attribute.String("wrfcycle.module", module),
		attribute.String("wrfcycle.error.kind", string(exception.KindOf(err))),
	))
	span.SetStatus(codes.Error, exception.ExtractErrorMessage(err))
}

// RecordEvent adds an event to the span carried by ctx.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// Shutdown flushes and stops the tracer provider.
func (t *OpenTelemetryTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

func toAttribute(k string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(k, val)
	case int:
		return attribute.Int(k, val)
	case int64:
		return attribute.Int64(k, val)
	case float64:
		return attribute.Float64(k, val)
	case bool:
		return attribute.Bool(k, val)
	case error:
		return attribute.String(k, val.Error())
	default:
		return attribute.String(k, fmt.Sprint(val))
	}
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
