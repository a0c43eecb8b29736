package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module provides the TracingListener in both listener groups.
// Providing a concrete Tracer is delegated to core/metrics or infrastructure/metrics.
var Module = fx.Options(
	fx.Provide(NewTracingListener),
	fx.Provide(fx.Annotate(func(l *TracingListener) port.AttemptListener { return l }, fx.ResultTags(`group:"attempt_listeners"`))),
	fx.Provide(fx.Annotate(func(l *TracingListener) port.SubmissionListener { return l }, fx.ResultTags(`group:"submission_listeners"`))),
)
