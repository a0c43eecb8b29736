package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module contributes the metrics listeners to the listener groups.
// The MetricRecorder itself comes from core/metrics or infrastructure/metrics.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewMetricsAttemptListener, fx.As(new(port.AttemptListener)), fx.ResultTags(`group:"attempt_listeners"`))),
	fx.Provide(fx.Annotate(NewMetricsSubmissionListener, fx.As(new(port.SubmissionListener)), fx.ResultTags(`group:"submission_listeners"`))),
)
