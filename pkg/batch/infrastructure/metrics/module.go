package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	metrics "github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// Module is an Fx module that provides PrometheusRecorder and OpenTelemetryTracer.
// Metrics are flushed and spans exported when the application stops.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewPrometheusRecorder,
		fx.As(new(metrics.MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		func(lc fx.Lifecycle, cfg *config.Config) (*OpenTelemetryTracer, error) {
			t, err := NewOpenTelemetryTracer(context.Background(), cfg)
			if err != nil {
				return nil, err
			}
			lc.Append(fx.Hook{OnStop: t.Shutdown})
			return t, nil
		},
		fx.As(new(metrics.Tracer)),
	)),
	fx.Invoke(registerFlush),
)

func registerFlush(lc fx.Lifecycle, recorder metrics.MetricRecorder) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := recorder.Flush(); err != nil {
				logger.Warnf("Metrics could not be written: %v", err)
			}
			return nil
		},
	})
}
