package metrics

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/wrfcycle/pkg/batch/core/metrics"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "metrics"

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
// It uses a private registry so that the textfile it writes holds only orchestrator metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	textfile string

	attemptsTotal          *prometheus.CounterVec
	attemptDurationSeconds *prometheus.HistogramVec
	restartsTotal          *prometheus.CounterVec
	submissionsTotal       *prometheus.CounterVec
	timeStepSeconds        prometheus.Gauge
	operationSeconds       *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
// A relative textfile path is resolved against the experiment directory; an empty one disables Flush.
func NewPrometheusRecorder(cfg *config.Config) *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	textfile := cfg.Wrfcycle.Metrics.Textfile
	if textfile != "" {
		textfile = cfg.ExperimentPath(textfile)
	}

	r := &PrometheusRecorder{
		registry: registry,
		textfile: textfile,
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrfcycle_attempts_total",
			Help: "Total number of simulation attempts by outcome.",
		}, []string{"outcome"}),
		attemptDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wrfcycle_attempt_duration_seconds",
			Help:    "Wall-clock duration of simulation attempts.",
			Buckets: prometheus.ExponentialBuckets(60, 2, 10),
		}, []string{"outcome"}),
		restartsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrfcycle_restarts_total",
			Help: "Total number of automatic restarts by recovery branch.",
		}, []string{"kind"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wrfcycle_submissions_total",
			Help: "Total number of batch job submissions by kind and result.",
		}, []string{"kind", "result"}),
		timeStepSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wrfcycle_time_step_seconds",
			Help: "Time step of the most recent simulation attempt.",
		}),
		operationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wrfcycle_operation_duration_seconds",
			Help:    "Duration of orchestrator operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(r.attemptsTotal)
	registry.MustRegister(r.attemptDurationSeconds)
	registry.MustRegister(r.restartsTotal)
	registry.MustRegister(r.submissionsTotal)
	registry.MustRegister(r.timeStepSeconds)
	registry.MustRegister(r.operationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordAttemptStart sets the time step gauge.
func (r *PrometheusRecorder) RecordAttemptStart(ctx context.Context, record *model.AttemptRecord) {
	r.timeStepSeconds.Set(record.TimeStep)
	logger.Debugf("Metrics: attempt %d of step '%s' started with time step %g.", record.Attempt, record.StepID, record.TimeStep)
}

// RecordAttemptEnd counts the attempt by outcome and observes its duration.
func (r *PrometheusRecorder) RecordAttemptEnd(ctx context.Context, record *model.AttemptRecord) {
	outcome := record.Outcome.String()
	if outcome == "" {
		outcome = model.OutcomeUnknown.String()
	}
	r.attemptsTotal.WithLabelValues(outcome).Inc()
	if !record.FinishedAt.IsZero() && !record.StartedAt.IsZero() {
		r.attemptDurationSeconds.WithLabelValues(outcome).Observe(record.FinishedAt.Sub(record.StartedAt).Seconds())
	}
	logger.Debugf("Metrics: attempt %d of step '%s' ended with %s.", record.Attempt, record.StepID, outcome)
}

// RecordRestart counts an automatic restart.
func (r *PrometheusRecorder) RecordRestart(ctx context.Context, stepID string, kind string) {
	r.restartsTotal.WithLabelValues(kind).Inc()
}

// RecordSubmission counts a batch job submission.
func (r *PrometheusRecorder) RecordSubmission(ctx context.Context, kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.submissionsTotal.WithLabelValues(kind, result).Inc()
}

// RecordDuration observes the duration of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration) {
	r.operationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

// Flush writes the registry to the configured textfile.
func (r *PrometheusRecorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.textfile), 0o755); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create directory of %s", r.textfile, err)
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot write metrics to %s", r.textfile, err)
	}
	logger.Debugf("Metrics written to %s.", r.textfile)
	return nil
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
