package postprocess

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "postprocess"

// Submission kinds reported to SubmissionListeners.
const (
	KindArchive = "archive"
	KindAverage = "average"
)

// Exporter writes the attempt ledger to its report destination.
type Exporter interface {
	Export(ctx context.Context) (string, error)
}

// Dispatch is one submitted post-processing job.
type Dispatch struct {
	Kind  string
	Tag   string
	Final bool
	JobID string
}

// Dispatcher is the PostprocessingDispatcher.
type Dispatcher struct {
	cfg       *config.Config
	submitter port.JobSubmitter
	exporter  Exporter
	listeners []port.SubmissionListener
}

// NewDispatcher creates a Dispatcher. exporter may be nil.
func NewDispatcher(cfg *config.Config, submitter port.JobSubmitter, exporter Exporter, listeners ...port.SubmissionListener) *Dispatcher {
	return &Dispatcher{cfg: cfg, submitter: submitter, exporter: exporter, listeners: listeners}
}

// Dispatch submits the archive and average jobs whose aggregation unit ends at the boundary between
// current and next. An empty next is the final dispatch: both jobs fire and the ledger is exported.
// Failures of individual jobs are aggregated.
func (d *Dispatcher) Dispatch(ctx context.Context, current, next model.Step) ([]Dispatch, error) {
	pp := d.cfg.Wrfcycle.Postprocess
	scripts := d.cfg.Wrfcycle.Scheduler.Scripts
	final := !current.IsZero() && next.IsZero()

	var out []Dispatch
	var errs error
	for _, job := range []struct{ kind, interval, script string }{
		{KindArchive, pp.ArchiveInterval, scripts.Archive},
		{KindAverage, pp.AverageInterval, scripts.Average},
	} {
		if job.script == "" {
			continue
		}
		tag := CheckInterval(job.interval, current.ID, next.ID)
		if tag == "" {
			continue
		}
		jobID, err := d.submit(ctx, job.kind, job.script, tag, current, final)
		if err != nil {
			errs = exception.Append(errs, err)
			continue
		}
		out = append(out, Dispatch{Kind: job.kind, Tag: tag, Final: final, JobID: jobID})
	}

	if final && pp.Report.Enabled && d.exporter != nil {
		dest, err := d.exporter.Export(ctx)
		if err != nil {
			errs = exception.Append(errs, err)
		} else {
			logger.Infof("Attempt ledger exported to %s.", dest)
		}
	}
	return out, errs
}

func (d *Dispatcher) submit(ctx context.Context, kind, script, tag string, current model.Step, final bool) (string, error) {
	logDir := filepath.Join(d.cfg.StateDir(), "postprocess")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot create %s", logDir, err)
	}
	name := kind + "-" + tag
	req := port.JobRequest{
		Name:    name,
		Script:  d.cfg.ExperimentPath(script),
		Args:    []string{kind, tag},
		WorkDir: d.cfg.ExperimentPath("."),
		Env: map[string]string{
			"WRFCYCLE_STEP":   current.ID,
			"WRFCYCLE_TAG":    tag,
			"WRFCYCLE_FINAL":  strconv.FormatBool(final),
			"WRFCYCLE_INIDIR": d.cfg.Wrfcycle.Experiment.IniDir,
		},
		Output:    filepath.Join(logDir, name+".out"),
		ExtraArgs: d.cfg.Wrfcycle.Scheduler.SubmitArgs,
	}
	jobID, err := d.submitter.Submit(ctx, req)
	for _, l := range d.listeners {
		l.OnSubmit(ctx, kind, req, jobID, err)
	}
	if err != nil {
		return "", err
	}
	logger.Infof("Submitted %s job %s for %s (final=%t).", kind, jobID, tag, final)
	return jobID, nil
}
