// Package report exports the attempt ledger as a Parquet table to object storage.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "report"

// AttemptRow is the Parquet schema of one ledger row.
type AttemptRow struct {
	ID         string  `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Experiment string  `parquet:"name=experiment, type=BYTE_ARRAY, convertedtype=UTF8"`
	StepID     string  `parquet:"name=step_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attempt    int32   `parquet:"name=attempt, type=INT32"`
	Transient  int32   `parquet:"name=transient, type=INT32"`
	Outcome    string  `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimeStep   float64 `parquet:"name=time_step, type=DOUBLE"`
	SubStep    int32   `parquet:"name=sub_step, type=INT32"`
	Damping    float64 `parquet:"name=damping, type=DOUBLE"`
	StartedAt  int64   `parquet:"name=started_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	FinishedAt int64   `parquet:"name=finished_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Message    string  `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(r *model.AttemptRecord) AttemptRow {
	row := AttemptRow{
		ID:         r.ID,
		Experiment: r.Experiment,
		StepID:     r.StepID,
		Attempt:    int32(r.Attempt),
		Transient:  int32(r.Transient),
		Outcome:    string(r.Outcome),
		TimeStep:   r.TimeStep,
		SubStep:    int32(r.SubStep),
		Damping:    r.Damping,
		StartedAt:  r.StartedAt.UnixMilli(),
		Message:    r.Message,
	}
	if !r.FinishedAt.IsZero() {
		row.FinishedAt = r.FinishedAt.UnixMilli()
	}
	return row
}

// EncodeAttempts writes records to w as one snappy-compressed Parquet file.
func EncodeAttempts(w io.Writer, records []*model.AttemptRecord) (err error) {
	pw, err := writer.NewParquetWriterFromWriter(w, new(AttemptRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range records {
		if err := pw.Write(toRow(r)); err != nil {
			return fmt.Errorf("failed to write attempt %s: %w", r.ID, err)
		}
	}
	// WriteStop panics on some malformed schemas instead of returning an error.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parquet writer panicked during WriteStop: %v", rec)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// Exporter uploads the experiment's attempt ledger to the storage connection named by report.storage_ref.
type Exporter struct {
	cfg      *config.Config
	attempts repository.AttemptRepository
	storage  storage.StorageConnectionResolver
	now      func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(cfg *config.Config, attempts repository.AttemptRepository, resolver storage.StorageConnectionResolver) *Exporter {
	return &Exporter{cfg: cfg, attempts: attempts, storage: resolver, now: time.Now}
}

// Export writes every attempt of the experiment and returns the uploaded object name.
// An empty ledger uploads nothing and returns "".
func (e *Exporter) Export(ctx context.Context) (string, error) {
	rc := e.cfg.Wrfcycle.Postprocess.Report
	if rc.StorageRef == "" {
		return "", exception.ConfigErrorf(moduleName, "postprocess.report.storage_ref must be set to export the ledger")
	}
	experiment := e.cfg.ExperimentName()
	records, err := e.attempts.FindAll(ctx, experiment)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		logger.Infof("Attempt ledger of %s is empty, nothing to export.", experiment)
		return "", nil
	}

	var buf bytes.Buffer
	if err := EncodeAttempts(&buf, records); err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to encode attempt ledger", err)
	}

	conn, err := e.storage.ResolveStorageConnection(ctx, rc.StorageRef)
	if err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to resolve storage '%s'", rc.StorageRef, err)
	}
	object := path.Join(rc.Prefix, experiment, fmt.Sprintf("attempts_%s.parquet", e.now().UTC().Format("20060102T150405Z")))
	size := buf.Len()
	if err := conn.Upload(ctx, rc.Bucket, object, &buf, "application/octet-stream"); err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to upload %s", object, err)
	}
	logger.Infof("Exported %d attempts (%d bytes) to %s:%s", len(records), size, rc.StorageRef, object)
	return object, nil
}
