// Package backup copies the static inputs of an experiment (terrain output, namelist templates and
// configured extra files) to object storage when a cycle starts from scratch.
package backup

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "backup"

// StaticBackup uploads static inputs through the storage connection named by backup.storage_ref.
type StaticBackup struct {
	cfg     *config.Config
	storage storage.StorageConnectionResolver
}

// NewStaticBackup creates a StaticBackup.
func NewStaticBackup(cfg *config.Config, resolver storage.StorageConnectionResolver) *StaticBackup {
	return &StaticBackup{cfg: cfg, storage: resolver}
}

// Files returns the local files a backup would upload, sorted and without duplicates.
func (b *StaticBackup) Files() ([]string, error) {
	exp := b.cfg.Wrfcycle.Experiment
	patterns := []string{
		filepath.Join(b.cfg.StaticDir(), exp.TerrainPrefix+".d*.nc"),
		b.cfg.ExperimentPath(exp.PreprocessNamelist),
		b.cfg.ExperimentPath(exp.SimulationNamelist),
		b.cfg.StepFilePath(),
	}
	for _, f := range b.cfg.Wrfcycle.Backup.Files {
		patterns = append(patterns, b.cfg.ExperimentPath(f))
	}

	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, exception.ConfigErrorf(moduleName, "invalid backup pattern %q", p, err)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Backup uploads the static inputs below <prefix>/<experiment>/static/. It does nothing when disabled.
func (b *StaticBackup) Backup(ctx context.Context, step model.Step) error {
	bc := b.cfg.Wrfcycle.Backup
	if !bc.Enabled {
		logger.Debugf("Static backup disabled, skipping for step %s.", step.ID)
		return nil
	}
	if bc.StorageRef == "" {
		return exception.ConfigErrorf(moduleName, "backup.storage_ref must be set when backup is enabled")
	}

	files, err := b.Files()
	if err != nil {
		return err
	}
	conn, err := b.storage.ResolveStorageConnection(ctx, bc.StorageRef)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to resolve storage '%s'", bc.StorageRef, err)
	}

	base := path.Join(bc.Prefix, b.cfg.ExperimentName(), "static")
	var errs error
	for _, f := range files {
		errs = exception.Append(errs, b.upload(ctx, conn, bc.Bucket, path.Join(base, filepath.Base(f)), f))
	}
	if errs != nil {
		return errs
	}
	logger.Infof("Backed up %d static input files of step %s to %s:%s", len(files), step.ID, bc.StorageRef, base)
	return nil
}

func (b *StaticBackup) upload(ctx context.Context, conn storage.StorageConnection, bucket, object, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to open %s", file, err)
	}
	defer f.Close()
	if err := conn.Upload(ctx, bucket, object, f, "application/octet-stream"); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to upload %s", file, err)
	}
	return nil
}
