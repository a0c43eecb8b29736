// Package filesystem persists orchestrator state as files under the experiment's state directory,
// where every batch allocation on the shared file system can see it.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

const moduleName = "restart-counter"

// RestartCounterFileStore keeps one JSON document per step in <state>/restarts/<step>.json.
type RestartCounterFileStore struct {
	dir string
	now func() time.Time
}

// NewRestartCounterFileStore creates a store below cfg's state directory.
func NewRestartCounterFileStore(cfg *config.Config) *RestartCounterFileStore {
	return &RestartCounterFileStore{
		dir: filepath.Join(cfg.StateDir(), "restarts"),
		now: time.Now,
	}
}

func (s *RestartCounterFileStore) path(stepID string) string {
	return filepath.Join(s.dir, stepID+".json")
}

// Load implements repository.RestartCounterStore.
func (s *RestartCounterFileStore) Load(ctx context.Context, stepID string) (model.RestartAttempt, error) {
	attempt := model.RestartAttempt{StepID: stepID}
	data, err := os.ReadFile(s.path(stepID))
	if errors.Is(err, os.ErrNotExist) {
		return attempt, nil
	}
	if err != nil {
		return attempt, exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to read restart counter of %s", stepID, err)
	}
	if err := json.Unmarshal(data, &attempt); err != nil {
		return attempt, exception.ConfigErrorf(moduleName, "restart counter %s is corrupt", s.path(stepID), err)
	}
	attempt.StepID = stepID
	return attempt, nil
}

// Save implements repository.RestartCounterStore. The document is replaced atomically.
func (s *RestartCounterFileStore) Save(ctx context.Context, attempt model.RestartAttempt) error {
	if attempt.StepID == "" {
		return exception.ConfigErrorf(moduleName, "restart counter without step id")
	}
	attempt.UpdatedAt = s.now().UTC()
	data, err := json.MarshalIndent(attempt, "", "  ")
	if err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to encode restart counter of %s", attempt.StepID, err)
	}
	if err := writeAtomic(s.path(attempt.StepID), append(data, '\n')); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to save restart counter of %s", attempt.StepID, err)
	}
	logger.Debugf("Restart counter of %s saved: instability=%d transient=%d", attempt.StepID, attempt.Instability, attempt.Transient)
	return nil
}

// Reset implements repository.RestartCounterStore.
func (s *RestartCounterFileStore) Reset(ctx context.Context, stepID string) error {
	err := os.Remove(s.path(stepID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "failed to reset restart counter of %s", stepID, err)
	}
	logger.Infof("Restart counter of %s reset.", stepID)
	return nil
}

func writeAtomic(path string, data []byte) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ repository.RestartCounterStore = (*RestartCounterFileStore)(nil)
