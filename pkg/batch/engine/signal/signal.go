// Package signal decides whether a preprocessing job has finished and waits for it.
//
// The sentinel is an end-of-job artifact: the preprocessing wrapper writes it when the job ends,
// whatever the outcome. Success therefore requires the sentinel and the success marker in the
// designated log. A sentinel without the marker becomes Failure once the grace period has passed,
// which leaves time for a shared file system to make the final log lines visible.
package signal

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

const moduleName = "signal"

// CompletionSignal combines a sentinel file with a success marker in a log file.
type CompletionSignal struct {
	Sentinel      string
	LogFile       string
	SuccessMarker string
	GracePeriod   time.Duration

	now func() time.Time
}

// NewCompletionSignal creates a CompletionSignal from the preprocessing settings.
func NewCompletionSignal(cfg *config.Config) *CompletionSignal {
	pp := cfg.Wrfcycle.Preprocess
	return &CompletionSignal{
		Sentinel:      pp.Sentinel,
		LogFile:       pp.LogFile,
		SuccessMarker: pp.SuccessMarker,
		GracePeriod:   cfg.Wrfcycle.Scheduler.GracePeriod(),
		now:           time.Now,
	}
}

// IsComplete evaluates the completion state of the job owning workdir.
func (s *CompletionSignal) IsComplete(workdir string) (model.CompletionState, error) {
	info, err := os.Stat(filepath.Join(workdir, s.Sentinel))
	if errors.Is(err, fs.ErrNotExist) {
		return model.CompletionPending, nil
	}
	if err != nil {
		return model.CompletionPending, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot stat sentinel in %s", workdir, err)
	}

	found, err := ContainsMarker(filepath.Join(workdir, s.LogFile), s.SuccessMarker)
	if err != nil {
		return model.CompletionPending, err
	}
	if found {
		return model.CompletionSuccess, nil
	}
	if s.clock().Sub(info.ModTime()) >= s.GracePeriod {
		return model.CompletionFailure, nil
	}
	return model.CompletionPending, nil
}

func (s *CompletionSignal) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// ContainsMarker reports whether the file at path contains marker. A missing file contains nothing.
func ContainsMarker(path, marker string) (bool, error) {
	if marker == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read %s", path, err)
	}
	return bytes.Contains(data, []byte(marker)), nil
}

// WriteSentinel marks the job owning workdir as ended.
func (s *CompletionSignal) WriteSentinel(workdir string, exitCode int) error {
	body := []byte(model.FormatTimestamp(s.clock()) + " exit=" + strconv.Itoa(exitCode) + "\n")
	if err := os.WriteFile(filepath.Join(workdir, s.Sentinel), body, 0o644); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot write sentinel in %s", workdir, err)
	}
	return nil
}

// Clear removes the sentinel of workdir so that a resubmitted job starts from Pending.
func (s *CompletionSignal) Clear(workdir string) error {
	err := os.Remove(filepath.Join(workdir, s.Sentinel))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot remove sentinel in %s", workdir, err)
	}
	return nil
}

// RecordJobID stores the batch job id of the job owning workdir in file name.
func RecordJobID(workdir, name, jobID string) error {
	if err := os.WriteFile(filepath.Join(workdir, name), []byte(jobID+"\n"), 0o644); err != nil {
		return exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot record job id in %s", workdir, err)
	}
	return nil
}

// ReadJobID returns the recorded job id, or "" when none was recorded.
func ReadJobID(workdir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(workdir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", exception.NewCycleErrorf(moduleName, exception.KindIO, "cannot read job id in %s", workdir, err)
	}
	return strings.TrimSpace(string(data)), nil
}

var _ port.CompletionChecker = (*CompletionSignal)(nil)
