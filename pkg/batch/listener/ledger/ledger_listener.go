// Package ledger records every simulation attempt in the AttemptRepository.
package ledger

import (
	"context"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// LedgerListener saves the attempt when it starts, so that an allocation killed by the batch system
// still leaves a row, and again once the outcome is known.
// Ledger failures never fail the attempt; they are logged.
type LedgerListener struct {
	repo repository.AttemptRepository
}

// NewLedgerListener creates a LedgerListener.
func NewLedgerListener(repo repository.AttemptRepository) *LedgerListener {
	return &LedgerListener{repo: repo}
}

func (l *LedgerListener) BeforeAttempt(ctx context.Context, record *model.AttemptRecord) {
	l.save(ctx, record)
}

func (l *LedgerListener) AfterAttempt(ctx context.Context, record *model.AttemptRecord, result model.RunResult) {
	if record.Message == "" {
		record.Message = result.Detail
	}
	l.save(ctx, record)
}

func (l *LedgerListener) save(ctx context.Context, record *model.AttemptRecord) {
	if err := l.repo.SaveAttempt(ctx, record); err != nil {
		logger.Warnf("Attempt %s of step %s could not be recorded in the ledger: %v", record.ID, record.StepID, err)
	}
}

var _ port.AttemptListener = (*LedgerListener)(nil)
