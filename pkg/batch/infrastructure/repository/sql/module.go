package sql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	repository "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/repository"
	"github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/repository/inmemory"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// Module provides the attempt ledger: the SQL repository when ledger.enabled is set, otherwise an
// in-memory ledger that only lives as long as the invocation.
var Module = fx.Options(
	fx.Provide(NewSQLAttemptRepository),
	fx.Provide(NewAttemptRepository),
)

// NewAttemptRepository selects the ledger implementation from the configuration.
func NewAttemptRepository(cfg *config.Config, r *SQLAttemptRepository) repository.AttemptRepository {
	if !cfg.Wrfcycle.Ledger.Enabled {
		logger.Debugf("Attempt ledger disabled, attempts are kept in memory.")
		return inmemory.NewInMemoryRepository()
	}
	return r
}
