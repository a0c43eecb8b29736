package main

import (
	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/database/gorm/sqlite"
	storageAdapter "github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage"
	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/wrfcycle/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/wrfcycle/pkg/batch/component/backup"
	"github.com/tigerroll/wrfcycle/pkg/batch/component/report"
	"github.com/tigerroll/wrfcycle/pkg/batch/component/tasklet/migration"
	usecase "github.com/tigerroll/wrfcycle/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/chain"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/preprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/simulation"
	inframetrics "github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/repository/filesystem"
	sqlRepo "github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/wrfcycle/pkg/batch/infrastructure/scheduler"
	batchlistener "github.com/tigerroll/wrfcycle/pkg/batch/listener"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// GetApplicationOptions builds the uber-fx options of one wrfcycle invocation.
func GetApplicationOptions(inv invocation, embeddedConfig config.EmbeddedConfig) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(inv.envPath, fx.ResultTags(`name:"envFilePath"`)),
		fx.Annotate(inv.configPath, fx.ResultTags(`name:"configFilePath"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)

	// Batch system and shared file system state.
	options = append(options, scheduler.Module)
	options = append(options, filesystem.Module)
	options = append(options, sqlRepo.Module)

	// Adapters.
	options = append(options, gormadapter.Module, sqlite.Module, mysql.Module, postgres.Module)
	options = append(options, storageAdapter.Module, local.Module, gcs.Module)

	// Cycling components.
	options = append(options, signal.Module)
	options = append(options, driver.Module)
	options = append(options, preprocess.Module)
	options = append(options, simulation.Module)
	options = append(options, recovery.Module)
	options = append(options, chain.Module)
	options = append(options, postprocess.Module)
	options = append(options, backup.Module)
	options = append(options, report.Module)
	options = append(options, migration.Module)

	options = append(options, inframetrics.Module)
	options = append(options, batchlistener.Module)
	options = append(options, usecase.Module)
	return options
}
