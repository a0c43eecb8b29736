package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/listener/ledger"
	"github.com/tigerroll/wrfcycle/pkg/batch/listener/logging"
	"github.com/tigerroll/wrfcycle/pkg/batch/listener/metrics"
	"github.com/tigerroll/wrfcycle/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules of the orchestrator.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
	ledger.Module,
)
