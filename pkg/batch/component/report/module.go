package report

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
)

// Module provides the ledger exporter, also as the dispatcher's final-step Exporter.
var Module = fx.Options(
	fx.Provide(NewExporter),
	fx.Provide(func(e *Exporter) postprocess.Exporter { return e }),
)
