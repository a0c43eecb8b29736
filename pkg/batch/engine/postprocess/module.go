package postprocess

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
)

// DispatcherParams holds the dependencies of the Dispatcher injected via Fx.
type DispatcherParams struct {
	fx.In
	Config    *config.Config
	Submitter port.JobSubmitter
	Exporter  Exporter                  `optional:"true"`
	Listeners []port.SubmissionListener `group:"submission_listeners"`
}

// Module provides the Dispatcher.
var Module = fx.Options(
	fx.Provide(func(p DispatcherParams) *Dispatcher {
		return NewDispatcher(p.Config, p.Submitter, p.Exporter, p.Listeners...)
	}),
)
