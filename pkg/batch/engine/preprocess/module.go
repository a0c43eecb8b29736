package preprocess

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/signal"
)

// LauncherParams holds the dependencies of the Launcher injected via Fx.
type LauncherParams struct {
	fx.In
	Config    *config.Config
	Submitter port.JobSubmitter
	Signal    *signal.CompletionSignal
	Waiter    port.Waiter
	Listeners []port.SubmissionListener `group:"submission_listeners"`
}

// Module provides the preprocessing launcher and the in-job executor.
var Module = fx.Options(
	fx.Provide(
		func(p LauncherParams) *Launcher {
			return NewLauncher(p.Config, p.Submitter, p.Signal, p.Waiter, p.Listeners...)
		},
		NewExecutor,
	),
)
