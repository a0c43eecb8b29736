package scheduler

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module provides the process runner and the configured JobSubmitter.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(NewExecRunner, fx.As(new(port.CommandRunner))),
		NewJobSubmitter,
	),
)
