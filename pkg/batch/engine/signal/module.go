package signal

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module provides the completion signal and the configured Waiter.
var Module = fx.Options(
	fx.Provide(
		NewCompletionSignal,
		func(s *CompletionSignal) port.CompletionChecker { return s },
		NewWaiter,
	),
)
