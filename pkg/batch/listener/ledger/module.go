package ledger

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module contributes the LedgerListener to the attempt listener group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLedgerListener, fx.As(new(port.AttemptListener)), fx.ResultTags(`group:"attempt_listeners"`))),
)
