package driver

import "go.uber.org/fx"

// Module provides the CycleDriver.
var Module = fx.Options(
	fx.Provide(NewDriver),
)
