package recovery

import "go.uber.org/fx"

// Module provides the crash recovery Policy.
var Module = fx.Options(
	fx.Provide(NewPolicy),
)
