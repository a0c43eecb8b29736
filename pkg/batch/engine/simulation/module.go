package simulation

import "go.uber.org/fx"

// Module provides the outcome classifier and the simulation Runner.
var Module = fx.Options(
	fx.Provide(NewClassifier),
	fx.Provide(NewRunner),
)
