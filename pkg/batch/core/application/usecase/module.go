package usecase

import (
	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
)

// Module is the Fx module for CycleLauncher, CycleOperator, and CycleExplorer.
var Module = fx.Options(
	fx.Provide(stepseq.NewSequencer),
	// Provide CycleExplorer
	fx.Provide(fx.Annotate(
		NewSimpleCycleExplorer,
		fx.As(new(CycleExplorer)),
	)),
	// Provide CycleOperator
	fx.Provide(fx.Annotate(
		NewDefaultCycleOperator,
		fx.As(new(CycleOperator)),
	)),
	// Provide CycleLauncher
	fx.Provide(fx.Annotate(
		NewSimpleCycleLauncher,
		fx.As(new(CycleLauncher)),
	)),
)
