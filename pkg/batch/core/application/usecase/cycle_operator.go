package usecase

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/wrfcycle/pkg/batch/component/report"
	"github.com/tigerroll/wrfcycle/pkg/batch/component/tasklet/migration"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/preprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// CycleOperatorParams holds the dependencies of DefaultCycleOperator injected via Fx.
// Exporter and Migrations are only present when their modules are part of the application.
type CycleOperatorParams struct {
	fx.In
	Sequencer  *stepseq.Sequencer
	Policy     *recovery.Policy
	Launcher   *preprocess.Launcher
	Exporter   *report.Exporter  `optional:"true"`
	Migrations *migration.Runner `optional:"true"`
}

// DefaultCycleOperator is the default CycleOperator.
type DefaultCycleOperator struct {
	p CycleOperatorParams
}

var _ CycleOperator = (*DefaultCycleOperator)(nil)

// NewDefaultCycleOperator creates a new instance of DefaultCycleOperator.
func NewDefaultCycleOperator(p CycleOperatorParams) *DefaultCycleOperator {
	return &DefaultCycleOperator{p: p}
}

// Generate implements CycleOperator.
func (o *DefaultCycleOperator) Generate(ctx context.Context) (model.StepTable, error) {
	table, err := o.p.Sequencer.Init()
	if err != nil {
		return model.StepTable{}, err
	}
	logger.Infof("Step table %s holds %d steps (%s .. %s).",
		o.p.Sequencer.Path(), table.Len(), table.First().ID, table.Last().ID)
	return table, nil
}

// Reset implements CycleOperator.
func (o *DefaultCycleOperator) Reset(ctx context.Context, stepID string, opts ResetOptions) error {
	step, err := o.p.Sequencer.Step(stepID)
	if err != nil {
		return err
	}
	if err := o.p.Policy.Reset(ctx, step.ID); err != nil {
		return err
	}
	logger.Infof("Restart counter of step %s cleared.", step.ID)
	if !opts.Preprocess {
		return nil
	}
	if err := o.p.Launcher.Reset(step); err != nil {
		return err
	}
	logger.Infof("Preprocessing state of step %s cleared.", step.ID)
	return nil
}

// Report implements CycleOperator.
func (o *DefaultCycleOperator) Report(ctx context.Context) (string, error) {
	if o.p.Exporter == nil {
		return "", exception.ConfigErrorf(moduleName, "no ledger exporter configured")
	}
	return o.p.Exporter.Export(ctx)
}

// Migrate implements CycleOperator.
func (o *DefaultCycleOperator) Migrate(ctx context.Context, down bool) error {
	if o.p.Migrations == nil {
		return exception.ConfigErrorf(moduleName, "ledger database is disabled, nothing to migrate")
	}
	if down {
		return o.p.Migrations.Down(ctx)
	}
	return o.p.Migrations.Up(ctx)
}
