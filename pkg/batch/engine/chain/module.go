package chain

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/driver"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/recovery"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
)

// ChainerParams holds the dependencies of the Chainer injected via Fx.
type ChainerParams struct {
	fx.In
	Config    *config.Config
	Sequencer *stepseq.Sequencer
	Driver    *driver.Driver
	Submitter port.JobSubmitter
	Checker   port.CompletionChecker
	Waiter    port.Waiter
	Listeners []port.SubmissionListener `group:"submission_listeners"`
}

// Module provides the Chainer, also as the Resubmitter of the recovery policy.
var Module = fx.Options(
	fx.Provide(func(p ChainerParams) *Chainer {
		return NewChainer(p.Config, p.Sequencer, p.Driver, p.Submitter, p.Checker, p.Waiter, p.Listeners...)
	}),
	fx.Provide(func(c *Chainer) recovery.Resubmitter { return c }),
)
