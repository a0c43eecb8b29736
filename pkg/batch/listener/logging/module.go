package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
)

// Module contributes the logging listeners to the listener groups.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingAttemptListener, fx.As(new(port.AttemptListener)), fx.ResultTags(`group:"attempt_listeners"`))),
	fx.Provide(fx.Annotate(NewLoggingSubmissionListener, fx.As(new(port.SubmissionListener)), fx.ResultTags(`group:"submission_listeners"`))),
)
