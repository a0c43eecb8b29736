package logging

import (
	"context"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// --- Attempt Listener ---

type LoggingAttemptListener struct{}

func NewLoggingAttemptListener() *LoggingAttemptListener {
	return &LoggingAttemptListener{}
}

func (l *LoggingAttemptListener) BeforeAttempt(ctx context.Context, record *model.AttemptRecord) {
	logger.Infof("AttemptListener: BeforeAttempt - Step: %s, R: %d, Transient: %d, TimeStep: %g, SubStep: %d, Damping: %g",
		record.StepID, record.Attempt, record.Transient, record.TimeStep, record.SubStep, record.Damping)
}

func (l *LoggingAttemptListener) AfterAttempt(ctx context.Context, record *model.AttemptRecord, result model.RunResult) {
	msg := "AttemptListener: AfterAttempt - Step: %s, Outcome: %s, MainLoop: %t, TransientFault: %t, Duration: %s, Detail: %s"
	args := []interface{}{record.StepID, record.Outcome, result.MainLoopEntered, result.TransientFault,
		record.FinishedAt.Sub(record.StartedAt), result.Detail}
	if record.Outcome == model.OutcomeSuccess {
		logger.Infof(msg, args...)
	} else {
		logger.Warnf(msg, args...)
	}
}

var _ port.AttemptListener = (*LoggingAttemptListener)(nil)

// --- Submission Listener ---

type LoggingSubmissionListener struct{}

func NewLoggingSubmissionListener() *LoggingSubmissionListener {
	return &LoggingSubmissionListener{}
}

func (l *LoggingSubmissionListener) OnSubmit(ctx context.Context, kind string, req port.JobRequest, jobID string, err error) {
	if err != nil {
		logger.Errorf("SubmissionListener: %s job '%s' was rejected: %v", kind, req.Name, err)
		return
	}
	logger.Infof("SubmissionListener: %s job '%s' submitted as %s (AfterAny: %v)", kind, req.Name, jobID, req.AfterAny)
}

var _ port.SubmissionListener = (*LoggingSubmissionListener)(nil)
