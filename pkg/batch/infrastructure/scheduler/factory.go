package scheduler

import (
	"strings"

	port "github.com/tigerroll/wrfcycle/pkg/batch/core/application/port"
	"github.com/tigerroll/wrfcycle/pkg/batch/core/config"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

// NewJobSubmitter returns the submitter named by scheduler.type.
func NewJobSubmitter(cfg *config.Config, runner port.CommandRunner) (port.JobSubmitter, error) {
	sc := cfg.Wrfcycle.Scheduler
	switch strings.ToLower(sc.Type) {
	case "slurm", "":
		return NewSlurmSubmitter(runner, sc.SubmitArgs), nil
	case "pbs":
		return NewPBSSubmitter(runner, sc.SubmitArgs), nil
	case "local":
		return NewLocalSubmitter(runner), nil
	default:
		return nil, exception.ConfigErrorf(moduleName, "unknown scheduler.type '%s'", sc.Type)
	}
}
