package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"

	"go.uber.org/fx"

	usecase "github.com/tigerroll/wrfcycle/pkg/batch/core/application/usecase"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/postprocess"
	"github.com/tigerroll/wrfcycle/pkg/batch/engine/stepseq"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/wrfcycle/pkg/batch/support/util/logger"
)

// embeddedConfig holds the default configuration compiled into the binary.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

const stopTimeout = 30 * time.Second

// cycle bundles the use cases a command may call.
type cycle struct {
	launcher usecase.CycleLauncher
	operator usecase.CycleOperator
	explorer usecase.CycleExplorer
}

// main is the entry point. The exit code is the number of errors detected by the invocation.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		logger.Errorf("wrfcycle failed: %v", err)
	}
	os.Exit(exception.ExitCode(err))
}

// run parses args and executes the command, writing command output to out.
func run(ctx context.Context, out io.Writer, args []string) error {
	inv, err := parseArgs(args, out)
	if err != nil {
		return err
	}
	if commands[inv.command].standalone {
		return runStandalone(out, inv)
	}

	var c cycle
	app := fx.New(append(GetApplicationOptions(inv, embeddedConfig),
		fx.Populate(&c.launcher, &c.operator, &c.explorer))...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	cmdErr := c.execute(ctx, out, inv)

	// Stop hooks flush metrics and close connections, also after a failed command.
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Warnf("Application stop failed: %v", err)
	}
	return cmdErr
}

func runStandalone(out io.Writer, inv invocation) error {
	switch inv.command {
	case "checkinterval":
		next := ""
		if len(inv.args) == 3 {
			next = inv.args[2]
		}
		fmt.Fprintln(out, postprocess.CheckInterval(inv.args[0], inv.args[1], next))
		return nil
	}
	return exception.ConfigErrorf(moduleName, "command '%s' needs the application", inv.command)
}

func (c cycle) execute(ctx context.Context, out io.Writer, inv invocation) error {
	switch inv.command {
	case "generate":
		table, err := c.operator.Generate(ctx)
		if err != nil {
			return err
		}
		return stepseq.FormatTable(out, table)

	case "start":
		jobID, err := c.launcher.Start(ctx, usecase.StartOptions{SkipPreprocess: inv.skipPreprocess})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, jobID)
		return nil

	case "run":
		res, err := c.launcher.RunAllocation(ctx, inv.args[0], usecase.RunOptions{Mode: inv.mode, SkipPreprocess: inv.skipPreprocess})
		logAllocation(res)
		return err

	case "preprocess":
		return c.launcher.Preprocess(ctx, inv.args[0])

	case "watch":
		jobID, err := c.launcher.Watch(ctx, inv.args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, jobID)
		return nil

	case "status":
		if len(inv.args) == 1 {
			records, err := c.explorer.Attempts(ctx, inv.args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderAttempts(records))
			return nil
		}
		status, err := c.explorer.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderStatus(status))
		return nil

	case "reset":
		return c.operator.Reset(ctx, inv.args[0], usecase.ResetOptions{Preprocess: inv.resetPreprocess})

	case "report":
		object, err := c.operator.Report(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, object)
		return nil

	case "migrate":
		return c.operator.Migrate(ctx, inv.down)
	}
	return exception.ConfigErrorf(moduleName, "unknown command '%s'", inv.command)
}

func logAllocation(res usecase.AllocationResult) {
	if res.Step.IsZero() || res.Record == nil {
		return
	}
	switch {
	case res.Recovery != nil:
		logger.Infof("Step %s: %s, resubmitted as job %s after %s recovery.",
			res.Step.ID, res.Result.Outcome, res.Recovery.JobID, res.Recovery.Branch)
	case res.Chain != nil:
		logger.Infof("Step %s: %s, hand-over %s %s (job %s), %d post-processing jobs.",
			res.Step.ID, res.Result.Outcome, res.Chain.Action, res.Chain.Next.ID, res.Chain.JobID, len(res.Dispatches))
	default:
		logger.Infof("Step %s: %s.", res.Step.ID, res.Result.Outcome)
	}
}
