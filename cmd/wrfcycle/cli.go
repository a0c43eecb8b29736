package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	model "github.com/tigerroll/wrfcycle/pkg/batch/core/domain/model"
	"github.com/tigerroll/wrfcycle/pkg/batch/support/util/exception"
)

const moduleName = "cli"

// invocation is one parsed command line.
type invocation struct {
	command    string
	args       []string
	configPath string
	envPath    string

	mode            model.Mode
	skipPreprocess  bool
	resetPreprocess bool
	down            bool
}

// commandSpec describes the positional arguments a subcommand accepts.
type commandSpec struct {
	usage   string
	minArgs int
	maxArgs int
	// standalone commands run without building the application.
	standalone bool
}

var commands = map[string]commandSpec{
	"generate":      {usage: "write the step table, or verify the existing one"},
	"start":         {usage: "prepare and preprocess the first step, then submit its simulation"},
	"run":           {usage: "<step>  run the simulation allocation of a step", minArgs: 1, maxArgs: 1},
	"preprocess":    {usage: "<step>  run the preprocessing commands of a step (inside its job)", minArgs: 1, maxArgs: 1},
	"watch":         {usage: "<step>  wait for the preprocessing of a step, then submit its simulation", minArgs: 1, maxArgs: 1},
	"checkinterval": {usage: "<interval> <current> [next]  print the aggregation unit ending at the boundary", minArgs: 2, maxArgs: 3, standalone: true},
	"status":        {usage: "[step]  show the state of every step, or the attempts of one step", maxArgs: 1},
	"reset":         {usage: "<step>  clear the restart counter of a step", minArgs: 1, maxArgs: 1},
	"report":        {usage: "export the attempt ledger"},
	"migrate":       {usage: "apply the ledger schema migrations"},
}

var commandOrder = []string{
	"generate", "start", "run", "preprocess", "watch", "checkinterval", "status", "reset", "report", "migrate",
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, "Usage:\n  wrfcycle [options] <command> [command options] [arguments]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
	fmt.Fprint(w, "\nOptions:\n")
	fs.PrintDefaults()
}

// parseArgs parses the global options, the subcommand and its options.
// flag.ErrHelp is returned unchanged when help was requested.
func parseArgs(args []string, out io.Writer) (invocation, error) {
	var inv invocation
	global := flag.NewFlagSet("wrfcycle", flag.ContinueOnError)
	global.SetOutput(out)
	global.StringVar(&inv.configPath, "config", "", "experiment configuration file layered over the defaults")
	global.StringVar(&inv.envPath, "env", "", "dotenv file loaded before the configuration (default ./.env)")
	global.Usage = func() { usage(out, global) }
	if err := global.Parse(args); err != nil {
		return inv, usageError(err)
	}
	if global.NArg() == 0 {
		global.Usage()
		return inv, exception.ConfigErrorf(moduleName, "no command given")
	}

	inv.command = global.Arg(0)
	spec, ok := commands[inv.command]
	if !ok {
		global.Usage()
		return inv, exception.ConfigErrorf(moduleName, "unknown command '%s'", inv.command)
	}

	sub := flag.NewFlagSet("wrfcycle "+inv.command, flag.ContinueOnError)
	sub.SetOutput(out)
	var mode string
	switch inv.command {
	case "run":
		sub.StringVar(&mode, "mode", "", "staging mode: FRESH, RESTART, NOGEO, NOSTAT or CLEAN (default: automatic)")
		sub.BoolVar(&inv.skipPreprocess, "skip-preprocess", false, "do not launch the preprocessing of the next step")
	case "start":
		sub.BoolVar(&inv.skipPreprocess, "skip-preprocess", false, "submit the simulation without waiting for preprocessing")
	case "reset":
		sub.BoolVar(&inv.resetPreprocess, "preprocess", false, "also forget the preprocessing state of the step")
	case "migrate":
		sub.BoolVar(&inv.down, "down", false, "roll the ledger schema back instead")
	}
	if err := sub.Parse(global.Args()[1:]); err != nil {
		return inv, usageError(err)
	}
	inv.args = sub.Args()
	if n := len(inv.args); n < spec.minArgs || n > spec.maxArgs {
		return inv, exception.ConfigErrorf(moduleName, "usage: wrfcycle %s %s", inv.command, spec.usage)
	}
	m, err := model.ParseMode(mode)
	if err != nil {
		return inv, exception.ConfigErrorf(moduleName, "invalid -mode", err)
	}
	inv.mode = m
	return inv, nil
}

func usageError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return exception.ConfigErrorf(moduleName, "invalid arguments", err)
}
