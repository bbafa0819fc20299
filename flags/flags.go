package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_DASHBOARD"

var (
	BackendURL = &cli.StringFlag{
		Name:     "backend-url",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "BACKEND_URL"),
		Usage:    "Base URL of the test backend (eg. 'http://localhost:8000/tests/rest/')",
	}
	RootName = &cli.StringFlag{
		Name:    "root-name",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ROOT_NAME"),
		Usage:   "Dotted name of the root test object (eg. 'myapp.tests')",
	}
	RootLabel = &cli.StringFlag{
		Name:    "root-label",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ROOT_LABEL"),
		Usage:   "Display label for the root test object",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONFIG"),
		Usage:   "Path to dashboard config file (eg. 'dashboard.yaml')",
	}
	PollInterval = &cli.DurationFlag{
		Name:    "poll-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POLL_INTERVAL"),
		Usage:   "Interval between backend polls (e.g. '2s', '500ms'). Set to 0 or omit for the default.",
	}
	RunTarget = &cli.StringFlag{
		Name:    "run",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN"),
		Usage:   "Fullname of the test object to run at startup. Omit to only display discovered tests.",
	}
	ServiceMode = &cli.BoolFlag{
		Name:    "service-mode",
		Usage:   "Keep running after the initial run completes instead of exiting",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVICE_MODE"),
	}
	VisibleStates = &cli.StringSliceFlag{
		Name:    "visible-states",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "VISIBLE_STATES"),
		Usage:   "Test states shown in the tree (eg. 'fail,error'). Omit to show all states.",
	}
)

var requiredFlags = []cli.Flag{
	BackendURL,
}

var optionalFlags = []cli.Flag{
	RootName,
	RootLabel,
	ConfigFile,
	PollInterval,
	RunTarget,
	ServiceMode,
	VisibleStates,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
