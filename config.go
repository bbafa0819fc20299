package dashboard

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-dashboard/flags"
	"github.com/ethereum-optimism/infra/op-dashboard/types"
	"github.com/ethereum-optimism/infra/op-dashboard/updater"
	"github.com/ethereum/go-ethereum/log"
)

// FileConfig is the subset of configuration that can be supplied from a
// YAML file. Flags take precedence over file values.
type FileConfig struct {
	RootName      string   `yaml:"root_name"`
	RootLabel     string   `yaml:"root_label"`
	RunTarget     string   `yaml:"run"`
	VisibleStates []string `yaml:"visible_states"`
}

// Config holds the application configuration
type Config struct {
	BackendURL    string
	RootName      string            // Dotted name of the root test object
	RootLabel     string            // Display label for the root test object
	RunTarget     string            // Fullname to run at startup, empty for display-only
	ServiceMode   bool              // Keep running after the initial run completes
	PollInterval  time.Duration     // Interval between backend polls
	VisibleStates []types.TestState // States shown in the tree, empty means all
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	backendURL := ctx.String(flags.BackendURL.Name)
	if backendURL == "" {
		return nil, errors.New("backend URL is required")
	}

	var fileCfg FileConfig
	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	rootName := ctx.String(flags.RootName.Name)
	if rootName == "" {
		rootName = fileCfg.RootName
	}
	rootLabel := ctx.String(flags.RootLabel.Name)
	if rootLabel == "" {
		rootLabel = fileCfg.RootLabel
	}
	runTarget := ctx.String(flags.RunTarget.Name)
	if runTarget == "" {
		runTarget = fileCfg.RunTarget
	}

	stateNames := ctx.StringSlice(flags.VisibleStates.Name)
	if len(stateNames) == 0 {
		stateNames = fileCfg.VisibleStates
	}
	visibleStates := make([]types.TestState, 0, len(stateNames))
	for _, name := range stateNames {
		state, ok := types.ParseTestState(name)
		if !ok {
			return nil, fmt.Errorf("invalid visible state '%s'", name)
		}
		visibleStates = append(visibleStates, state)
	}

	pollInterval := ctx.Duration(flags.PollInterval.Name)
	if pollInterval == 0 {
		pollInterval = updater.DefaultPollInterval
	}
	if pollInterval < 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", pollInterval)
	}

	return &Config{
		BackendURL:    backendURL,
		RootName:      rootName,
		RootLabel:     rootLabel,
		RunTarget:     runTarget,
		ServiceMode:   ctx.Bool(flags.ServiceMode.Name),
		PollInterval:  pollInterval,
		VisibleStates: visibleStates,
		Log:           log,
	}, nil
}
