package dashboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-dashboard/client"
	"github.com/ethereum-optimism/infra/op-dashboard/display"
	"github.com/ethereum-optimism/infra/op-dashboard/exitcodes"
	"github.com/ethereum-optimism/infra/op-dashboard/metrics"
	"github.com/ethereum-optimism/infra/op-dashboard/tree"
	"github.com/ethereum-optimism/infra/op-dashboard/types"
	"github.com/ethereum-optimism/infra/op-dashboard/updater"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// dashboard implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &dashboard{}

// dashboard ties the pieces together: it populates the test index from the
// backend, renders the tree to the console, and starts a result updater for
// every run invocation.
type dashboard struct {
	ctx     context.Context
	config  *Config
	version string
	client  *client.Client
	console *display.Console
	index   *tree.TestIndex

	mu          sync.Mutex
	lastUpdater *updater.TestResultUpdater

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*dashboard, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating dashboard with config",
		"backendURL", config.BackendURL,
		"rootName", config.RootName,
		"runTarget", config.RunTarget,
		"serviceMode", config.ServiceMode,
		"pollInterval", config.PollInterval)

	backend, err := client.New(client.Config{
		BaseURL: config.BackendURL,
		Log:     config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	console := display.NewConsole(os.Stdout, config.Log)

	d := &dashboard{
		ctx:              ctx,
		config:           config,
		version:          version,
		client:           backend,
		console:          console,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}
	d.index = tree.NewTestIndex(tree.Config{
		RootName:      config.RootName,
		RootLabel:     config.RootLabel,
		VisibleStates: config.VisibleStates,
		Display:       console,
		StartRun:      d.startRun,
		Log:           config.Log,
	})
	config.Log.Info("dashboard.New: created backend client and test index")
	return d, nil
}

// Start populates the index from the backend and, if a run target is
// configured, kicks off the run. In run-once mode Start blocks until the run
// completes and maps the outcome to the process exit code.
// Start implements the cliapp.Lifecycle interface.
func (d *dashboard) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			d.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	d.ctx = ctx
	d.done = make(chan struct{})
	d.running.Store(true)

	if d.config.ServiceMode {
		d.config.Log.Info("Starting op-dashboard in service mode", "pollInterval", d.config.PollInterval)
	} else {
		d.config.Log.Info("Starting op-dashboard in run-once mode", "pollInterval", d.config.PollInterval)
	}

	methods, err := d.client.GetMethods(ctx, d.config.RootName)
	if err != nil {
		d.config.Log.Error("Runtime error discovering tests", "error", err)
		metrics.RecordErrorDetails("test discovery failed", err)
		return NewRuntimeError(err)
	}
	d.index.Populate(methods)
	d.console.Render(d.index.Root())

	if d.config.RunTarget == "" {
		d.config.Log.Info("No run target configured, displaying discovered tests only")
		if !d.config.ServiceMode {
			go func() {
				d.shutdownCallback(nil)
			}()
		}
		return nil
	}

	d.index.Run(d.config.RunTarget)

	if d.config.ServiceMode {
		d.config.Log.Debug("op-dashboard started successfully")
		return nil
	}

	// Run-once mode: block until the batch completes, then map the target
	// state to the exit code.
	u := d.currentUpdater()
	if u == nil {
		return NewRuntimeError(fmt.Errorf("no updater started for run target %q", d.config.RunTarget))
	}
	select {
	case <-u.Done():
	case <-ctx.Done():
		d.config.Log.Warn("Interrupted while waiting for run to complete")
		return NewRuntimeError(ctx.Err())
	}

	d.console.Render(d.index.Root())

	state := types.TestStateUnstarted
	if node, ok := d.index.Get(u.Fullname()); ok {
		state = node.State
	}
	d.config.Log.Info("Run completed, exiting (run-once mode)", "run_id", u.RunID(), "state", state)
	if state == types.TestStateFail || state == types.TestStateError {
		d.config.Log.Warn("Run-once run completed with failures, returning exit code 1")
		return NewTestFailureError(fmt.Sprintf("run of %s finished with state %s", d.config.RunTarget, state))
	}

	go func() {
		d.shutdownCallback(nil)
	}()
	return nil // Success (exit code 0)
}

// startRun is installed as the index's RunStarter: every run invocation gets
// a fresh updater driving the backend batch protocol for that subtree.
func (d *dashboard) startRun(fullname string) {
	u := updater.New(updater.Config{
		Fullname:     fullname,
		Index:        d.index,
		Backend:      d.client,
		PollInterval: d.config.PollInterval,
		Log:          d.config.Log,
	})
	d.mu.Lock()
	d.lastUpdater = u
	d.mu.Unlock()

	d.config.Log.Info("Starting run", "fullname", fullname, "run_id", u.RunID())
	u.Start(d.ctx)

	if d.config.ServiceMode {
		// Re-render once the batch settles; run-once mode renders inline.
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			select {
			case <-u.Done():
				d.console.Render(d.index.Root())
			case <-d.done:
			}
		}()
	}
}

func (d *dashboard) currentUpdater() *updater.TestResultUpdater {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastUpdater
}

// Stop stops the op-dashboard service.
// Stop implements the cliapp.Lifecycle interface.
func (d *dashboard) Stop(ctx context.Context) error {
	d.config.Log.Info("Stopping op-dashboard")

	// Check if we're already stopped
	if !d.running.Load() {
		d.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	// Update running state first to prevent new runs
	d.running.Store(false)

	// Signal goroutines to exit
	d.config.Log.Debug("Sending done signal to goroutines")
	close(d.done)
	d.wg.Wait()

	d.config.Log.Info("op-dashboard stopped successfully")
	return nil
}

// Stopped returns true if the op-dashboard service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (d *dashboard) Stopped() bool {
	return !d.running.Load()
}
