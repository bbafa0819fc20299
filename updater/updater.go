// Package updater drives the asynchronous batch protocol against the remote
// test backend: it starts a batch for one root test name, waits for the batch
// metadata, then streams partial results into the status tree until every
// unit has reported.
package updater

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/op-dashboard/metrics"
	"github.com/ethereum-optimism/infra/op-dashboard/tree"
	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

// DefaultPollInterval is the delay between backend polls when none is
// configured.
const DefaultPollInterval = 2 * time.Second

// Backend is the remote batch-execution service as seen by the updater. A
// BatchInfo of (nil, nil) means the metadata is not ready yet.
type Backend interface {
	StartBatch(ctx context.Context, fullname string) (*types.BatchStart, error)
	BatchInfo(ctx context.Context, batchID string) (*types.BatchInfo, error)
	BatchResults(ctx context.Context, batchID string, start int) ([]types.UnitResult, error)
}

// Config contains updater configuration.
type Config struct {
	Fullname     string
	Index        *tree.TestIndex
	Backend      Backend
	PollInterval time.Duration
	Log          log.Logger
}

// TestResultUpdater orchestrates the start/poll protocol for a single invoked
// root test name. One updater is created per run invocation and discarded
// once the batch completes or fails; it is never reused across batches.
//
// Within one updater, metadata is always applied before any result, and
// results are applied strictly in increasing offset order: the offset is the
// sole resumption token and only advances after successful application, so no
// result is ever applied twice or skipped. The updater holds no lock of its
// own; concurrent invocations are prevented by the idempotent Start guard,
// and tree writes are serialized by the index.
type TestResultUpdater struct {
	fullname     string
	runID        string
	index        *tree.TestIndex
	backend      Backend
	pollInterval time.Duration
	log          log.Logger
	tracer       trace.Tracer

	started atomic.Bool
	done    chan struct{}

	batchID     string
	numUnits    int
	unitMethods map[string][]string
	resultsSeen int
	startedAt   time.Time
}

// New creates an updater for cfg.Fullname.
func New(cfg Config) *TestResultUpdater {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &TestResultUpdater{
		fullname:     cfg.Fullname,
		runID:        uuid.New().String(),
		index:        cfg.Index,
		backend:      cfg.Backend,
		pollInterval: cfg.PollInterval,
		log:          cfg.Log.New("fullname", cfg.Fullname),
		tracer:       otel.Tracer("op-dashboard/updater"),
		done:         make(chan struct{}),
	}
}

// Fullname returns the root test name this updater drives.
func (u *TestResultUpdater) Fullname() string {
	return u.fullname
}

// RunID returns the unique id of this run invocation.
func (u *TestResultUpdater) RunID() string {
	return u.runID
}

// Done is closed once the batch has completed, failed to start, or the
// context given to Start was canceled.
func (u *TestResultUpdater) Done() <-chan struct{} {
	return u.done
}

// ResultsSeen returns the number of unit results applied so far.
func (u *TestResultUpdater) ResultsSeen() int {
	return u.resultsSeen
}

// Start kicks off the batch and its polling loop. It is idempotent: a second
// invocation while the updater is already started is a no-op.
func (u *TestResultUpdater) Start(ctx context.Context) {
	if !u.started.CompareAndSwap(false, true) {
		u.log.Debug("Batch already started, ignoring", "run_id", u.runID)
		return
	}
	go u.run(ctx)
}

func (u *TestResultUpdater) run(ctx context.Context) {
	defer close(u.done)

	ctx, span := u.tracer.Start(ctx, "test-batch")
	defer span.End()

	u.startedAt = time.Now()
	u.log.Info("Starting remote test batch", "run_id", u.runID)

	start, err := u.backend.StartBatch(ctx, u.fullname)
	if err != nil {
		u.log.Error("Failed to start batch", "run_id", u.runID, "error", err)
		metrics.RecordBatchStartFailure(u.fullname, err)
		u.index.AddError(u.fullname, err.Error(), types.TestStateError)
		return
	}
	u.batchID = start.BatchID
	metrics.RecordBatchStarted(u.fullname)

	if start.Info != nil {
		// Combined response: the metadata and possibly some or all results
		// arrived with the start; apply them before any polling.
		u.applyInfo(start.Info)
		u.applyResults(start.Results)
	} else {
		if !u.awaitInfo(ctx) {
			return
		}
	}

	if !u.awaitResults(ctx) {
		return
	}
	u.complete()
}

// awaitInfo polls for batch metadata until the backend reports it. A nil or
// failed response is indistinguishable from slowness and simply reschedules
// the poll. Returns false if the context was canceled first.
func (u *TestResultUpdater) awaitInfo(ctx context.Context) bool {
	for {
		select {
		case <-ctx.Done():
			u.log.Warn("Context canceled while awaiting batch info", "run_id", u.runID)
			return false
		case <-time.After(u.pollInterval):
			info, err := u.backend.BatchInfo(ctx, u.batchID)
			if err != nil {
				metrics.RecordPoll("info", false)
				u.log.Warn("Batch info poll failed, retrying", "run_id", u.runID, "error", err)
				continue
			}
			if info == nil {
				metrics.RecordPoll("info", false)
				u.log.Debug("Batch info not ready", "run_id", u.runID)
				continue
			}
			metrics.RecordPoll("info", true)
			u.applyInfo(info)
			return true
		}
	}
}

// awaitResults polls for unit results from the current offset until every
// unit has reported. Returns false if the context was canceled first.
func (u *TestResultUpdater) awaitResults(ctx context.Context) bool {
	for u.resultsSeen < u.numUnits {
		select {
		case <-ctx.Done():
			u.log.Warn("Context canceled while awaiting results",
				"run_id", u.runID, "applied", u.resultsSeen, "expected", u.numUnits)
			return false
		case <-time.After(u.pollInterval):
			results, err := u.backend.BatchResults(ctx, u.batchID, u.resultsSeen)
			if err != nil {
				metrics.RecordPoll("results", false)
				u.log.Warn("Results poll failed, retrying", "run_id", u.runID, "error", err)
				continue
			}
			metrics.RecordPoll("results", len(results) > 0)
			u.applyResults(results)
		}
	}
	return true
}

func (u *TestResultUpdater) applyInfo(info *types.BatchInfo) {
	u.numUnits = info.NumUnits
	u.unitMethods = info.UnitMethods
	if len(info.LoadErrors) > 0 {
		u.index.AddErrors(info.LoadErrors, types.TestStateError)
	}
	u.log.Info("Batch info received",
		"run_id", u.runID, "units", info.NumUnits, "loadErrors", len(info.LoadErrors))
}

func (u *TestResultUpdater) applyResults(results []types.UnitResult) {
	for _, result := range results {
		result.Output = stripansi.Strip(result.Output)
		u.index.ApplyUnitResult(result, u.unitMethods[result.Fullname])
		u.resultsSeen++
		u.log.Debug("Applied unit result",
			"run_id", u.runID, "unit", result.Fullname, "offset", u.resultsSeen)
	}
	if len(results) > 0 {
		metrics.RecordResultsApplied(u.fullname, len(results))
	}
}

func (u *TestResultUpdater) complete() {
	state := types.TestStateUnstarted
	if node, ok := u.index.Get(u.fullname); ok {
		state = node.State
	}
	duration := time.Since(u.startedAt)
	metrics.RecordBatchCompleted(u.fullname, u.runID, state, duration)
	metrics.RecordNodeStates(u.index.Root().StateCounts())
	u.log.Info("Batch completed",
		"run_id", u.runID, "state", state, "units", u.resultsSeen, "duration", duration)
}
