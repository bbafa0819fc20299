package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

const (
	MetricsNamespace = "dashboard"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	batchesStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batches_started_total",
		Help:      "Count of remote test batches started",
	}, []string{
		"fullname",
	})

	batchStartFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_start_failures_total",
		Help:      "Count of remote test batches that failed to start",
	}, []string{
		"fullname",
	})

	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "polls_total",
		Help:      "Count of backend polls, by kind and whether a payload was returned",
	}, []string{
		"kind",
		"ready",
	})

	resultsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "results_applied_total",
		Help:      "Count of unit results applied to the status tree",
	}, []string{
		"fullname",
	})

	batchDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_duration_seconds",
		Help:      "Wall time from batch start until the last result was applied",
	}, []string{
		"fullname",
		"run_id",
	})

	batchResult = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "batch_result",
		Help:      "Final aggregate state of a completed batch",
	}, []string{
		"fullname",
		"run_id",
		"state",
	})

	nodeStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "node_states",
		Help:      "Number of leaf test nodes per state",
	}, []string{
		"state",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordBatchStarted(fullname string) {
	if Debug {
		log.Debug("metric inc", "m", "batches_started_total", "fullname", fullname)
	}
	batchesStartedTotal.WithLabelValues(fullname).Inc()
}

func RecordBatchStartFailure(fullname string, err error) {
	batchStartFailuresTotal.WithLabelValues(fullname).Inc()
	RecordErrorDetails("batch_start", err)
}

// RecordPoll counts one backend poll. kind is "info" or "results"; ready
// reports whether the backend had a payload for us.
func RecordPoll(kind string, ready bool) {
	pollsTotal.WithLabelValues(kind, fmt.Sprintf("%t", ready)).Inc()
}

func RecordResultsApplied(fullname string, count int) {
	resultsAppliedTotal.WithLabelValues(fullname).Add(float64(count))
}

func RecordBatchCompleted(fullname string, runID string, state types.TestState, duration time.Duration) {
	if Debug {
		log.Debug("metric set",
			"m", "batch_result",
			"fullname", fullname,
			"run_id", runID,
			"state", state,
			"duration", duration)
	}
	batchResult.WithLabelValues(fullname, runID, string(state)).Set(1)
	batchDuration.WithLabelValues(fullname, runID).Set(duration.Seconds())
}

// RecordNodeStates publishes the per-state leaf counts of the status tree.
func RecordNodeStates(counts map[types.TestState]int) {
	for _, state := range types.AllTestStates() {
		nodeStates.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
