// Package metrics provides Prometheus metrics for the display pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vop2ctl",
		Subsystem: "registers",
		Name:      "transactions_total",
		Help:      "Register bus transactions by operation and block",
	}, []string{"op", "block"})

	commitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vop2ctl",
		Subsystem: "commit",
		Name:      "requests_total",
		Help:      "Commit requests by asserted REG_CFG_DONE bits",
	}, []string{"bits"})

	commitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vop2ctl",
		Subsystem: "commit",
		Name:      "latency_seconds",
		Help:      "Time from commit request to the blocks latching",
		Buckets:   []float64{.001, .005, .01, .017, .034, .05, .1, .25, .5, 1},
	})

	blockPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vop2ctl",
		Subsystem: "commit",
		Name:      "block_phase",
		Help:      "Commit phase per block (0 active, 1 staged, 2 commit requested)",
	}, []string{"block"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vop2ctl",
		Name:      "errors_total",
		Help:      "Pipeline errors by code",
	}, []string{"code"})

	modeApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vop2ctl",
		Name:      "mode_applied_total",
		Help:      "Display configurations applied successfully",
	})
)

// Summary mirrors the counters for consumers that cannot scrape, such as
// the SSE metrics stream.
type Summary struct {
	RegisterReads  uint64
	RegisterWrites uint64
	Commits        uint64
	Latched        uint64
	LastLatency    float64
	Errors         uint64
	ModesApplied   uint64
}

var (
	summaryMu sync.RWMutex
	summary   Summary
)

// GetSummary returns a copy of the running totals.
func GetSummary() Summary {
	summaryMu.RLock()
	defer summaryMu.RUnlock()
	return summary
}

func updateSummary(update func(*Summary)) {
	summaryMu.Lock()
	update(&summary)
	summaryMu.Unlock()
}

// RecordRegisterAccess counts one register read or write.
func RecordRegisterAccess(op, block string) {
	registerTransactions.WithLabelValues(op, block).Inc()
	updateSummary(func(s *Summary) {
		if op == "write" {
			s.RegisterWrites++
		} else {
			s.RegisterReads++
		}
	})
}

// RecordCommitRequest counts one REG_CFG_DONE assertion.
func RecordCommitRequest(bits string) {
	commitRequests.WithLabelValues(bits).Inc()
	updateSummary(func(s *Summary) { s.Commits++ })
}

// ObserveCommitLatency records how long a commit took to latch.
func ObserveCommitLatency(seconds float64) {
	commitLatency.Observe(seconds)
	updateSummary(func(s *Summary) {
		s.Latched++
		s.LastLatency = seconds
	})
}

// SetBlockPhase publishes the commit phase of a block.
func SetBlockPhase(block string, phase int) {
	blockPhase.WithLabelValues(block).Set(float64(phase))
}

// RecordError counts a pipeline error.
func RecordError(code string) {
	errorsTotal.WithLabelValues(code).Inc()
	updateSummary(func(s *Summary) { s.Errors++ })
}

// RecordModeApplied counts a successful bring-up.
func RecordModeApplied() {
	modeApplied.Inc()
	updateSummary(func(s *Summary) { s.ModesApplied++ })
}
