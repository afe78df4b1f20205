package display

import (
	"time"

	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/metrics"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// observer turns driver activity into metrics and bus events.
type observer struct {
	bus *events.Bus
	now func() time.Time
}

func (o *observer) RegisterAccess(op string, block vop2.Block) {
	metrics.RecordRegisterAccess(op, block.String())
}

func (o *observer) CommitRequested(bits vop2.CommitBits, blocks []vop2.Block) {
	metrics.RecordCommitRequest(bits.String())
	for _, b := range blocks {
		metrics.SetBlockPhase(b.String(), int(vop2.PhaseCommitRequested))
	}
	if o.bus != nil {
		o.bus.Publish(events.CommitRequestedEvent{
			Bits:      bits.String(),
			Blocks:    names(blocks),
			Timestamp: o.now().Format(time.RFC3339),
		})
	}
}

func (o *observer) CommitLatched(blocks []vop2.Block, elapsed time.Duration) {
	metrics.ObserveCommitLatency(elapsed.Seconds())
	for _, b := range blocks {
		metrics.SetBlockPhase(b.String(), int(vop2.PhaseActive))
	}
	if o.bus != nil {
		o.bus.Publish(events.CommitLatchedEvent{
			Blocks:    names(blocks),
			LatencyMs: float64(elapsed.Microseconds()) / 1000,
			Timestamp: o.now().Format(time.RFC3339),
		})
	}
}

func names(blocks []vop2.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.String()
	}
	return out
}
