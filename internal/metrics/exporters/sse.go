package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/metrics"
)

// DefaultInterval is how often a snapshot is published.
const DefaultInterval = time.Second

// EventPublisher is the part of the event bus the exporter needs.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter publishes metrics.GetSummary on the bus at a fixed interval
// for the /api/metrics stream. Nothing is published while the totals are
// unchanged.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   *metrics.Summary
}

// NewSSEExporter creates a stopped exporter. A zero interval means
// DefaultInterval.
func NewSSEExporter(eventBus EventPublisher, interval time.Duration) *SSEExporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SSEExporter{eventBus: eventBus, interval: interval, now: time.Now}
}

// Start begins the export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop ends the loop and waits for it.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.publish()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

func (s *SSEExporter) publish() {
	sum := metrics.GetSummary()
	if s.last != nil && *s.last == sum {
		return
	}
	s.last = &sum
	s.eventBus.Publish(Snapshot(sum, s.now()))
}

// Snapshot converts a summary into the streamed event.
func Snapshot(sum metrics.Summary, at time.Time) events.MetricsSnapshotEvent {
	return events.MetricsSnapshotEvent{
		RegisterWrites: sum.RegisterWrites,
		RegisterReads:  sum.RegisterReads,
		Commits:        sum.Commits,
		Latched:        sum.Latched,
		LastLatencyMs:  sum.LastLatency * 1000,
		Errors:         sum.Errors,
		ModesApplied:   sum.ModesApplied,
		Timestamp:      at.Format(time.RFC3339),
	}
}

// GetEventTypes returns the event types for SSE registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"metrics-snapshot": events.MetricsSnapshotEvent{},
	}
}
