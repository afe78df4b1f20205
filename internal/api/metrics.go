package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/metrics"
	"github.com/smazurov/vop2ctl/internal/metrics/exporters"
)

func (s *Server) registerMetricsRoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "metrics-stream",
		Method:      http.MethodGet,
		Path:        "/api/metrics",
		Summary:     "Metrics Stream",
		Description: "Register, commit and error totals, current totals first, then each change",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, exporters.GetEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 8)
		unsubscribe := events.SubscribeToChannel[events.MetricsSnapshotEvent](s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(exporters.Snapshot(metrics.GetSummary(), time.Now())); err != nil {
			return
		}
		stream(ctx, eventCh, send)
	})
}
