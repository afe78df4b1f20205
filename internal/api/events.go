package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/vop2ctl/internal/events"
)

// displayEventTypes names each event on the wire.
var displayEventTypes = map[string]any{
	"mode-applied":     events.ModeAppliedEvent{},
	"bringup-failed":   events.BringupFailedEvent{},
	"commit-requested": events.CommitRequestedEvent{},
	"commit-latched":   events.CommitLatchedEvent{},
	"output-changed":   events.OutputChangedEvent{},
	"config-reloaded":  events.ConfigReloadedEvent{},
}

func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Display Event Stream",
		Description: "Bring-up results, commit requests and latches, output changes and config reloads as they happen",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, displayEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeDisplay(s.eventBus, eventCh)
		defer unsubscribe()

		stream(ctx, eventCh, send)
	})
}

// stream forwards ch to the client until either side goes away.
func stream(ctx context.Context, ch <-chan any, send sse.Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}
