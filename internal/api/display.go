package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/vop2ctl/internal/api/models"
	"github.com/smazurov/vop2ctl/internal/videomode"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

func (s *Server) registerDisplayRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-display",
		Method:      http.MethodGet,
		Path:        "/api/display",
		Summary:     "Display Status",
		Description: "Probe state, applied mode, output routing and the commit phase of every register block",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.DisplayStatusResponse, error) {
		return &models.DisplayStatusResponse{Body: s.display.Status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-display-registers",
		Method:      http.MethodGet,
		Path:        "/api/display/registers",
		Summary:     "Register Dump",
		Description: "Read every register of one block",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.RegistersRequest) (*models.RegistersResponse, error) {
		regs, err := s.display.Registers(input.Block)
		if err != nil {
			return nil, toHTTPError("Failed to read registers", err)
		}
		return &models.RegistersResponse{Body: models.RegistersData{Block: input.Block, Registers: regs}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "route-output",
		Method:      http.MethodPut,
		Path:        "/api/display/outputs/{mode}/route",
		Summary:     "Route Output",
		Description: "Connect an output interface to a video port. Takes effect on the next commit.",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(_ context.Context, input *models.RouteRequest) (*models.OutputResponse, error) {
		mode, err := vop2.ParseOutputMode(input.Mode)
		if err != nil {
			return nil, toHTTPError("Unknown output", err)
		}
		if err := s.display.Route(mode, input.Body.Port); err != nil {
			return nil, toHTTPError("Failed to route output", err)
		}
		return outputResponse(mode, "routed"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "enable-output",
		Method:      http.MethodPost,
		Path:        "/api/display/outputs/{mode}/enable",
		Summary:     "Enable Output",
		Description: "Enable one output interface and disable all others. Takes effect on the next commit.",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(_ context.Context, input *models.EnableRequest) (*models.OutputResponse, error) {
		mode, err := vop2.ParseOutputMode(input.Mode)
		if err != nil {
			return nil, toHTTPError("Unknown output", err)
		}
		if err := s.display.Enable(mode); err != nil {
			return nil, toHTTPError("Failed to enable output", err)
		}
		return outputResponse(mode, "enabled"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-output-polarity",
		Method:      http.MethodPut,
		Path:        "/api/display/outputs/{mode}/polarity",
		Summary:     "Set Polarity",
		Description: "Write the 4-bit signal polarity of an output, raw or derived from timing flags",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409},
	}, func(_ context.Context, input *models.PolarityRequest) (*models.OutputResponse, error) {
		mode, err := vop2.ParseOutputMode(input.Mode)
		if err != nil {
			return nil, toHTTPError("Unknown output", err)
		}
		var pol vop2.Polarity
		switch {
		case input.Body.Polarity != nil && input.Body.Flags != nil:
			return nil, huma.Error400BadRequest("Give polarity or flags, not both")
		case input.Body.Polarity != nil:
			pol = vop2.Polarity(*input.Body.Polarity)
		default:
			flags, err := videomode.ParseFlags(input.Body.Flags)
			if err != nil {
				return nil, huma.Error400BadRequest("Invalid timing flags", err)
			}
			pol = vop2.PolarityFromFlags(flags)
		}
		if err := s.display.SetPolarity(mode, pol); err != nil {
			return nil, toHTTPError("Failed to set polarity", err)
		}
		return outputResponse(mode, "polarity"), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "commit-display",
		Method:      http.MethodPost,
		Path:        "/api/display/commit",
		Summary:     "Commit",
		Description: "Assert the commit bits of every staged block, optionally waiting for the frame boundary",
		Tags:        []string{"display"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 409, 504},
	}, func(ctx context.Context, input *models.CommitRequest) (*models.CommitResponse, error) {
		timeout := s.options.CommitTimeout
		if input.Body.TimeoutMs > 0 {
			timeout = time.Duration(input.Body.TimeoutMs) * time.Millisecond
		}
		res, err := s.display.Commit(ctx, input.Body.Wait, input.Body.Port, timeout)
		if err != nil {
			return nil, toHTTPError("Commit failed", err)
		}
		return &models.CommitResponse{Body: res}, nil
	})
}

func outputResponse(mode vop2.OutputMode, action string) *models.OutputResponse {
	return &models.OutputResponse{Body: models.OutputData{Output: mode.String(), Action: action, Staged: true}}
}
