package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// LEDRequest switches one status LED.
type LEDRequest struct {
	Body struct {
		Type    string  `json:"type" example:"system" doc:"LED name (board specific)"`
		Enabled bool    `json:"enabled" example:"true" doc:"Whether the LED should be lit"`
		Pattern *string `json:"pattern,omitempty" example:"heartbeat" doc:"Optional pattern (solid, blink, heartbeat)"`
	}
}

// LEDCapabilities lists what the board exposes.
type LEDCapabilities struct {
	AvailableTypes    []string `json:"available_types" doc:"LED names on this board"`
	AvailablePatterns []string `json:"available_patterns" doc:"Accepted pattern names"`
}

// LEDCapabilitiesResponse wraps LEDCapabilities.
type LEDCapabilitiesResponse struct {
	Body LEDCapabilities
}

func (s *Server) registerLEDRoutes() {
	ctl := s.options.LEDController
	if ctl == nil {
		s.logger.Debug("LED controller not available, skipping LED routes")
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "control-led",
		Method:      http.MethodPost,
		Path:        "/api/leds",
		Summary:     "Control LED",
		Description: "Override a status LED. The next bring-up result sets the system LED again.",
		Tags:        []string{"leds"},
		Errors:      []int{400, 401},
		Security:    withAuth(),
	}, func(_ context.Context, input *LEDRequest) (*struct{}, error) {
		pattern := ""
		if input.Body.Pattern != nil {
			pattern = *input.Body.Pattern
		}
		if err := ctl.Set(input.Body.Type, input.Body.Enabled, pattern); err != nil {
			return nil, huma.Error400BadRequest("Failed to control LED", err)
		}
		return &struct{}{}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-led-capabilities",
		Method:      http.MethodGet,
		Path:        "/api/leds/capabilities",
		Summary:     "LED Capabilities",
		Description: "List the LEDs and patterns of this board",
		Tags:        []string{"leds"},
		Errors:      []int{401},
		Security:    withAuth(),
	}, func(_ context.Context, _ *struct{}) (*LEDCapabilitiesResponse, error) {
		return &LEDCapabilitiesResponse{Body: LEDCapabilities{
			AvailableTypes:    ctl.Available(),
			AvailablePatterns: ctl.Patterns(),
		}}, nil
	})
}
