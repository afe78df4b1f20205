// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/vop2ctl/internal/display"
	"github.com/smazurov/vop2ctl/internal/version"
)

// HealthData is the body of /api/health.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Ready   bool   `json:"ready" doc:"Whether the VOP2 has been probed"`
}

// HealthResponse wraps HealthData.
type HealthResponse struct {
	Body HealthData
}

// VersionResponse wraps the build description.
type VersionResponse struct {
	Body version.Info
}

// DisplayStatusResponse wraps the pipeline status.
type DisplayStatusResponse struct {
	Body display.Status
}

// RegistersRequest selects the block to dump.
type RegistersRequest struct {
	Block string `query:"block" default:"sysctrl" example:"post0" doc:"Register block (sysctrl, overlay, post0-3, esmart0-1)"`
}

// RegistersData is a raw register dump.
type RegistersData struct {
	Block     string            `json:"block" example:"sysctrl" doc:"Dumped block"`
	Registers map[string]uint32 `json:"registers" doc:"Register values keyed by byte offset within the block"`
}

// RegistersResponse wraps RegistersData.
type RegistersResponse struct {
	Body RegistersData
}

// RouteRequest points an interface at a video port.
type RouteRequest struct {
	Mode string `path:"mode" example:"hdmi" doc:"Output interface (mipi, hdmi, lvds, edp, rgb, bt656, bt1120)"`
	Body struct {
		Port int `json:"port" minimum:"0" example:"1" doc:"Video port"`
	}
}

// EnableRequest makes one interface the only enabled output.
type EnableRequest struct {
	Mode string `path:"mode" example:"hdmi" doc:"Output interface (mipi, hdmi, lvds, edp, rgb, bt656, bt1120)"`
}

// PolarityRequest sets the polarity nibble, either raw or from timing
// flag names.
type PolarityRequest struct {
	Mode string `path:"mode" example:"hdmi" doc:"Output interface (mipi, hdmi, lvds, edp, rgb, bt656, bt1120)"`
	Body struct {
		Polarity *uint32  `json:"polarity,omitempty" example:"3" doc:"Raw 4-bit polarity nibble"`
		Flags    []string `json:"flags,omitempty" doc:"Timing flags to derive the nibble from"`
	}
}

// OutputData reports the routing after a change.
type OutputData struct {
	Output string `json:"output" example:"hdmi" doc:"Interface acted on"`
	Action string `json:"action" example:"routed" doc:"What changed"`
	Staged bool   `json:"staged" doc:"True until the next commit latches"`
}

// OutputResponse wraps OutputData.
type OutputResponse struct {
	Body OutputData
}

// CommitRequest asserts the commit bits of every staged block.
type CommitRequest struct {
	Body struct {
		Wait      bool `json:"wait,omitempty" doc:"Block until the commit latches"`
		Port      int  `json:"port,omitempty" minimum:"0" doc:"Port whose frame start is waited on"`
		TimeoutMs int  `json:"timeout_ms,omitempty" minimum:"0" example:"100" doc:"Wait timeout; 0 uses the configured default"`
	}
}

// CommitResponse wraps the commit result.
type CommitResponse struct {
	Body display.CommitResult
}
