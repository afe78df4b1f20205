package events

// Event type constants for kelindar/event.
const (
	TypeModeApplied uint32 = iota + 1
	TypeBringupFailed
	TypeCommitRequested
	TypeCommitLatched
	TypeOutputChanged
	TypeConfigReloaded
	TypeLogEntry
	TypeMetricsSnapshot
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ModeAppliedEvent is published after a display configuration has been
// written and committed.
type ModeAppliedEvent struct {
	Port      int    `json:"port" example:"0" doc:"Video port driving the output"`
	Output    string `json:"output" example:"mipi" doc:"Output interface"`
	Mode      string `json:"mode" example:"800x1280@59.98" doc:"Display mode"`
	Panel     string `json:"panel,omitempty" example:"th101mb31ig002" doc:"Panel model, if one was initialised"`
	Latched   bool   `json:"latched" doc:"Whether the commit was observed latching before the event"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ModeAppliedEvent.
func (e ModeAppliedEvent) Type() uint32 { return TypeModeApplied }

// BringupFailedEvent is published when applying a display configuration fails.
type BringupFailedEvent struct {
	Stage     string `json:"stage" example:"set_timing" doc:"Bring-up stage that failed"`
	Code      string `json:"code,omitempty" example:"VALUE_TOO_WIDE" doc:"Pipeline error code, if any"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BringupFailedEvent.
func (e BringupFailedEvent) Type() uint32 { return TypeBringupFailed }

// CommitRequestedEvent is published when commit bits are asserted.
type CommitRequestedEvent struct {
	Bits      string   `json:"bits" example:"global|port0" doc:"Asserted REG_CFG_DONE bits"`
	Blocks    []string `json:"blocks" doc:"Blocks now waiting for the frame boundary"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommitRequestedEvent.
func (e CommitRequestedEvent) Type() uint32 { return TypeCommitRequested }

// CommitLatchedEvent is published when requested blocks become active.
type CommitLatchedEvent struct {
	Blocks    []string `json:"blocks" doc:"Blocks that latched"`
	LatencyMs float64  `json:"latency_ms" example:"16.6" doc:"Time from request to latch"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CommitLatchedEvent.
func (e CommitLatchedEvent) Type() uint32 { return TypeCommitLatched }

// OutputChangedEvent reports a routing, enable or polarity change made
// through the API.
type OutputChangedEvent struct {
	Output    string `json:"output" example:"hdmi" doc:"Output interface"`
	Action    string `json:"action" example:"enabled" doc:"routed, enabled or polarity"`
	Port      int    `json:"port,omitempty" doc:"Video port for routed"`
	Polarity  uint32 `json:"polarity,omitempty" doc:"Polarity nibble for polarity"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OutputChangedEvent.
func (e OutputChangedEvent) Type() uint32 { return TypeOutputChanged }

// ConfigReloadedEvent is published when the display file changes on disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"/etc/vop2ctl/display.toml" doc:"Reloaded file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// LogEntryEvent carries one log record to /api/logs/stream.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Record time"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"vop2" doc:"Emitting module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// MetricsSnapshotEvent is the periodic summary streamed on /api/metrics.
type MetricsSnapshotEvent struct {
	RegisterWrites uint64  `json:"register_writes" doc:"Register writes since start"`
	RegisterReads  uint64  `json:"register_reads" doc:"Register reads since start"`
	Commits        uint64  `json:"commits" doc:"REG_CFG_DONE assertions since start"`
	Latched        uint64  `json:"latched" doc:"Commits observed latching"`
	LastLatencyMs  float64 `json:"last_latency_ms" example:"16.6" doc:"Latency of the most recent latch"`
	Errors         uint64  `json:"errors" doc:"Pipeline errors since start"`
	ModesApplied   uint64  `json:"modes_applied" doc:"Successful bring-ups since start"`
	Timestamp      string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Snapshot time"`
}

// Type returns the event type identifier for MetricsSnapshotEvent.
func (e MetricsSnapshotEvent) Type() uint32 { return TypeMetricsSnapshot }
