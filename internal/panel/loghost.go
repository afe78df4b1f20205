package panel

import (
	"fmt"
	"sync"

	"github.com/smazurov/vop2ctl/internal/logging"
)

// Packet is one transmitted DCS write.
type Packet struct {
	DataType byte
	Payload  []byte
}

func (p Packet) String() string {
	return fmt.Sprintf("%02x % x", p.DataType, p.Payload)
}

// LogHost is a DSIHost that only logs and records what it would send.
// It stands in for the DSI controller in dry runs and simulation.
type LogHost struct {
	mu      sync.Mutex
	logger  logging.Logger
	config  *DSIConfig
	packets []Packet
}

// NewLogHost creates a recording host. A nil logger uses the panel logger.
func NewLogHost(logger logging.Logger) *LogHost {
	if logger == nil {
		logger = logging.GetLogger("panel")
	}
	return &LogHost{logger: logger}
}

// Attach implements DSIHost.
func (h *LogHost) Attach(cfg DSIConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.config = &cfg
	h.logger.Debug("DSI attach", "config", cfg.String())
	return nil
}

// WriteDCS implements DSIHost.
func (h *LogHost) WriteDCS(payload []byte) error {
	pkt := Packet{DataType: DataType(payload), Payload: append([]byte(nil), payload...)}
	h.mu.Lock()
	h.packets = append(h.packets, pkt)
	h.mu.Unlock()
	h.logger.Debug("DCS write", "packet", pkt.String())
	return nil
}

// Packets returns everything written so far.
func (h *LogHost) Packets() []Packet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Packet(nil), h.packets...)
}

// Config returns the last attached link configuration.
func (h *LogHost) Config() (DSIConfig, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.config == nil {
		return DSIConfig{}, false
	}
	return *h.config, true
}
