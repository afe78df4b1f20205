package display

import (
	"io"

	"github.com/smazurov/vop2ctl/internal/config"
	"github.com/smazurov/vop2ctl/internal/mmio"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Registers is an opened register window.
type Registers struct {
	Surface mmio.Surface
	// Sim is set when the window is simulated; the caller ticks it.
	Sim *vop2.Sim
	io.Closer
}

// OpenRegisters maps the VOP2 window described by cfg, or builds a
// simulated block when cfg.Simulate is set.
func OpenRegisters(cfg config.RegistersConfig) (*Registers, error) {
	if cfg.Simulate {
		sim := vop2.NewSim()
		return &Registers{Surface: sim, Sim: sim, Closer: nopCloser{}}, nil
	}
	mem, err := mmio.Open(cfg.Device, cfg.Base, vop2.WindowSize)
	if err != nil {
		return nil, err
	}
	return &Registers{Surface: mem, Closer: mem}, nil
}

// Options returns the service options matching the window.
func (r *Registers) Options() []Option {
	if r.Sim == nil {
		return nil
	}
	return []Option{WithSim(r.Sim)}
}
