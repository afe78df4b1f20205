package vop2

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/vop2ctl/internal/mmio"
)

// SimVersion is the VERSION_INFO value an RK3568 reports.
const SimVersion = 0x40158888

// Sim is a register-level model of the shadow/active banks. Writes land in
// the shadow bank; VBlank copies each block whose commit bits are all
// pending into the active bank, clears REG_CFG_DONE and raises frame start
// on every port. It is safe for concurrent use so Run can tick it while a
// driver writes.
type Sim struct {
	mu      sync.Mutex
	shadow  *mmio.Memory
	active  *mmio.Memory
	pending CommitBits
	raw     [NumPorts]uint32
	frames  uint64
}

// NewSim returns a model of a freshly reset block.
func NewSim() *Sim {
	s := &Sim{
		shadow: mmio.NewMemory(WindowSize),
		active: mmio.NewMemory(WindowSize),
	}
	s.shadow.Write32(SysCtrlOffset+uint32(SysVersionInfo), SimVersion)
	s.active.Write32(SysCtrlOffset+uint32(SysVersionInfo), SimVersion)
	return s
}

// Read32 implements mmio.Surface.
func (s *Sim) Read32(off uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off == uint32(SysRegCfgDone) {
		return uint32(s.pending)
	}
	for p := 0; p < NumPorts; p++ {
		switch off {
		case uint32(SysPortIntrStatusRaw(p)):
			return s.raw[p]
		case uint32(SysPortIntrClr(p)):
			return 0
		}
	}
	return s.shadow.Read32(off)
}

// Write32 implements mmio.Surface. REG_CFG_DONE is write-one-to-set and the
// interrupt clear registers take a write mask in the upper half.
func (s *Sim) Write32(off, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if off == uint32(SysRegCfgDone) {
		s.pending |= CommitBits(v) & allCommitBits
		return
	}
	for p := 0; p < NumPorts; p++ {
		if off == uint32(SysPortIntrClr(p)) {
			s.raw[p] &^= v & (v >> 16) & 0xffff
			return
		}
	}
	s.shadow.Write32(off, v)
}

// VBlank simulates one frame boundary.
func (s *Sim) VBlank() []Block {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latched []Block
	for _, b := range Blocks() {
		req := RequiredBits(b)
		if s.pending&req != req {
			continue
		}
		for off := b.Base(); off < b.Base()+b.Size(); off += 4 {
			s.active.Write32(off, s.shadow.Read32(off))
		}
		latched = append(latched, b)
	}
	s.pending = 0
	for p := range s.raw {
		s.raw[p] |= IntrFrameStart
	}
	s.frames++
	return latched
}

// Run ticks VBlank every period until ctx ends.
func (s *Sim) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.VBlank()
		}
	}
}

// Pending returns the commit bits waiting for the next frame boundary.
func (s *Sim) Pending() CommitBits {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Frames counts simulated frame boundaries.
func (s *Sim) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Active reads the latched value of a register.
func (s *Sim) Active(b Block, r Reg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Read32(b.Base() + uint32(r))
}

// Shadow reads the staged value of a register.
func (s *Sim) Shadow(b Block, r Reg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow.Read32(b.Base() + uint32(r))
}

// ShadowBytes copies the whole shadow bank.
func (s *Sim) ShadowBytes() []byte {
	return s.shadow.Bytes()
}
