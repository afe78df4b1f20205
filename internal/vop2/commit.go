package vop2

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/smazurov/vop2ctl/internal/mmio"
)

// CommitBits are the load-enable bits of REG_CFG_DONE. Writing a bit asks
// the hardware to copy the shadow registers it guards into the active bank
// at the next frame boundary; the bit reads back as set until that happens.
type CommitBits uint32

// Commit bits.
const (
	CommitPort0   CommitBits = 1 << 0 // LOAD_GLOBAL0
	CommitPort1   CommitBits = 1 << 1 // LOAD_GLOBAL1
	CommitPort2   CommitBits = 1 << 2
	CommitPort3   CommitBits = 1 << 3
	CommitEsmart0 CommitBits = 1 << 10
	CommitEsmart1 CommitBits = 1 << 11
	CommitGlobal  CommitBits = 1 << 15 // GLOBAL_REGDONE

	allCommitBits = CommitPort0 | CommitPort1 | CommitPort2 | CommitPort3 |
		CommitEsmart0 | CommitEsmart1 | CommitGlobal
)

// commitPort returns the load bit of a video port. Callers pass a
// validated index.
func commitPort(port int) CommitBits {
	return CommitPort0 << uint(port)
}

// commitEsmart returns the load bit of a validated Esmart plane index.
func commitEsmart(plane int) CommitBits {
	return CommitEsmart0 << uint(plane)
}

func (b CommitBits) String() string {
	if b == 0 {
		return "none"
	}
	var names []string
	if b&CommitGlobal != 0 {
		names = append(names, "global")
	}
	for i := 0; i < NumPorts; i++ {
		if b&commitPort(i) != 0 {
			names = append(names, fmt.Sprintf("port%d", i))
		}
	}
	for i := 0; i < NumEsmart; i++ {
		if b&commitEsmart(i) != 0 {
			names = append(names, fmt.Sprintf("esmart%d", i))
		}
	}
	if rest := b &^ allCommitBits; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// RequiredBits returns the bits that must be asserted before writes to b
// take effect. Global blocks latch on GLOBAL_REGDONE, a port's timing block
// additionally on its own load bit, and an Esmart plane only on its own bit.
// A block that fails Validate needs nothing.
func RequiredBits(b Block) CommitBits {
	if b.Validate() != nil {
		return 0
	}
	switch b.Kind {
	case KindPost:
		return CommitGlobal | commitPort(b.Index)
	case KindEsmart:
		return commitEsmart(b.Index)
	default:
		return CommitGlobal
	}
}

// Interrupt bits of the per-port interrupt registers.
const (
	IntrFrameStart uint32 = 1 << 0
	IntrFrameEnd   uint32 = 1 << 1
	IntrLineFlag0  uint32 = 1 << 2
)

// Phase is where a block is in the shadow/commit cycle.
type Phase int

// Phases.
const (
	PhaseActive          Phase = iota // shadow and active banks agree
	PhaseStaged                       // shadow written, no commit asserted
	PhaseCommitRequested              // commit asserted, waiting for frame boundary
)

func (p Phase) String() string {
	switch p {
	case PhaseStaged:
		return "staged"
	case PhaseCommitRequested:
		return "commit_requested"
	default:
		return "active"
	}
}

// RegWrite is one register update of a CommitRequest. A zero Mask writes
// the whole register; otherwise only the masked bits change.
type RegWrite struct {
	Block Block
	Reg   Reg
	Mask  uint32
	Value uint32
}

// CommitRequest is one logical configuration change: its register writes
// and the commit bits that make them effective. Zero Bits means "whatever
// the touched blocks require".
type CommitRequest struct {
	Writes []RegWrite
	Bits   CommitBits
}

// Protocol sequences shadow writes and commit requests. It is not safe for
// concurrent use; the owner of the hardware serialises calls.
type Protocol struct {
	surface   mmio.Surface
	sys       Bank
	phases    map[Block]Phase
	requested map[Block]time.Time
	interval  time.Duration

	onRequested func(bits CommitBits, blocks []Block)
	onLatched   func(blocks []Block, elapsed time.Duration)
}

// NewProtocol creates a protocol over the register surface.
func NewProtocol(s mmio.Surface) *Protocol {
	return &Protocol{
		surface:   s,
		sys:       NewBank(s, SysCtrlBlock()),
		phases:    make(map[Block]Phase),
		requested: make(map[Block]time.Time),
		interval:  time.Millisecond,
	}
}

// Stage records that b's shadow registers changed.
func (p *Protocol) Stage(b Block) {
	p.phases[b] = PhaseStaged
	delete(p.requested, b)
}

// Phase reports the current phase of b.
func (p *Protocol) Phase(b Block) Phase {
	return p.phases[b]
}

// Staged lists the blocks with writes not yet covered by a commit request.
func (p *Protocol) Staged() []Block {
	return p.inPhase(PhaseStaged)
}

// Pending lists the blocks waiting for a frame boundary.
func (p *Protocol) Pending() []Block {
	return p.inPhase(PhaseCommitRequested)
}

// Submit validates every write of req, applies them, then asserts the
// commit bits in a single register write. A batch with any invalid write
// touches nothing.
func (p *Protocol) Submit(req CommitRequest) (CommitBits, error) {
	for _, w := range req.Writes {
		if err := w.Block.Validate(); err != nil {
			return 0, err
		}
		if w.Mask != 0 && w.Value&^w.Mask != 0 {
			return 0, newError(ErrValueTooWide,
				fmt.Sprintf("%s+0x%02x: value 0x%08x outside mask 0x%08x", w.Block, uint32(w.Reg), w.Value, w.Mask),
				map[string]any{"block": w.Block.String(), "reg": uint32(w.Reg)})
		}
		if uint32(w.Reg) >= w.Block.Size() || w.Reg%4 != 0 {
			return 0, newError(ErrOutOfRange,
				fmt.Sprintf("register 0x%02x is outside %s", uint32(w.Reg), w.Block), nil)
		}
	}

	bits := req.Bits
	for _, w := range req.Writes {
		bank := NewBank(p.surface, w.Block)
		if w.Mask == 0 {
			bank.Write(w.Reg, w.Value)
		} else {
			bank.Modify(w.Reg, w.Mask, w.Value)
		}
		p.Stage(w.Block)
		if req.Bits == 0 {
			bits |= RequiredBits(w.Block)
		}
	}

	if bits == 0 {
		return 0, nil
	}
	p.Request(bits)
	return bits, nil
}

// Commit asserts every bit the staged blocks need.
func (p *Protocol) Commit() CommitBits {
	var bits CommitBits
	for _, b := range p.Staged() {
		bits |= RequiredBits(b)
	}
	if bits == 0 {
		return 0
	}
	p.Request(bits)
	return bits
}

// Request asserts bits with one write to REG_CFG_DONE. Staged blocks whose
// required bits are all pending afterwards move to PhaseCommitRequested;
// every other block is left alone.
func (p *Protocol) Request(bits CommitBits) []Block {
	pending := CommitBits(p.sys.Read(SysRegCfgDone)) & allCommitBits
	p.sys.Write(SysRegCfgDone, uint32(bits))
	effective := pending | bits

	now := time.Now()
	var moved []Block
	for _, b := range p.Staged() {
		req := RequiredBits(b)
		if effective&req == req {
			p.phases[b] = PhaseCommitRequested
			p.requested[b] = now
			moved = append(moved, b)
		}
	}
	if p.onRequested != nil {
		p.onRequested(bits, moved)
	}
	return moved
}

// Sync reads REG_CFG_DONE and marks every requested block whose bits the
// hardware has cleared as active. It returns the blocks that latched.
func (p *Protocol) Sync() []Block {
	pending := CommitBits(p.sys.Read(SysRegCfgDone)) & allCommitBits

	var latched []Block
	var oldest time.Time
	for _, b := range p.Pending() {
		if pending&RequiredBits(b) != 0 {
			continue
		}
		if t := p.requested[b]; oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
		p.phases[b] = PhaseActive
		delete(p.requested, b)
		latched = append(latched, b)
	}
	if len(latched) > 0 && p.onLatched != nil {
		p.onLatched(latched, time.Since(oldest))
	}
	return latched
}

// Wait blocks until every requested block has latched, using the frame
// start interrupt of port as the tick. It fails with ErrCommitTimeout when
// ctx ends first; the requests stay pending in that case.
func (p *Protocol) Wait(ctx context.Context, port int) error {
	if _, err := PostBlock(port); err != nil {
		return err
	}
	clr := SysPortIntrClr(port)
	raw := SysPortIntrStatusRaw(port)

	p.Sync()
	if len(p.Pending()) == 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.sys.Read(raw)&IntrFrameStart != 0 {
			p.sys.Write(clr, IntrFrameStart<<16|IntrFrameStart)
			p.Sync()
			if len(p.Pending()) == 0 {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			e := newError(ErrCommitTimeout,
				fmt.Sprintf("port %d: commit not latched", port),
				map[string]any{"port": port, "pending": blockNames(p.Pending())})
			e.Cause = ctx.Err()
			return e
		case <-ticker.C:
		}
	}
}

func (p *Protocol) inPhase(phase Phase) []Block {
	var out []Block
	for b, ph := range p.phases {
		if ph == phase {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b Block) int {
		return int(a.Base()) - int(b.Base())
	})
	return out
}

func blockNames(blocks []Block) []string {
	names := make([]string, len(blocks))
	for i, b := range blocks {
		names[i] = b.String()
	}
	return names
}
