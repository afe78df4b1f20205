package vop2

import (
	"fmt"
	"unsafe"

	"github.com/smazurov/vop2ctl/internal/mmio"
)

// Block placement within the register window.
const (
	SysCtrlOffset = 0x0000
	OverlayOffset = 0x0600
	PostOffset    = 0x0c00 // + port * PostStride
	PostStride    = 0x100
	ClusterOffset = 0x1000 // + n * ClusterStride, cluster windows are not driven
	ClusterStride = 0x200
	EsmartOffset  = 0x1800 // + plane * EsmartStride
	EsmartStride  = 0x200

	// WindowSize covers every block this package addresses.
	WindowSize = 0x2000
)

// Physical instance counts.
const (
	NumPorts   = 4
	NumEsmart  = 2
	NumCluster = 2
)

// IntrRegs is one interrupt register group (enable, clear, status, raw).
type IntrRegs struct {
	En        uint32
	Clr       uint32
	Status    uint32
	StatusRaw uint32
}

// SysCtrl is the system control block layout.
type SysCtrl struct {
	RegCfgDone          uint32
	VersionInfo         uint32
	AutogatingCtrl      uint32
	WinRegCfgDone       uint32
	AxiCtrl0            uint32
	AxiHurryCtrl0       uint32
	AxiHurryCtrl1       uint32
	AxiOutstandingCtrl0 uint32
	AxiOutstandingCtrl1 uint32
	AxiLutCtrl          uint32
	DspEn               uint32
	DspCtrl             uint32
	DspPol              uint32
	PwrCtrl             uint32
	VarFreqCtrl         uint32
	MmuRaddrRange       uint32
	WbCtrl0             uint32
	WbXspd              uint32
	WbYrgbMst           uint32
	WbCbrMst            uint32
	OtpWin              uint32
	OtpMirrCtrl         uint32
	LutPortSel          uint32
	PwrStableCtrl       uint32
	Status              [4]uint32
	LineFlag            [4]uint32
	Sys0Intr            IntrRegs
	Sys1Intr            IntrRegs
	PortIntr            [NumPorts]IntrRegs
}

// Overlay is the overlay (layer mixing) block layout.
type Overlay struct {
	OverlayCtrl uint32
	LayerSel    uint32
	PortSel     uint32
}

// Post is the per-port post-processing and timing block layout.
type Post struct {
	DspCtrl         uint32
	MipiCtrl        uint32
	ColorCtrl       uint32
	Reserved2       uint32
	LutReserved     [4]uint32
	Reserved        [3]uint32
	DspBg           uint32
	PrescanHtimings uint32
	DspHactInfo     uint32
	DspVactInfo     uint32
	SclFactorYrgb   uint32
	SclCtrl         uint32
	DspVactInfoF1   uint32
	DspHtotalHsEnd  uint32
	DspHactStEnd    uint32
	DspVtotalVsEnd  uint32
	DspVactStEnd    uint32
	DspVsStEndF1    uint32
	DspVactStEndF1  uint32
}

// Esmart is the scalable image plane block layout.
type Esmart struct {
	Ctrl0                uint32
	Ctrl1                uint32
	Reserved0            [2]uint32
	Region0MstCtl        uint32
	Region0MstYrgb       uint32
	Region0MstCbcr       uint32
	Region0Vir           uint32
	Region0ActInfo       uint32
	Region0DspInfo       uint32
	Region0DspOffset     uint32
	Reserved1            uint32
	Region0SclCtrl       uint32
	Region0SclFactorYrgb uint32
	Region0SclFactorCbcr uint32
	Region0SclOffset     uint32
}

// Layout checkpoints. A reordered field fails to compile here.
var (
	_ = [1]struct{}{}[unsafe.Offsetof(SysCtrl{}.PortIntr)+3*unsafe.Sizeof(IntrRegs{})+unsafe.Offsetof(IntrRegs{}.StatusRaw)-0x00dc]
	_ = [1]struct{}{}[unsafe.Offsetof(Overlay{}.PortSel)-0x0008]
	_ = [1]struct{}{}[unsafe.Offsetof(Post{}.DspVactStEndF1)-0x005c]
	_ = [1]struct{}{}[unsafe.Offsetof(Esmart{}.Region0SclOffset)-0x003c]
)

// Reg is a register offset relative to its block base.
type Reg uint32

// System control registers.
const (
	SysRegCfgDone     = Reg(unsafe.Offsetof(SysCtrl{}.RegCfgDone))
	SysVersionInfo    = Reg(unsafe.Offsetof(SysCtrl{}.VersionInfo))
	SysAutogatingCtrl = Reg(unsafe.Offsetof(SysCtrl{}.AutogatingCtrl))
	SysDspEn          = Reg(unsafe.Offsetof(SysCtrl{}.DspEn))
	SysDspCtrl        = Reg(unsafe.Offsetof(SysCtrl{}.DspCtrl))
	SysDspPol         = Reg(unsafe.Offsetof(SysCtrl{}.DspPol))
	SysOtpWin         = Reg(unsafe.Offsetof(SysCtrl{}.OtpWin))
	SysStatus0        = Reg(unsafe.Offsetof(SysCtrl{}.Status))
	sysPortIntr       = Reg(unsafe.Offsetof(SysCtrl{}.PortIntr))
	intrRegsSize      = Reg(unsafe.Sizeof(IntrRegs{}))
)

// SysPortIntrClr is the write-one-to-clear interrupt register of a port.
func SysPortIntrClr(port int) Reg {
	return sysPortIntr + Reg(port)*intrRegsSize + Reg(unsafe.Offsetof(IntrRegs{}.Clr))
}

// SysPortIntrStatusRaw is the unmasked interrupt status of a port.
func SysPortIntrStatusRaw(port int) Reg {
	return sysPortIntr + Reg(port)*intrRegsSize + Reg(unsafe.Offsetof(IntrRegs{}.StatusRaw))
}

// Overlay registers.
const (
	OvlOverlayCtrl = Reg(unsafe.Offsetof(Overlay{}.OverlayCtrl))
	OvlLayerSel    = Reg(unsafe.Offsetof(Overlay{}.LayerSel))
	OvlPortSel     = Reg(unsafe.Offsetof(Overlay{}.PortSel))
)

// Post-processing registers.
const (
	PostDspCtrl        = Reg(unsafe.Offsetof(Post{}.DspCtrl))
	PostColorCtrl      = Reg(unsafe.Offsetof(Post{}.ColorCtrl))
	PostDspBg          = Reg(unsafe.Offsetof(Post{}.DspBg))
	PostDspHactInfo    = Reg(unsafe.Offsetof(Post{}.DspHactInfo))
	PostDspVactInfo    = Reg(unsafe.Offsetof(Post{}.DspVactInfo))
	PostSclFactorYrgb  = Reg(unsafe.Offsetof(Post{}.SclFactorYrgb))
	PostSclCtrl        = Reg(unsafe.Offsetof(Post{}.SclCtrl))
	PostDspHtotalHsEnd = Reg(unsafe.Offsetof(Post{}.DspHtotalHsEnd))
	PostDspHactStEnd   = Reg(unsafe.Offsetof(Post{}.DspHactStEnd))
	PostDspVtotalVsEnd = Reg(unsafe.Offsetof(Post{}.DspVtotalVsEnd))
	PostDspVactStEnd   = Reg(unsafe.Offsetof(Post{}.DspVactStEnd))
)

// Esmart registers.
const (
	EsmartCtrl0                = Reg(unsafe.Offsetof(Esmart{}.Ctrl0))
	EsmartRegion0MstCtl        = Reg(unsafe.Offsetof(Esmart{}.Region0MstCtl))
	EsmartRegion0MstYrgb       = Reg(unsafe.Offsetof(Esmart{}.Region0MstYrgb))
	EsmartRegion0Vir           = Reg(unsafe.Offsetof(Esmart{}.Region0Vir))
	EsmartRegion0ActInfo       = Reg(unsafe.Offsetof(Esmart{}.Region0ActInfo))
	EsmartRegion0DspInfo       = Reg(unsafe.Offsetof(Esmart{}.Region0DspInfo))
	EsmartRegion0DspOffset     = Reg(unsafe.Offsetof(Esmart{}.Region0DspOffset))
	EsmartRegion0SclCtrl       = Reg(unsafe.Offsetof(Esmart{}.Region0SclCtrl))
	EsmartRegion0SclFactorYrgb = Reg(unsafe.Offsetof(Esmart{}.Region0SclFactorYrgb))
	EsmartRegion0SclFactorCbcr = Reg(unsafe.Offsetof(Esmart{}.Region0SclFactorCbcr))
)

// BlockKind names one of the register sub-blocks.
type BlockKind int

// Block kinds.
const (
	KindSysCtrl BlockKind = iota
	KindOverlay
	KindPost
	KindEsmart
)

func (k BlockKind) String() string {
	switch k {
	case KindSysCtrl:
		return "sysctrl"
	case KindOverlay:
		return "overlay"
	case KindPost:
		return "post"
	case KindEsmart:
		return "esmart"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Block is one physical register block instance.
type Block struct {
	Kind  BlockKind
	Index int
}

// SysCtrlBlock returns the system control block.
func SysCtrlBlock() Block { return Block{Kind: KindSysCtrl} }

// OverlayBlock returns the overlay block.
func OverlayBlock() Block { return Block{Kind: KindOverlay} }

// PostBlock returns the post-processing block of a video port.
func PostBlock(port int) (Block, error) {
	if port < 0 || port >= NumPorts {
		return Block{}, newError(ErrOutOfRange, fmt.Sprintf("video port %d out of range", port),
			map[string]any{"port": port, "max": NumPorts - 1})
	}
	return Block{Kind: KindPost, Index: port}, nil
}

// EsmartBlock returns the block of an Esmart plane.
func EsmartBlock(plane int) (Block, error) {
	if plane < 0 || plane >= NumEsmart {
		return Block{}, newError(ErrOutOfRange, fmt.Sprintf("esmart plane %d out of range", plane),
			map[string]any{"plane": plane, "max": NumEsmart - 1})
	}
	return Block{Kind: KindEsmart, Index: plane}, nil
}

// Validate checks that b names a block that exists. Post and Esmart
// indices go through the same range check as PostBlock and EsmartBlock.
func (b Block) Validate() error {
	switch b.Kind {
	case KindPost:
		_, err := PostBlock(b.Index)
		return err
	case KindEsmart:
		_, err := EsmartBlock(b.Index)
		return err
	case KindSysCtrl, KindOverlay:
		if b.Index != 0 {
			return newError(ErrOutOfRange, fmt.Sprintf("%s has no instance %d", b.Kind, b.Index),
				map[string]any{"block": b.Kind.String(), "index": b.Index})
		}
		return nil
	}
	return newError(ErrOutOfRange, fmt.Sprintf("unknown block kind %d", int(b.Kind)), nil)
}

// Blocks lists every addressable block in address order.
func Blocks() []Block {
	blocks := []Block{SysCtrlBlock(), OverlayBlock()}
	for i := 0; i < NumPorts; i++ {
		blocks = append(blocks, Block{Kind: KindPost, Index: i})
	}
	for i := 0; i < NumEsmart; i++ {
		blocks = append(blocks, Block{Kind: KindEsmart, Index: i})
	}
	return blocks
}

// ParseBlock accepts the names produced by Block.String.
func ParseBlock(name string) (Block, error) {
	for _, b := range Blocks() {
		if b.String() == name {
			return b, nil
		}
	}
	return Block{}, newError(ErrOutOfRange, fmt.Sprintf("unknown register block %q", name), nil)
}

// Base is the byte offset of the block from the register window base.
func (b Block) Base() uint32 {
	switch b.Kind {
	case KindOverlay:
		return OverlayOffset
	case KindPost:
		return PostOffset + uint32(b.Index)*PostStride
	case KindEsmart:
		return EsmartOffset + uint32(b.Index)*EsmartStride
	default:
		return SysCtrlOffset
	}
}

// Size is the byte length of the block's register layout.
func (b Block) Size() uint32 {
	switch b.Kind {
	case KindOverlay:
		return uint32(unsafe.Sizeof(Overlay{}))
	case KindPost:
		return uint32(unsafe.Sizeof(Post{}))
	case KindEsmart:
		return uint32(unsafe.Sizeof(Esmart{}))
	default:
		return uint32(unsafe.Sizeof(SysCtrl{}))
	}
}

// Contains reports whether a window offset falls inside the block layout.
func (b Block) Contains(off uint32) bool {
	return off >= b.Base() && off < b.Base()+b.Size()
}

func (b Block) String() string {
	switch b.Kind {
	case KindPost, KindEsmart:
		return fmt.Sprintf("%s%d", b.Kind, b.Index)
	default:
		return b.Kind.String()
	}
}

// Bank gives register access to one block. Each call is one transaction.
type Bank struct {
	surface mmio.Surface
	block   Block
}

// NewBank binds a block to a register surface.
func NewBank(s mmio.Surface, b Block) Bank {
	return Bank{surface: s, block: b}
}

// Block returns the block this bank addresses.
func (b Bank) Block() Block { return b.block }

// Read reads one register.
func (b Bank) Read(r Reg) uint32 {
	return b.surface.Read32(b.block.Base() + uint32(r))
}

// Write writes one register.
func (b Bank) Write(r Reg, v uint32) {
	b.surface.Write32(b.block.Base()+uint32(r), v)
}

// Modify clears clr and sets set in one read and one write.
func (b Bank) Modify(r Reg, clr, set uint32) uint32 {
	return mmio.Modify32(b.surface, b.block.Base()+uint32(r), clr, set)
}

// Dump reads every register of the block in offset order.
func (b Bank) Dump() []uint32 {
	regs := make([]uint32, b.block.Size()/4)
	for i := range regs {
		regs[i] = b.Read(Reg(i * 4))
	}
	return regs
}
