package vop2

import (
	"testing"

	"github.com/smazurov/vop2ctl/internal/mmio"
)

func TestRegisterOffsets(t *testing.T) {
	tests := []struct {
		name string
		reg  Reg
		want uint32
	}{
		{"REG_CFG_DONE", SysRegCfgDone, 0x00},
		{"VERSION_INFO", SysVersionInfo, 0x04},
		{"AUTOGATING_CTRL", SysAutogatingCtrl, 0x08},
		{"DSP_EN", SysDspEn, 0x28},
		{"DSP_CTRL", SysDspCtrl, 0x2c},
		{"DSP_POL", SysDspPol, 0x30},
		{"OTP_WIN", SysOtpWin, 0x50},
		{"VP0_INTR_CLR", SysPortIntrClr(0), 0xa4},
		{"VP0_INTR_RAW", SysPortIntrStatusRaw(0), 0xac},
		{"VP2_INTR_CLR", SysPortIntrClr(2), 0xc4},
		{"OVERLAY_LAYER_SEL", OvlLayerSel, 0x04},
		{"OVERLAY_PORT_SEL", OvlPortSel, 0x08},
		{"POST_DSP_BG", PostDspBg, 0x2c},
		{"POST_DSP_HTOTAL_HS_END", PostDspHtotalHsEnd, 0x48},
		{"POST_DSP_VACT_ST_END", PostDspVactStEnd, 0x54},
		{"ESMART_REGION0_MST_CTL", EsmartRegion0MstCtl, 0x10},
		{"ESMART_REGION0_VIR", EsmartRegion0Vir, 0x1c},
		{"ESMART_REGION0_SCL_FACTOR_YRGB", EsmartRegion0SclFactorYrgb, 0x34},
	}

	for _, tt := range tests {
		if uint32(tt.reg) != tt.want {
			t.Errorf("%s = 0x%02x, want 0x%02x", tt.name, uint32(tt.reg), tt.want)
		}
	}
}

func TestBlockBases(t *testing.T) {
	tests := []struct {
		block Block
		want  uint32
	}{
		{SysCtrlBlock(), 0x0000},
		{OverlayBlock(), 0x0600},
		{Block{Kind: KindPost, Index: 0}, 0x0c00},
		{Block{Kind: KindPost, Index: 3}, 0x0f00},
		{Block{Kind: KindEsmart, Index: 0}, 0x1800},
		{Block{Kind: KindEsmart, Index: 1}, 0x1a00},
	}

	for _, tt := range tests {
		if got := tt.block.Base(); got != tt.want {
			t.Errorf("%s base = 0x%04x, want 0x%04x", tt.block, got, tt.want)
		}
		if end := tt.block.Base() + tt.block.Size(); end > WindowSize {
			t.Errorf("%s ends at 0x%04x, past the window", tt.block, end)
		}
	}
}

func TestBlockRangeCheck(t *testing.T) {
	for _, port := range []int{-1, NumPorts, 100} {
		if _, err := PostBlock(port); !IsCode(err, ErrOutOfRange) {
			t.Errorf("PostBlock(%d) error = %v, want %s", port, err, ErrOutOfRange)
		}
	}
	for _, plane := range []int{-1, NumEsmart} {
		if _, err := EsmartBlock(plane); !IsCode(err, ErrOutOfRange) {
			t.Errorf("EsmartBlock(%d) error = %v, want %s", plane, err, ErrOutOfRange)
		}
	}
	if b, err := EsmartBlock(1); err != nil || b.String() != "esmart1" {
		t.Errorf("EsmartBlock(1) = %v, %v", b, err)
	}
}

func TestBlockValidate(t *testing.T) {
	for _, b := range Blocks() {
		if err := b.Validate(); err != nil {
			t.Errorf("%s: Validate() = %v", b, err)
		}
	}
	for _, b := range []Block{
		{Kind: KindPost, Index: NumPorts},
		{Kind: KindPost, Index: 7},
		{Kind: KindEsmart, Index: NumEsmart},
		{Kind: KindEsmart, Index: 5},
		{Kind: KindSysCtrl, Index: 1},
		{Kind: BlockKind(9)},
	} {
		if err := b.Validate(); !IsCode(err, ErrOutOfRange) {
			t.Errorf("%s: Validate() = %v, want %s", b, err, ErrOutOfRange)
		}
	}
}

func TestParseBlock(t *testing.T) {
	for _, b := range Blocks() {
		got, err := ParseBlock(b.String())
		if err != nil || got != b {
			t.Errorf("ParseBlock(%q) = %v, %v", b.String(), got, err)
		}
	}
	if _, err := ParseBlock("cluster0"); !IsCode(err, ErrOutOfRange) {
		t.Errorf("ParseBlock(cluster0) error = %v", err)
	}
}

func TestBank_AddressesItsBlock(t *testing.T) {
	mem := mmio.NewMemory(WindowSize)
	post2, _ := PostBlock(2)
	bank := NewBank(mem, post2)

	bank.Write(PostDspBg, 0x12345678)
	if got := mem.Read32(0x0e00 + 0x2c); got != 0x12345678 {
		t.Fatalf("raw read = 0x%08x", got)
	}

	bank.Modify(PostDspBg, 0xff, 0x01)
	if got := bank.Read(PostDspBg); got != 0x12345601 {
		t.Errorf("after Modify = 0x%08x, want 0x12345601", got)
	}

	dump := bank.Dump()
	if len(dump) != int(post2.Size()/4) {
		t.Fatalf("Dump() returned %d registers", len(dump))
	}
	if dump[PostDspBg/4] != 0x12345601 {
		t.Errorf("Dump()[bg] = 0x%08x", dump[PostDspBg/4])
	}
}
