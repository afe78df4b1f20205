package vop2

import (
	"bytes"
	"testing"

	"github.com/smazurov/vop2ctl/internal/mmio"
	"github.com/smazurov/vop2ctl/internal/videomode"
)

func newTestRouter() (*Router, *mmio.Memory) {
	mem := mmio.NewMemory(WindowSize)
	return NewRouter(NewBank(mem, SysCtrlBlock()), RK3568), mem
}

func TestRouter_UnsupportedModesWriteNothing(t *testing.T) {
	unsupported := []OutputMode{OutputLVDS, OutputEDP, OutputRGB, OutputBT656, OutputBT1120}

	for _, mode := range unsupported {
		t.Run(mode.String(), func(t *testing.T) {
			r, mem := newTestRouter()
			mem.Write32(uint32(SysDspEn), 0xa5a5a5a5)
			mem.Write32(uint32(SysDspPol), 0x5a5a5a5a)
			before := mem.Bytes()

			if err := r.Route(mode, 0); !IsCode(err, ErrUnsupportedMode) {
				t.Errorf("Route error = %v, want %s", err, ErrUnsupportedMode)
			}
			if err := r.Enable(mode); !IsCode(err, ErrUnsupportedMode) {
				t.Errorf("Enable error = %v, want %s", err, ErrUnsupportedMode)
			}
			if err := r.SetPolarity(mode, 0xf); !IsCode(err, ErrUnsupportedMode) {
				t.Errorf("SetPolarity error = %v, want %s", err, ErrUnsupportedMode)
			}

			if !bytes.Equal(before, mem.Bytes()) {
				t.Error("register window changed after a rejected call")
			}
		})
	}
}

func TestRouter_RouteRejectsBadPort(t *testing.T) {
	r, mem := newTestRouter()
	before := mem.Bytes()
	if err := r.Route(OutputMIPI, NumPorts); !IsCode(err, ErrOutOfRange) {
		t.Fatalf("error = %v, want %s", err, ErrOutOfRange)
	}
	if !bytes.Equal(before, mem.Bytes()) {
		t.Error("register window changed after a rejected route")
	}
}

func TestRouter_Route(t *testing.T) {
	r, mem := newTestRouter()
	mem.Write32(uint32(SysDspEn), 0xffffffff)

	if err := r.Route(OutputHDMI, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Route(OutputMIPI, 1); err != nil {
		t.Fatal(err)
	}

	en := mem.Read32(uint32(SysDspEn))
	if got := FieldHDMIInfaceMux.Unpack(en); got != 2 {
		t.Errorf("hdmi mux = %d, want 2", got)
	}
	if got := FieldMIPIInfaceMux.Unpack(en); got != 1 {
		t.Errorf("mipi mux = %d, want 1", got)
	}
	if en|FieldHDMIInfaceMux.Mask()|FieldMIPIInfaceMux.Mask() != 0xffffffff {
		t.Errorf("bits outside the mux fields changed: 0x%08x", en)
	}
}

func TestRouter_EnableIsExclusive(t *testing.T) {
	r, mem := newTestRouter()
	// Every out-enable bit set plus unrelated bits that must survive.
	mem.Write32(uint32(SysDspEn), allOutEn|FieldMIPIInfaceMux.Mask()|1<<28)

	if err := r.Enable(OutputHDMI); err != nil {
		t.Fatal(err)
	}
	if err := r.Enable(OutputMIPI); err != nil {
		t.Fatal(err)
	}

	en := mem.Read32(uint32(SysDspEn))
	for mode, f := range enableFields {
		want := uint32(0)
		if mode == OutputMIPI {
			want = 1
		}
		if got := f.Unpack(en); got != want {
			t.Errorf("%s enable = %d, want %d", mode, got, want)
		}
	}
	if en&^allOutEn != FieldMIPIInfaceMux.Mask()|1<<28 {
		t.Errorf("non-enable bits changed: 0x%08x", en)
	}
}

func TestRouter_EnableIsOneWrite(t *testing.T) {
	mem := mmio.NewMemory(WindowSize)
	c := &countingSurface{Surface: mem}
	r := NewRouter(NewBank(c, SysCtrlBlock()), RK3568)

	if err := r.Enable(OutputHDMI); err != nil {
		t.Fatal(err)
	}
	if c.writes != 1 {
		t.Errorf("Enable issued %d writes, want 1", c.writes)
	}
}

func TestRouter_PolarityKeepsOtherNibbles(t *testing.T) {
	r, mem := newTestRouter()
	mem.Write32(uint32(SysDspPol), 0xffffffff)

	if err := r.SetPolarity(OutputMIPI, 0b0101); err != nil {
		t.Fatal(err)
	}
	pol := mem.Read32(uint32(SysDspPol))
	if got := FieldMIPIPol.Unpack(pol); got != 0b0101 {
		t.Errorf("mipi polarity = %04b, want 0101", got)
	}
	for _, f := range []Field{FieldHDMIPol, FieldEDPPol, FieldLVDSPol} {
		if got := f.Unpack(pol); got != 0xf {
			t.Errorf("%s = %04b, want 1111", f.Name, got)
		}
	}

	if err := r.SetPolarity(OutputHDMI, 0x10); !IsCode(err, ErrValueTooWide) {
		t.Errorf("5-bit polarity error = %v, want %s", err, ErrValueTooWide)
	}
}

func TestRouter_State(t *testing.T) {
	r, _ := newTestRouter()
	_ = r.Route(OutputHDMI, 1)
	_ = r.Enable(OutputHDMI)
	_ = r.SetPolarity(OutputHDMI, PolHSyncHigh|PolVSyncHigh)

	for _, st := range r.State() {
		switch st.Mode {
		case OutputHDMI:
			if !st.Wired || !st.Enabled || st.Port != 1 || st.Polarity != 0b0011 {
				t.Errorf("hdmi state = %+v", st)
			}
		case OutputMIPI:
			if !st.Wired || st.Enabled {
				t.Errorf("mipi state = %+v", st)
			}
		default:
			if st.Wired || st.Enabled {
				t.Errorf("%s state = %+v", st.Mode, st)
			}
		}
	}
}

func TestPolarityFromFlags(t *testing.T) {
	tests := []struct {
		flags videomode.Flags
		want  Polarity
	}{
		{0, 0},
		{videomode.HSyncHigh | videomode.VSyncHigh, 0b0011},
		{videomode.DELow, 0b0100},
		{videomode.DEHigh, 0},
		{videomode.PixDataNegedge | videomode.HSyncHigh, 0b1001},
	}
	for _, tt := range tests {
		if got := PolarityFromFlags(tt.flags); got != tt.want {
			t.Errorf("PolarityFromFlags(%b) = %s, want %s", tt.flags, got, tt.want)
		}
	}
}

func TestParseOutputMode(t *testing.T) {
	for _, m := range OutputModes() {
		got, err := ParseOutputMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseOutputMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if got, err := ParseOutputMode("MIPI"); err != nil || got != OutputMIPI {
		t.Errorf("ParseOutputMode(MIPI) = %v, %v", got, err)
	}
	if _, err := ParseOutputMode("dvi"); !IsCode(err, ErrUnsupportedMode) {
		t.Errorf("ParseOutputMode(dvi) error = %v", err)
	}
}

func TestParseVariant(t *testing.T) {
	for in, want := range map[string]string{
		"rk3568":              "rk3568",
		"rockchip,rk3566-vop": "rk3566",
		"":                    "rk3568",
	} {
		v, err := ParseVariant(in)
		if err != nil || v.Name != want {
			t.Errorf("ParseVariant(%q) = %v, %v", in, v.Name, err)
		}
	}
	if _, err := ParseVariant("rk3588"); err == nil {
		t.Error("ParseVariant(rk3588) succeeded")
	}
}
