package videomode

import (
	"math"
	"testing"
)

func TestTiming_Totals(t *testing.T) {
	tm := Timing{
		PixelClock:  73500000,
		HActive:     800,
		HFrontPorch: 64,
		HBackPorch:  64,
		HSyncLen:    16,
		VActive:     1280,
		VFrontPorch: 2,
		VBackPorch:  12,
		VSyncLen:    4,
	}

	if got := tm.HTotal(); got != 944 {
		t.Errorf("HTotal() = %d, want 944", got)
	}
	if got := tm.VTotal(); got != 1298 {
		t.Errorf("VTotal() = %d, want 1298", got)
	}
	if hz := tm.RefreshHz(); math.Abs(hz-59.98) > 0.01 {
		t.Errorf("RefreshHz() = %.3f, want ~59.98", hz)
	}
	if err := tm.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestTiming_Validate(t *testing.T) {
	tests := []struct {
		name    string
		timing  Timing
		wantErr bool
	}{
		{"empty", Timing{}, true},
		{"no sync", Timing{HActive: 640, VActive: 480}, true},
		{"ok", Timing{HActive: 640, VActive: 480, HSyncLen: 96, VSyncLen: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.timing.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlags_ParseAndString(t *testing.T) {
	f, err := ParseFlags([]string{"hsync_high", " VSYNC_HIGH", "de_low"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if f != HSyncHigh|VSyncHigh|DELow {
		t.Errorf("ParseFlags() = %b", f)
	}
	if got := f.String(); got != "hsync_high|vsync_high|de_low" {
		t.Errorf("String() = %q", got)
	}

	if _, err := ParseFlags([]string{"doublescan"}); err == nil {
		t.Error("unknown flag should fail")
	}
	if _, err := ParseFlags([]string{"de_high", "de_low"}); err == nil {
		t.Error("conflicting DE flags should fail")
	}
}
