package mmio

import (
	"testing"
)

// countingSurface records every transaction issued against it.
type countingSurface struct {
	*Memory
	reads  int
	writes int
}

func (c *countingSurface) Read32(off uint32) uint32 {
	c.reads++
	return c.Memory.Read32(off)
}

func (c *countingSurface) Write32(off uint32, v uint32) {
	c.writes++
	c.Memory.Write32(off, v)
}

func TestMemory_LittleEndian(t *testing.T) {
	m := NewMemory(16)
	m.Write32(4, 0x11223344)

	b := m.Bytes()
	want := []byte{0x44, 0x33, 0x22, 0x11}
	for i, w := range want {
		if b[4+i] != w {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", 4+i, b[4+i], w)
		}
	}
	if got := m.Read32(4); got != 0x11223344 {
		t.Errorf("Read32(4) = 0x%08x, want 0x11223344", got)
	}
}

func TestMemory_FaultsOnBadAccess(t *testing.T) {
	tests := []struct {
		name string
		off  uint32
	}{
		{"unaligned", 2},
		{"past end", 16},
		{"straddles end", 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("access at 0x%x did not fault", tt.off)
				}
			}()
			NewMemory(16).Read32(tt.off)
		})
	}
}

func TestModify32_SingleReadSingleWrite(t *testing.T) {
	s := &countingSurface{Memory: NewMemory(8)}
	s.Memory.Write32(0, 0xF0F0_00FF)

	got := Modify32(s, 0, 0x0000_00F0, 0x0000_0100)
	if got != 0xF0F0_010F {
		t.Errorf("Modify32 = 0x%08x, want 0xF0F0010F", got)
	}
	if s.reads != 1 || s.writes != 1 {
		t.Errorf("transactions = %d reads/%d writes, want 1/1", s.reads, s.writes)
	}
}
