package mmio

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Surface is a window of 32-bit registers addressed by byte offset.
type Surface interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// Modify32 clears the bits in clr and sets the bits in set with a single
// read followed by a single write.
func Modify32(s Surface, off, clr, set uint32) uint32 {
	v := (s.Read32(off) &^ clr) | set
	s.Write32(off, v)
	return v
}

// Memory is a byte-backed Surface. The zero value is unusable; use NewMemory.
type Memory struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemory allocates a zeroed register window of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{buf: make([]byte, size)}
}

// Size returns the window size in bytes.
func (m *Memory) Size() int {
	return len(m.buf)
}

// Read32 implements Surface.
func (m *Memory) Read32(off uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.check(off)
	return binary.LittleEndian.Uint32(m.buf[off:])
}

// Write32 implements Surface.
func (m *Memory) Write32(off uint32, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.check(off)
	binary.LittleEndian.PutUint32(m.buf[off:], v)
}

// Bytes returns a copy of the window contents.
func (m *Memory) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.buf))
	copy(out, m.buf)
	return out
}

// check mirrors what the bus does with a bad access: it faults.
func (m *Memory) check(off uint32) {
	if off%4 != 0 {
		panic(fmt.Sprintf("mmio: unaligned access at 0x%04x", off))
	}
	if int(off)+4 > len(m.buf) {
		panic(fmt.Sprintf("mmio: access at 0x%04x outside %d byte window", off, len(m.buf)))
	}
}
