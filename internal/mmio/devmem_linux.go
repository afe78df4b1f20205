//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultDevice is the character device exposing physical memory.
const DefaultDevice = "/dev/mem"

// DevMem is a Surface over a physical register window mapped from /dev/mem.
type DevMem struct {
	base uintptr
	mem  []byte
}

// Open maps size bytes of physical memory starting at base. Both must be
// page aligned.
func Open(path string, base uint64, size int) (*DevMem, error) {
	page := uint64(os.Getpagesize())
	if base%page != 0 {
		return nil, fmt.Errorf("register base 0x%x is not page aligned", base)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map 0x%x+0x%x: %w", base, size, err)
	}

	return &DevMem{base: uintptr(base), mem: mem}, nil
}

// Read32 implements Surface.
func (d *DevMem) Read32(off uint32) uint32 {
	return atomic.LoadUint32(d.reg(off))
}

// Write32 implements Surface.
func (d *DevMem) Write32(off uint32, v uint32) {
	atomic.StoreUint32(d.reg(off), v)
}

// Close unmaps the window.
func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem = nil
	return err
}

func (d *DevMem) reg(off uint32) *uint32 {
	if off%4 != 0 || int(off)+4 > len(d.mem) {
		panic(fmt.Sprintf("mmio: bad access at 0x%x+0x%04x", d.base, off))
	}
	return (*uint32)(unsafe.Pointer(&d.mem[off]))
}
