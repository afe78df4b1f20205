//go:build !linux

package mmio

import "errors"

// DefaultDevice is the character device exposing physical memory.
const DefaultDevice = "/dev/mem"

// DevMem is unavailable on this platform.
type DevMem struct{}

// Open always fails outside Linux.
func Open(_ string, _ uint64, _ int) (*DevMem, error) {
	return nil, errors.New("physical register mapping is only supported on linux")
}

// Read32 implements Surface.
func (d *DevMem) Read32(_ uint32) uint32 { return 0 }

// Write32 implements Surface.
func (d *DevMem) Write32(_ uint32, _ uint32) {}

// Close implements io.Closer.
func (d *DevMem) Close() error { return nil }
