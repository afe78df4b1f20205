// Package mmio provides 32-bit register surfaces for memory-mapped hardware.
//
// A Surface is the only way the rest of the program touches hardware
// registers. Every Read32 and Write32 call is exactly one bus transaction:
// implementations never cache, merge or reorder accesses across calls.
//
// Two implementations are provided:
//   - DevMem maps a physical register window through /dev/mem (Linux only)
//   - Memory is a plain little-endian byte buffer, used for dry runs and tests
//
// Read-modify-write sequences go through Modify32, which performs one read
// and one write so an intermediate value is never observable by hardware.
package mmio
