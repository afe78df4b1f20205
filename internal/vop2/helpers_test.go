package vop2

import (
	"time"

	"github.com/smazurov/vop2ctl/internal/mmio"
)

// countingSurface counts transactions issued against the wrapped surface.
type countingSurface struct {
	mmio.Surface
	reads  int
	writes int
}

func (c *countingSurface) Read32(off uint32) uint32 {
	c.reads++
	return c.Surface.Read32(off)
}

func (c *countingSurface) Write32(off, v uint32) {
	c.writes++
	c.Surface.Write32(off, v)
}

// recordingObserver keeps every callback for inspection.
type recordingObserver struct {
	accesses  map[string]int
	requested []CommitBits
	latched   [][]Block
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{accesses: make(map[string]int)}
}

func (o *recordingObserver) RegisterAccess(op string, b Block) {
	o.accesses[op+":"+b.String()]++
}

func (o *recordingObserver) CommitRequested(bits CommitBits, _ []Block) {
	o.requested = append(o.requested, bits)
}

func (o *recordingObserver) CommitLatched(blocks []Block, _ time.Duration) {
	o.latched = append(o.latched, blocks)
}

// newProbedDriver returns a driver on a fresh Sim that has passed Probe.
func newProbedDriver(opts ...Option) (*Driver, *Sim) {
	sim := NewSim()
	opts = append([]Option{WithSleep(func(time.Duration) {})}, opts...)
	d := New(sim, opts...)
	if err := d.Probe(); err != nil {
		panic(err)
	}
	return d, sim
}
