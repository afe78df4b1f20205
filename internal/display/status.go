package display

import (
	"context"
	"fmt"
	"time"

	"github.com/smazurov/vop2ctl/internal/events"
	"github.com/smazurov/vop2ctl/internal/metrics"
	"github.com/smazurov/vop2ctl/internal/vop2"
)

// BlockStatus is one register block and its place in the commit cycle.
type BlockStatus struct {
	Name  string `json:"name" example:"post0"`
	Phase string `json:"phase" example:"active"`
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Ready     bool              `json:"ready"`
	Variant   string            `json:"variant" example:"rk3568"`
	Version   string            `json:"version,omitempty" example:"0x40145000"`
	Simulated bool              `json:"simulated"`
	Frames    uint64            `json:"frames,omitempty"`
	Applied   *Applied          `json:"applied,omitempty"`
	Routes    []vop2.RouteState `json:"routes,omitempty"`
	Blocks    []BlockStatus     `json:"blocks"`
}

// Status syncs block phases with REG_CFG_DONE and reports them.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Ready:     s.driver.Ready(),
		Variant:   s.variant.Name,
		Simulated: s.sim != nil,
	}
	if st.Ready {
		s.driver.Sync()
		st.Version = fmt.Sprintf("0x%08x", s.driver.Version())
		st.Routes = s.driver.Routes()
	}
	if s.sim != nil {
		st.Frames = s.sim.Frames()
	}
	if s.applied != nil {
		copied := *s.applied
		st.Applied = &copied
	}
	for _, b := range vop2.Blocks() {
		st.Blocks = append(st.Blocks, BlockStatus{Name: b.String(), Phase: s.driver.Phase(b).String()})
	}
	s.refreshPhases()
	return st
}

// Registers dumps every register of the named block, keyed by offset.
func (s *Service) Registers(name string) (map[string]uint32, error) {
	b, err := vop2.ParseBlock(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	words, err := s.driver.Snapshot(b)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(map[string]uint32, len(words))
	for i, w := range words {
		out[fmt.Sprintf("0x%04x", i*4)] = w
	}
	return out, nil
}

// Route points an interface at a video port. Like every other write it
// takes effect on the next commit.
func (s *Service) Route(mode vop2.OutputMode, port int) error {
	return s.change(events.OutputChangedEvent{Output: mode.String(), Action: "routed", Port: port},
		func(d *vop2.Driver) error { return d.SetOutput(mode, port) })
}

// Enable makes mode the only enabled interface.
func (s *Service) Enable(mode vop2.OutputMode) error {
	return s.change(events.OutputChangedEvent{Output: mode.String(), Action: "enabled"},
		func(d *vop2.Driver) error { return d.EnableOutput(mode) })
}

// SetPolarity writes the polarity nibble of mode.
func (s *Service) SetPolarity(mode vop2.OutputMode, pol vop2.Polarity) error {
	return s.change(events.OutputChangedEvent{Output: mode.String(), Action: "polarity", Polarity: uint32(pol)},
		func(d *vop2.Driver) error { return d.SetPinPolarity(mode, pol) })
}

func (s *Service) change(ev events.OutputChangedEvent, fn func(*vop2.Driver) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.driver); err != nil {
		metrics.RecordError(errorCode(err))
		return err
	}
	ev.Timestamp = s.now().Format(time.RFC3339)
	s.publish(ev)
	return nil
}

// CommitResult reports what a commit asserted and whether it latched.
type CommitResult struct {
	Bits    string   `json:"bits" example:"global|port0"`
	Blocks  []string `json:"blocks,omitempty"`
	Latched bool     `json:"latched"`
}

// Commit asserts the commit bits of every staged block. With wait set it
// then blocks until they latch on port's frame start or timeout elapses.
func (s *Service) Commit(ctx context.Context, wait bool, port int, timeout time.Duration) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.stagedNames()
	bits, err := s.driver.Commit()
	if err != nil {
		metrics.RecordError(errorCode(err))
		return CommitResult{}, err
	}
	res := CommitResult{Bits: bits.String(), Blocks: staged}
	if !wait {
		return res, nil
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.driver.WaitCommit(wctx, port); err != nil {
		metrics.RecordError(errorCode(err))
		return res, err
	}
	res.Latched = true
	return res, nil
}

// stagedNames lists blocks written since their last commit. Callers hold mu.
func (s *Service) stagedNames() []string {
	var out []string
	for _, b := range vop2.Blocks() {
		if s.driver.Phase(b) == vop2.PhaseStaged {
			out = append(out, b.String())
		}
	}
	return out
}
