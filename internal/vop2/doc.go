// Package vop2 configures the Rockchip VOP2 display controller found on the
// RK3566 and RK3568.
//
// The register window is split into blocks: system control, overlay, one
// post-processing/timing block per video port and one block per Esmart
// plane. Layouts are Go structs whose offsets are pinned at compile time;
// register constants are derived from them.
//
// All writes go to shadow registers. They take effect only after the
// matching load bits in REG_CFG_DONE are asserted and the hardware reaches
// the next frame boundary:
//
//	d := vop2.New(surface)
//	if err := d.Probe(); err != nil { ... }
//	d.SetTiming(0, timing)
//	d.SetOutput(vop2.OutputMIPI, 0)
//	d.EnableOutput(vop2.OutputMIPI)
//	d.Commit()
//	d.WaitCommit(ctx, 0)
//
// Global blocks need GLOBAL_REGDONE, a port's timing block additionally
// needs its port bit, and each Esmart plane has a bit of its own. The
// Protocol tracks each block's phase separately so a commit for one plane
// never reports an unrelated block as latched.
//
// Sim models the shadow and active banks for tests and for running the
// daemon without hardware.
package vop2
