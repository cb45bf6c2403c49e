//go:build tinygo

package tmc2209

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// recordingComm is a RegisterComm double that remembers every register
// written, so a test can assert on the packed value without duplicating
// the bit-packing logic under test.
type recordingComm struct {
	written map[uint8]uint32
}

func newRecordingComm() *recordingComm { return &recordingComm{written: map[uint8]uint32{}} }

func (c *recordingComm) ReadRegister(register uint8, driverIndex uint8) (uint32, error) {
	return c.written[register], nil
}

func (c *recordingComm) WriteRegister(register uint8, value uint32, driverIndex uint8) error {
	c.written[register] = value
	return nil
}

// Test_Apply_writesCurrentAndChopperRegisters checks that Apply converts
// run/hold current percentages and microstep count into IHOLD_IRUN and
// CHOPCONF, and never touches VACTUAL: this driver is always fed STEP/DIR
// pulses externally, never driven by its own VACTUAL motion engine.
func Test_Apply_writesCurrentAndChopperRegisters(t *testing.T) {
	c := qt.New(t)

	comm := newRecordingComm()
	driver := NewTMC2209(comm, 0)

	cfg := CNCConfig{
		RunCurrentPercent:  80,
		HoldCurrentPercent: 40,
		Microsteps:         16,
		StealthChop:        true,
	}

	err := driver.Apply(cfg)
	c.Assert(err, qt.IsNil)

	wantIholdIrun := NewIholdIrun()
	wantIholdIrun.Ihold = uint32(PercentToCurrentSetting(cfg.HoldCurrentPercent)) >> 3
	wantIholdIrun.Irun = uint32(PercentToCurrentSetting(cfg.RunCurrentPercent)) >> 3
	c.Assert(comm.written[IHOLD_IRUN], qt.Equals, wantIholdIrun.Pack())

	wantChopconf := NewChopconf()
	wantChopconf.Toff = 5
	wantChopconf.Tbl = 2
	wantChopconf.Hstrt = 4
	wantChopconf.Hend = 0
	wantChopconf.Mres = microstepResolutionField(cfg.Microsteps)
	wantChopconf.Intpol = 1
	c.Assert(comm.written[CHOPCONF], qt.Equals, wantChopconf.Pack())

	_, sawVactual := comm.written[VACTUAL]
	c.Assert(sawVactual, qt.Equals, false, qt.Commentf("Apply must not touch the chip's own VACTUAL motion engine"))
}

// Test_Apply_spreadCycleDisablesEnSpreadcycleOnlyWhenRequested checks that
// StealthChop true leaves GCONF.EnSpreadcycle clear, and false sets it, so
// the chopper mode selection actually follows the caller's setting.
func Test_Apply_spreadCycleDisablesEnSpreadcycleOnlyWhenRequested(t *testing.T) {
	c := qt.New(t)

	comm := newRecordingComm()
	driver := NewTMC2209(comm, 0)

	c.Assert(driver.Apply(CNCConfig{StealthChop: true}), qt.IsNil)
	stealthGconf := NewGconf()
	stealthGconf.Bytes = comm.written[GCONF]
	stealthGconf.Unpack(0)
	c.Assert(stealthGconf.EnSpreadcycle, qt.Equals, uint32(0))

	c.Assert(driver.Apply(CNCConfig{StealthChop: false}), qt.IsNil)
	spreadGconf := NewGconf()
	spreadGconf.Bytes = comm.written[GCONF]
	spreadGconf.Unpack(0)
	c.Assert(spreadGconf.EnSpreadcycle, qt.Equals, uint32(1))
}

// Test_microstepResolutionField checks the MRES field's inverted encoding:
// higher microstep counts map to lower MRES values, with 256 at 0 and full
// step (1) clamped to the field's minimum resolution code.
func Test_microstepResolutionField(t *testing.T) {
	c := qt.New(t)

	c.Assert(microstepResolutionField(256), qt.Equals, uint32(0))
	c.Assert(microstepResolutionField(16), qt.Equals, uint32(4))
	c.Assert(microstepResolutionField(1), qt.Equals, uint32(8))
}
