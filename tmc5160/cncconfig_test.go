//go:build tinygo

package tmc5160

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

// recordingComm is a RegisterComm double that remembers every register
// written, keyed by register address, so a test can assert on the packed
// value without duplicating the bit-packing logic under test.
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

// Test_ConfigureForExternalStepDir_writesCurrentAndChopperRegisters checks
// that ConfigureForExternalStepDir, the bring-up path used by a controller
// that generates its own STEP/DIR pulses, programs GLOBAL_SCALER, DRV_CONF
// and IHOLD_IRUN from caller-supplied parameters and never touches the ramp
// generator's RAMPMODE and D_1 registers.
func Test_ConfigureForExternalStepDir_writesCurrentAndChopperRegisters(t *testing.T) {
	c := qt.New(t)

	comm := newRecordingComm()
	driver := NewDriver(comm, 0, 0, NewDefaultStepper())

	power := NewPowerStageParameters(2, 16, 8)
	motor := NewMotorParameters(128, 5, 20)

	err := driver.ConfigureForExternalStepDir(power, motor)
	c.Assert(err, qt.IsNil)

	c.Assert(comm.written[GLOBAL_SCALER], qt.Equals, uint32(128))

	wantDrvConf := NewDRV_CONF()
	wantDrvConf.DrvStrength = 2
	wantDrvConf.BBMTime = 16
	wantDrvConf.BBMClks = 8
	c.Assert(comm.written[DRV_CONF], qt.Equals, wantDrvConf.Pack())

	wantIholdIrun := NewIHOLD_IRUN()
	wantIholdIrun.Ihold = 5
	wantIholdIrun.Irun = 20
	wantIholdIrun.IholdDelay = 7
	c.Assert(comm.written[IHOLD_IRUN], qt.Equals, wantIholdIrun.Pack())

	_, sawRampMode := comm.written[RAMPMODE]
	c.Assert(sawRampMode, qt.Equals, false, qt.Commentf("external STEP/DIR bring-up must not touch the chip's own ramp generator"))
	_, sawD1 := comm.written[D_1]
	c.Assert(sawD1, qt.Equals, false)
}

// Test_ConfigureForExternalStepDir_clampsOutOfRangeParameters checks the
// same drvStrength/bbmTime/bbmClks clamping Begin applies also applies
// here, since both paths share the same power-stage limits.
func Test_ConfigureForExternalStepDir_clampsOutOfRangeParameters(t *testing.T) {
	c := qt.New(t)

	comm := newRecordingComm()
	driver := NewDriver(comm, 0, 0, NewDefaultStepper())

	power := NewPowerStageParameters(255, 255, 255)
	motor := NewMotorParameters(1, 255, 255)

	err := driver.ConfigureForExternalStepDir(power, motor)
	c.Assert(err, qt.IsNil)

	wantDrvConf := NewDRV_CONF()
	wantDrvConf.DrvStrength = 3
	wantDrvConf.BBMTime = 24
	wantDrvConf.BBMClks = 15
	c.Assert(comm.written[DRV_CONF], qt.Equals, wantDrvConf.Pack())

	c.Assert(comm.written[GLOBAL_SCALER], qt.Equals, uint32(32), qt.Commentf("globalScaler must clamp to the 32-256 range like Begin"))

	wantIholdIrun := NewIHOLD_IRUN()
	wantIholdIrun.Ihold = 31
	wantIholdIrun.Irun = 31
	wantIholdIrun.IholdDelay = 7
	c.Assert(comm.written[IHOLD_IRUN], qt.Equals, wantIholdIrun.Pack())
}
