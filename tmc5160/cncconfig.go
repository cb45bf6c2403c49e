//go:build tinygo

package tmc5160

// NewPowerStageParameters builds a PowerStageParameters for
// ConfigureForExternalStepDir. Its fields are unexported (mirroring
// Begin's own parameter structs), so callers outside this package build
// one through here rather than a literal.
func NewPowerStageParameters(drvStrength, bbmTime, bbmClks uint8) PowerStageParameters {
	return PowerStageParameters{drvStrength: drvStrength, bbmTime: bbmTime, bbmClks: bbmClks}
}

// NewMotorParameters builds a MotorParameters for
// ConfigureForExternalStepDir. pwmGradInitial, pwmOfsInitial, and
// freewheeling are left at zero: ConfigureForExternalStepDir always
// enables PWM autoscale/autograd instead of seeding those fields.
func NewMotorParameters(globalScaler uint16, ihold, irun uint8) MotorParameters {
	return MotorParameters{globalScaler: globalScaler, ihold: ihold, irun: irun}
}

// ConfigureForExternalStepDir brings up a Driver the way a CNC controller
// that generates its own STEP/DIR pulses wants it. It writes the same
// GSTAT, DRV_CONF, GLOBAL_SCALER and CHOPCONF values as Begin and sets both
// IHOLD and IRUN from motorParams. Unlike Begin, it writes PWMCONF once with
// only autoscale and autograd enabled (no frequency, gradient, offset or
// freewheel seeding), and GCONF with only stealthChop enabled (SHAFT is left
// clear). It never touches
// RAMPMODE, VSTART, VSTOP, V_1, or D_1. Those registers only matter to the
// chip's own internal positioning/velocity ramp generator, which this
// driver never uses — step timing comes from the step/dir pins instead.
func (driver *Driver) ConfigureForExternalStepDir(powerParams PowerStageParameters, motorParams MotorParameters) error {
	gstat := NewGSTAT()
	gstat.Reset = true
	gstat.UvCp = true
	if err := driver.WriteRegister(GSTAT, gstat.Pack()); err != nil {
		return err
	}

	drvConf := NewDRV_CONF()
	drvConf.DrvStrength = constrain(powerParams.drvStrength, 0, 3)
	drvConf.BBMTime = constrain(powerParams.bbmTime, 0, 24)
	drvConf.BBMClks = constrain(powerParams.bbmClks, 0, 15)
	if err := driver.WriteRegister(DRV_CONF, drvConf.Pack()); err != nil {
		return err
	}

	if err := driver.WriteRegister(GLOBAL_SCALER, uint32(constrain(motorParams.globalScaler, 32, 256))); err != nil {
		return err
	}

	iholdrun := NewIHOLD_IRUN()
	iholdrun.Ihold = constrain(motorParams.ihold, 0, 31)
	iholdrun.Irun = constrain(motorParams.irun, 0, 31)
	iholdrun.IholdDelay = 7
	if err := driver.WriteRegister(IHOLD_IRUN, iholdrun.Pack()); err != nil {
		return err
	}

	pwmconf := NewPWMCONF()
	pwmconf.PwmAutoscale = true
	pwmconf.PwmAutograd = true
	if err := driver.WriteRegister(PWMCONF, pwmconf.Pack()); err != nil {
		return err
	}

	chopConf := NewCHOPCONF()
	chopConf.Toff = 5
	chopConf.Tbl = 2
	chopConf.HstrtTfd = 4
	chopConf.HendOffset = 0
	if err := driver.WriteRegister(CHOPCONF, chopConf.Pack()); err != nil {
		return err
	}

	gconf := NewGCONF()
	gconf.EnPwmMode = true
	if err := driver.WriteRegister(GCONF, gconf.Pack()); err != nil {
		return err
	}

	return nil
}
