//go:build tinygo

package tmc2209

// CNCConfig is the subset of a CNC axis's per-driver settings this package
// needs: run/hold current as a percentage of the driver's maximum, and the
// microstepping resolution. Actual ramp timing and step pulses are
// stepcore's job; this package only ever touches current and chopper
// configuration.
type CNCConfig struct {
	RunCurrentPercent  uint8
	HoldCurrentPercent uint8
	Microsteps         uint16
	StealthChop        bool
}

// microstepResolutionField converts a microsteps-per-step count into the
// CHOPCONF MRES field, which runs the opposite way: 0 = 256 microsteps,
// 8 = full step.
func microstepResolutionField(microsteps uint16) uint32 {
	exponent := uint8(0)
	shifted := microsteps >> 1
	for shifted > 0 {
		shifted >>= 1
		exponent++
	}
	if exponent > 8 {
		exponent = 8
	}
	return uint32(8 - exponent)
}

// Apply writes CNCConfig to the driver's IHOLD_IRUN, CHOPCONF, and GCONF
// registers. It never touches VACTUAL or any timing register: this driver
// is always fed STEP/DIR pulses by stepcore, never its own motion engine.
func (driver *TMC2209) Apply(cfg CNCConfig) error {
	ihold := NewIholdIrun()
	ihold.Ihold = uint32(PercentToCurrentSetting(cfg.HoldCurrentPercent)) >> 3 // 8-bit scale down to 5-bit field
	ihold.Irun = uint32(PercentToCurrentSetting(cfg.RunCurrentPercent)) >> 3
	ihold.Iholddelay = 0
	if err := driver.WriteRegister(IHOLD_IRUN, ihold.Pack()); err != nil {
		return err
	}

	chop := NewChopconf()
	chop.Toff = 5
	chop.Tbl = 2
	chop.Hstrt = 4
	chop.Hend = 0
	chop.Mres = microstepResolutionField(cfg.Microsteps)
	chop.Intpol = 1
	if err := driver.WriteRegister(CHOPCONF, chop.Pack()); err != nil {
		return err
	}

	gconf := NewGconf()
	if !cfg.StealthChop {
		gconf.EnSpreadcycle = 1
	}
	gconf.PdnDisable = 1 // required when driven over UART, per datasheet
	gconf.MstepRegSelect = 1
	return driver.WriteRegister(GCONF, gconf.Pack())
}
