package stepcore

// Pins is the pin driver contract (spec §2, "Pin driver contract"): a
// named set of step & direction output lines with invert-mask awareness.
// stepcore calls this only from the ISR (step/direction output) and from
// Control (enable line, reset). A concrete GPIO-backed implementation
// lives in the companion "pins" package.
type Pins interface {
	// StepAxis pulses (or, when high is false, releases) the step line(s)
	// for axis. Implementations fan this out to mirrored X2/Y2 lines.
	StepAxis(axis Axis, high bool)
	// SetDirection sets the direction line(s) for axis.
	SetDirection(axis Axis, forward bool)
	// SetEnable drives the shared stepper-enable line.
	SetEnable(enabled bool)
	// Idle sets step & direction outputs to a safe rest state without
	// touching the enable line. Called by the ISR whenever the ring runs
	// dry, so it must be cheap and non-blocking.
	Idle()
	// SetInvertMasks applies the step- and direction-invert masks derived
	// by Control.GenerateStepDirInvertMasks. Called once at Init and again
	// whenever settings change, never from the ISR.
	SetInvertMasks(stepMask, dirMask uint8)
}

// Spindle is the spindle PWM driver contract (spec §6).
type Spindle interface {
	// SetSpeed pushes a PWM duty value (0 = off) to the spindle driver.
	// Called from the ISR on segment load.
	SetSpeed(pwm uint8)
	// ComputePWM converts a commanded RPM into a duty value. Called only
	// from the preparer.
	ComputePWM(rpm float32) uint8
}

// SpindlePWMOff is the duty value SetSpeed receives to mean "off".
const SpindlePWMOff uint8 = 0

// Probe is the probe input monitor contract (spec §6). StateMonitor is
// called once per ISR tick whenever the supervisor reports the probe
// armed; it may latch machine position and request an abort on its own
// side, so stepcore never reads a return value from it.
type Probe interface {
	StateMonitor()
}
