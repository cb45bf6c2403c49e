//go:build tinygo

// Package spindle implements stepcore.Spindle over a hardware PWM channel.
package spindle

import "machine"

// PWM is the subset of machine's PWM peripheral this package drives.
type PWM interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Set(channel uint8, value uint32)
	Top() uint32
}

// Driver drives spindle speed as a PWM duty cycle. It implements
// stepcore.Spindle.
type Driver struct {
	pwm     PWM
	channel uint8
	maxRPM  float32
	// minPWM is the duty floor applied whenever rpm > 0, so the spindle
	// controller never sees a near-zero command that could stall it.
	minPWM uint8
}

// NewDriver builds a Driver already configured on pin, spinning up to
// maxRPM at full duty.
func NewDriver(pwm PWM, pin machine.Pin, maxRPM float32, minPWM uint8) (*Driver, error) {
	channel, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}
	return &Driver{pwm: pwm, channel: channel, maxRPM: maxRPM, minPWM: minPWM}, nil
}

// SetSpeed pushes a PWM duty value (0 = off) to the spindle driver, called
// from the ISR on every segment load.
func (d *Driver) SetSpeed(pwm uint8) {
	top := d.pwm.Top()
	d.pwm.Set(d.channel, top*uint32(pwm)/255)
}

// ComputePWM converts a commanded RPM into a duty value, called only from
// the preparer (never the ISR, since it may involve float division).
func (d *Driver) ComputePWM(rpm float32) uint8 {
	if rpm <= 0 {
		return 0
	}
	if rpm >= d.maxRPM {
		return 255
	}
	duty := uint8(255 * rpm / d.maxRPM)
	if duty < d.minPWM {
		return d.minPWM
	}
	return duty
}
