//go:build tinygo

// Package pins implements stepcore.Pins over raw GPIO, the way the original
// firmware drives its step/direction ports directly rather than through a
// stepper driver chip's own motion engine.
package pins

import (
	"machine"

	"github.com/grbl-go/stepcore/stepcore"
)

// Pin is the minimal GPIO contract this package needs, matching the
// subset of machine.Pin it calls (and the same shape as sharpmem.Pin).
type Pin interface {
	High()
	Low()
	Set(bool)
}

// AxisPins is one axis's step and direction lines, plus its mirrored
// counterpart when the machine ships dual motors on that axis (the X2/Y2
// wiring, now a runtime configuration instead of a compile-time #ifdef).
// The mirrored motor shares the primary's step pulses but carries its own
// direction-invert setting, since a gantry's second motor is commonly
// mounted facing the opposite way and needs DIR flipped independently of
// whatever the global per-axis invert mask says.
type AxisPins struct {
	Step       Pin
	Dir        Pin
	Step2      Pin // nil when the axis has no mirrored motor
	Dir2       Pin
	InvertDir2 bool
}

// Driver drives step/direction/enable GPIO for up to stepcore.AxisCount
// axes. It implements stepcore.Pins.
type Driver struct {
	axes     [3]AxisPins
	enable   Pin
	stepMask uint8
	dirMask  uint8
}

// NewDriver builds a Driver over the given per-axis pins and a shared
// enable line. axes must be indexed by stepcore.Axis (X=0, Y=1, Z=2).
func NewDriver(axes [3]AxisPins, enable Pin) *Driver {
	return &Driver{axes: axes, enable: enable}
}

func (d *Driver) invert(bit uint8, mask uint8) bool { return mask&bit != 0 }

// StepAxis pulses (high=true) or releases (high=false) the step line(s) for
// axis, honoring the step-invert mask and fanning out to a mirrored motor
// when configured.
func (d *Driver) StepAxis(axis stepcore.Axis, high bool) {
	a := d.axes[axis]
	level := high != d.invert(1<<uint8(axis), d.stepMask)
	a.Step.Set(level)
	if a.Step2 != nil {
		a.Step2.Set(level)
	}
}

// SetDirection sets the direction line(s) for axis, honoring the
// direction-invert mask. A mirrored motor gets the same mask-invert level
// as the primary, then its own InvertDir2 applied on top, so a reversed
// mount doesn't have to be compensated for in the global invert mask.
func (d *Driver) SetDirection(axis stepcore.Axis, forward bool) {
	a := d.axes[axis]
	level := forward != d.invert(1<<uint8(axis), d.dirMask)
	a.Dir.Set(level)
	if a.Dir2 != nil {
		a.Dir2.Set(level != a.InvertDir2)
	}
}

// SetEnable drives the shared enable line.
func (d *Driver) SetEnable(enabled bool) { d.enable.Set(enabled) }

// Idle drops every step line to its rest level without touching direction
// or enable, so a dry segment ring never leaves a pulse asserted.
func (d *Driver) Idle() {
	for axis := range d.axes {
		rest := d.invert(1<<uint8(axis), d.stepMask)
		d.axes[axis].Step.Set(rest)
		if d.axes[axis].Step2 != nil {
			d.axes[axis].Step2.Set(rest)
		}
	}
}

// SetInvertMasks stores the per-axis invert masks Control computed from
// settings, applied on the next StepAxis/SetDirection call.
func (d *Driver) SetInvertMasks(stepMask, dirMask uint8) {
	d.stepMask = stepMask
	d.dirMask = dirMask
}

// FromMachinePins adapts machine.Pin, which exposes High/Low but not Set,
// into the Pin contract above.
type FromMachinePins struct{ machine.Pin }

func (p FromMachinePins) Set(high bool) {
	if high {
		p.Pin.High()
	} else {
		p.Pin.Low()
	}
}
