//go:build tinygo

// Package probe implements stepcore.Probe over a digital touch-probe input,
// latching machine position the instant the probe trips so the main loop
// never has to win a race against the ISR to read it.
package probe

import "github.com/grbl-go/stepcore/stepcore"

// Pin is the minimal GPIO contract this package needs.
type Pin interface {
	Get() bool
}

// Positioner is the subset of Control this package needs to latch a
// position snapshot.
type Positioner interface {
	Position(axis stepcore.Axis) int32
}

// Monitor watches a probe input pin and latches position on contact. It
// implements stepcore.Probe.
type Monitor struct {
	pin      Pin
	pos      Positioner
	inverted bool

	triggered bool
	latched   [stepcore.AxisCount]int32
}

// NewMonitor builds a Monitor over pin, reading Positioner for the latched
// position. inverted flips the pin's trigger polarity (normally-closed
// probes).
func NewMonitor(pin Pin, pos Positioner, inverted bool) *Monitor {
	return &Monitor{pin: pin, pos: pos, inverted: inverted}
}

// StateMonitor is called once per ISR tick whenever the supervisor reports
// the probe armed. It must be cheap: a single pin read, and on the leading
// edge a handful of atomic loads.
func (m *Monitor) StateMonitor() {
	contact := m.pin.Get() != m.inverted
	if contact && !m.triggered {
		m.triggered = true
		for axis := stepcore.Axis(0); axis < stepcore.AxisCount; axis++ {
			m.latched[axis] = m.pos.Position(axis)
		}
	} else if !contact {
		m.triggered = false
	}
}

// Triggered reports whether the probe is currently latched.
func (m *Monitor) Triggered() bool { return m.triggered }

// LatchedPosition returns the machine position captured at the moment of
// contact.
func (m *Monitor) LatchedPosition(axis stepcore.Axis) int32 { return m.latched[axis] }
