package stepcore

import "sync/atomic"

// Timer is the hardware timer contract the ISR reprograms per segment
// (spec §4.1, §6): an up-counting auto-reload timer driving Tick, plus a
// one-shot compare event driving PortReset for the pulse falling edge.
type Timer interface {
	// SetReload sets the auto-reload value (cycles_per_tick) for the main
	// step timer.
	SetReload(cyclesPerTick uint16)
	// SetPulseWidth sets the one-shot compare value that fires PortReset,
	// in the same clock units as SetReload.
	SetPulseWidth(cycles uint16)
	// Stop halts the step timer immediately, so it stops delivering Tick
	// calls. Called by every Control.Disable, forced or not (spec §5,
	// "Disable(true) stops the timer immediately").
	Stop()
}

func bitFor(axis Axis) uint8 { return 1 << uint8(axis) }

// Stepper is the step generator: the ISR half of the core (spec §4.1). It
// never allocates, never blocks, and does no floating point (spec §9);
// all of that lives in Preparer.
type Stepper struct {
	ring    *segmentRing
	pool    *stepperBlockPool
	pins    Pins
	spindle Spindle
	probe   Probe
	timer   Timer
	sup     Supervisor
	timing  Timing

	counters [AxisCount]uint32 // Bresenham error accumulators
	steps    [AxisCount]uint32 // per-tick increments, AMASS-shifted

	stepOutbits uint8 // latched for the *next* rising edge (pipelined)
	stepCount   uint16

	executing      bool
	haveExecBlock  bool
	execBlockIndex uint8

	position [AxisCount]atomic.Int32 // sys_position; ISR-write-only
}

func newStepper(ring *segmentRing, pool *stepperBlockPool, pins Pins, spindle Spindle, probe Probe, timer Timer, sup Supervisor, timing Timing) *Stepper {
	return &Stepper{
		ring: ring, pool: pool, pins: pins, spindle: spindle,
		probe: probe, timer: timer, sup: sup, timing: timing,
	}
}

// Tick is the main stepper ISR (spec §4.1), invoked once per step-timer
// period. It must complete well within one tick's worth of wall time; it
// never allocates and never calls anything that can block.
func (s *Stepper) Tick() {
	// Entry: assert the edges latched last tick before anything else, so
	// direction pins set further down are guaranteed stable before the
	// *next* rising edge, not this one.
	for axis := Axis(0); axis < AxisCount; axis++ {
		if s.stepOutbits&bitFor(axis) != 0 {
			s.pins.StepAxis(axis, true)
		}
	}

	if !s.executing {
		if s.ring.empty() {
			s.pins.Idle()
			if s.haveExecBlock && s.pool.at(s.execBlockIndex).IsPWMRateAdjusted {
				s.spindle.SetSpeed(SpindlePWMOff)
			}
			s.sup.SetExecStateFlag(ExecStateCycleStop)
			return
		}
		s.loadSegment()
	}

	seg := s.ring.readSlot()
	block := s.pool.at(s.execBlockIndex)

	if s.sup.ProbeArmed() {
		s.probe.StateMonitor()
	}

	s.stepOutbits = 0

	for axis := Axis(0); axis < AxisCount; axis++ {
		s.counters[axis] += s.steps[axis]
		if s.counters[axis] > block.StepEventCount {
			s.stepOutbits |= bitFor(axis)
			s.counters[axis] -= block.StepEventCount

			if !seg.BacklashMotion {
				if block.DirectionBits&bitFor(axis) != 0 {
					s.position[axis].Add(-1)
				} else {
					s.position[axis].Add(1)
				}
			}
		}
	}

	if s.sup.State() == StateHoming {
		s.stepOutbits &= s.sup.HomingAxisLock()
	}

	s.stepCount--
	if s.stepCount == 0 {
		s.executing = false
		s.ring.advanceTail()
	}
}

// loadSegment pops the next segment off the ring and reinitializes the
// Bresenham tracer if it starts a new planner block (spec §4.1 "Segment
// load").
func (s *Stepper) loadSegment() {
	seg := s.ring.readSlot()

	cyclesPerTick := seg.CyclesPerTick
	if min := s.timing.stepTimerMin(); cyclesPerTick < min {
		cyclesPerTick = min
	}
	s.timer.SetReload(cyclesPerTick)
	s.timer.SetPulseWidth(uint16(uint32(cyclesPerTick) * 3 / 4))
	s.stepCount = seg.NStep

	if !s.haveExecBlock || s.execBlockIndex != seg.StBlockIndex {
		s.execBlockIndex = seg.StBlockIndex
		s.haveExecBlock = true

		half := s.pool.at(s.execBlockIndex).StepEventCount >> 1
		for axis := Axis(0); axis < AxisCount; axis++ {
			s.counters[axis] = half
		}
	}

	block := s.pool.at(s.execBlockIndex)
	for axis := Axis(0); axis < AxisCount; axis++ {
		forward := block.DirectionBits&bitFor(axis) == 0
		s.pins.SetDirection(axis, forward)
		s.steps[axis] = block.Steps[axis] >> seg.AmassLevel
	}

	s.spindle.SetSpeed(seg.SpindlePWM)
	s.executing = true
}

// PortReset is the pulse-width one-shot ISR: it drops every step line back
// to its rest level, leaving direction pins untouched (spec §4.1, §6
// "Pulse timing").
func (s *Stepper) PortReset() {
	for axis := Axis(0); axis < AxisCount; axis++ {
		s.pins.StepAxis(axis, false)
	}
}

// Position returns the current machine position for axis. Safe to call
// from the main-loop context while the ISR is live: the counter is
// word-atomic (spec §5 "Shared state").
func (s *Stepper) Position(axis Axis) int32 {
	return s.position[axis].Load()
}

// SetPosition overwrites the machine position for axis, used by homing or
// probe latching. Must only be called while the ISR is not concurrently
// running (e.g. with the step timer stopped).
func (s *Stepper) SetPosition(axis Axis, value int32) {
	s.position[axis].Store(value)
}

func (s *Stepper) reset() {
	s.counters = [AxisCount]uint32{}
	s.steps = [AxisCount]uint32{}
	s.stepOutbits = 0
	s.stepCount = 0
	s.executing = false
	s.haveExecBlock = false
	s.execBlockIndex = 0
}
