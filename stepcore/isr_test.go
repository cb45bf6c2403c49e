package stepcore

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func newTestStepper(c *qt.C) (*Stepper, *segmentRing, *stepperBlockPool, *mockPins, *mockSpindle, *mockSupervisor, *mockTimer) {
	ring := newSegmentRing(4)
	pool := newStepperBlockPool(3)
	pins := newMockPins()
	spindle := newMockSpindle()
	sup := newMockSupervisor()
	timer := &mockTimer{}
	probe := &mockProbe{}

	s := newStepper(ring, pool, pins, spindle, probe, timer, sup, defaultTestTiming())
	return s, ring, pool, pins, spindle, sup, timer
}

// Test_Tick_stepConservation checks that, for a single planner block driven
// through several segments, the total rising edges the ISR emits on each
// axis equal that axis's StepEventCount exactly (spec Testable Property:
// step conservation).
func Test_Tick_stepConservation(t *testing.T) {
	c := qt.New(t)
	s, ring, pool, pins, _, _, _ := newTestStepper(c)

	block := pool.at(0)
	block.StepEventCount = 100
	block.Steps = [AxisCount]uint32{100, 37, 0}
	block.DirectionBits = 0

	// Two segments covering the whole block.
	seg1 := ring.writeSlot()
	*seg1 = Segment{NStep: 60, CyclesPerTick: 1000, StBlockIndex: 0, AmassLevel: 0}
	ring.commit()
	seg2 := ring.writeSlot()
	*seg2 = Segment{NStep: 40, CyclesPerTick: 1000, StBlockIndex: 0, AmassLevel: 0}
	ring.commit()

	// 100 ticks latch all 100 step events; a pulse rises one tick after it
	// is latched, so one more tick asserts the last one and finds the ring
	// empty.
	for i := 0; i < 101; i++ {
		s.Tick()
	}

	c.Assert(pins.stepPulses[AxisX], qt.Equals, 100)
	c.Assert(pins.stepPulses[AxisY], qt.Equals, 37)
	c.Assert(pins.stepPulses[AxisZ], qt.Equals, 0)
	c.Assert(ring.empty(), qt.Equals, true)
}

// Test_Tick_positionTracksDirection checks sys_position increments forward
// and decrements on the direction-invert bit, and is untouched during
// backlash motion segments.
func Test_Tick_positionTracksDirection(t *testing.T) {
	c := qt.New(t)
	s, ring, pool, _, _, _, _ := newTestStepper(c)

	block := pool.at(0)
	block.StepEventCount = 4
	block.Steps = [AxisCount]uint32{4, 0, 0}
	block.DirectionBits = bitFor(AxisX) // negative direction on X

	seg := ring.writeSlot()
	*seg = Segment{NStep: 4, CyclesPerTick: 1000, StBlockIndex: 0}
	ring.commit()

	for i := 0; i < 4; i++ {
		s.Tick()
	}
	c.Assert(s.Position(AxisX), qt.Equals, int32(-4))

	// A backlash-motion segment must step without moving sys_position.
	block.DirectionBits = 0
	seg2 := ring.writeSlot()
	*seg2 = Segment{NStep: 4, CyclesPerTick: 1000, StBlockIndex: 0, BacklashMotion: true}
	ring.commit()

	for i := 0; i < 4; i++ {
		s.Tick()
	}
	c.Assert(s.Position(AxisX), qt.Equals, int32(-4))
}

// Test_Tick_emptyRingGoesIdle checks the ISR's dry-ring path: it idles the
// pins, signals CYCLE_STOP, and never calls into the blocking parts of the
// original (spec §4.1, deviation documented in DESIGN.md).
func Test_Tick_emptyRingGoesIdle(t *testing.T) {
	c := qt.New(t)
	s, _, _, pins, _, sup, _ := newTestStepper(c)

	s.Tick()

	c.Assert(pins.idleCalls, qt.Equals, 1)
	c.Assert(sup.execFlags&ExecStateCycleStop != 0, qt.Equals, true)
}

// Test_Tick_homingMasksNonLockedAxes checks that, while homing, only axes
// named in HomingAxisLock ever see a step pulse.
func Test_Tick_homingMasksNonLockedAxes(t *testing.T) {
	c := qt.New(t)
	s, ring, pool, pins, _, sup, _ := newTestStepper(c)
	sup.state = StateHoming
	sup.homingAxisLock = bitFor(AxisX) // only X allowed through

	block := pool.at(0)
	block.StepEventCount = 2
	block.Steps = [AxisCount]uint32{2, 2, 0}

	seg := ring.writeSlot()
	*seg = Segment{NStep: 2, CyclesPerTick: 1000, StBlockIndex: 0}
	ring.commit()

	// Two ticks latch both step events; the third asserts the second latched
	// pulse (pulses rise one tick after they are latched).
	for i := 0; i < 3; i++ {
		s.Tick()
	}

	c.Assert(pins.stepPulses[AxisX], qt.Equals, 2)
	c.Assert(pins.stepPulses[AxisY], qt.Equals, 0)
}

// Test_Tick_amassShiftAppliesPerSegment checks that steps[] is recomputed
// from the AMASS level on every segment load, not only when the block
// changes (spec §4.2(f), §9).
func Test_Tick_amassShiftAppliesPerSegment(t *testing.T) {
	c := qt.New(t)
	s, ring, pool, _, _, _, _ := newTestStepper(c)

	block := pool.at(0)
	block.StepEventCount = 800
	block.Steps = [AxisCount]uint32{800, 0, 0}

	seg1 := ring.writeSlot()
	*seg1 = Segment{NStep: 100, CyclesPerTick: 1000, StBlockIndex: 0, AmassLevel: 0}
	ring.commit()

	s.Tick()
	c.Assert(s.steps[AxisX], qt.Equals, uint32(800))

	seg2 := ring.writeSlot()
	*seg2 = Segment{NStep: 100, CyclesPerTick: 1000, StBlockIndex: 0, AmassLevel: 2}
	ring.commit()

	// Drain the rest of segment 1 before segment 2 loads.
	for i := 0; i < 99; i++ {
		s.Tick()
	}
	s.Tick() // loads segment 2

	c.Assert(s.steps[AxisX], qt.Equals, uint32(800>>2))
}

// Test_Tick_pulseIsPipelinedOneTick checks the step line rises on the tick
// *after* the Bresenham accumulator overflows, matching the original's
// pipelined pulse generation (st.step_outbits asserted at the top of the
// next ISR call, not inline).
func Test_Tick_pulseIsPipelinedOneTick(t *testing.T) {
	c := qt.New(t)
	s, ring, pool, pins, _, _, _ := newTestStepper(c)

	block := pool.at(0)
	block.StepEventCount = 2
	block.Steps = [AxisCount]uint32{1, 0, 0} // half-rate: one step every two ticks

	seg := ring.writeSlot()
	*seg = Segment{NStep: 2, CyclesPerTick: 1000, StBlockIndex: 0}
	ring.commit()

	s.Tick() // counters[X] = 1 (StepEventCount>>1 seed) + 1 = 2, not > 2 yet
	c.Assert(pins.stepHigh[AxisX], qt.Equals, false)

	s.Tick() // counters[X] = 3 > 2: latches stepOutbits, but pin rises next Tick
	c.Assert(pins.stepHigh[AxisX], qt.Equals, false)
}
