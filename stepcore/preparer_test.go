package stepcore

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func newTestPreparer(c *qt.C, planner *mockPlanner) (*Preparer, *segmentRing, *stepperBlockPool) {
	ring := newSegmentRing(8)
	pool := newStepperBlockPool(7)
	sup := newMockSupervisor()
	p := newPreparer(ring, pool, planner, newMockSpindle(), sup, defaultTestSettings(), defaultTestTiming())
	return p, ring, pool
}

// Test_Preparer_cruiseOnlyProfile checks that a block whose entry, nominal,
// and exit speeds are all equal classifies as a pure cruise (spec §4.2(b),
// profile shape "cruise-only").
func Test_Preparer_cruiseOnlyProfile(t *testing.T) {
	c := qt.New(t)

	speed := float32(300.0)
	block := &PlannerBlock{
		Steps: [AxisCount]uint32{1000, 0, 0}, StepEventCount: 1000,
		Millimeters: 10, Acceleration: 500 * 3600,
		EntrySpeedSqr: speed * speed, ProgrammedRate: speed,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}, exitSpeedSqr: speed * speed}
	p, _, _ := newTestPreparer(c, planner)

	p.plBlock = block
	p.loadNewBlock()
	p.computeVelocityProfile()

	c.Assert(p.rampType, qt.Equals, RampCruise)
	c.Assert(float64(p.decelerateAfter), qt.Equals, float64(0))
}

// Test_Preparer_fullTrapezoidProfile checks a long, slow-entry block
// classifies with distinct accelerateUntil/decelerateAfter boundaries
// inside (0, Millimeters) (profile shape "full trapezoid").
func Test_Preparer_fullTrapezoidProfile(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps: [AxisCount]uint32{10000, 0, 0}, StepEventCount: 10000,
		Millimeters: 100, Acceleration: 500 * 3600,
		EntrySpeedSqr: 0, ProgrammedRate: 600,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}, exitSpeedSqr: 0}
	p, _, _ := newTestPreparer(c, planner)

	p.plBlock = block
	p.loadNewBlock()
	p.computeVelocityProfile()

	c.Assert(p.rampType, qt.Equals, RampAccel)
	c.Assert(p.accelerateUntil > 0 && p.accelerateUntil < block.Millimeters, qt.Equals, true)
	c.Assert(p.decelerateAfter > 0 && p.decelerateAfter < p.accelerateUntil, qt.Equals, true)
}

// Test_Preparer_triangleProfile checks a block too short to reach nominal
// speed classifies with accelerateUntil == decelerateAfter (profile shape
// "triangle", no cruise phase).
func Test_Preparer_triangleProfile(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps: [AxisCount]uint32{40, 0, 0}, StepEventCount: 40,
		Millimeters: 0.4, Acceleration: 500 * 3600,
		EntrySpeedSqr: 0, ProgrammedRate: 6000,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}, exitSpeedSqr: 0}
	p, _, _ := newTestPreparer(c, planner)

	p.plBlock = block
	p.loadNewBlock()
	p.computeVelocityProfile()

	c.Assert(p.accelerateUntil, qt.Equals, p.decelerateAfter)
}

// Test_Preparer_holdDecelerateToZero checks that a hold raised while a
// block is in flight forces a deceleration ramp toward zero covering the
// whole remaining move, ending above zero when the block is too short to
// stop in (spec §4.2(b), hold branch). The hold is raised after the block
// is loaded: a block loaded under a hold takes the previous exit speed as
// its entry speed.
func Test_Preparer_holdDecelerateToZero(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps: [AxisCount]uint32{100, 0, 0}, StepEventCount: 100,
		Millimeters: 0.05, Acceleration: 500 * 3600,
		EntrySpeedSqr: 600 * 600,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}}
	p, _, _ := newTestPreparer(c, planner)

	p.plBlock = block
	p.loadNewBlock()
	p.sup.(*mockSupervisor).stepControl = StepControlExecuteHold
	p.computeVelocityProfile()

	c.Assert(p.rampType, qt.Equals, RampDecel)
	c.Assert(p.exitSpeed > 0, qt.Equals, true, qt.Commentf("entry speed too high to reach zero within the block: exit speed must stay positive"))
}

// Test_Preparer_laserModeMarksPWMRateAdjusted checks that laser mode with a
// CCW-spindle (dynamic power) block flags the pool entry for rate-adjusted
// PWM (spec §4.2(a), supplemented laser-mode feature).
func Test_Preparer_laserModeMarksPWMRateAdjusted(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps: [AxisCount]uint32{100, 0, 0}, StepEventCount: 100,
		Millimeters: 1, Acceleration: 500 * 3600,
		ProgrammedRate: 300, Condition: CondSpindleCCW, SpindleSpeed: 500,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}}
	p, _, pool := newTestPreparer(c, planner)
	p.settings.LaserMode = true

	p.plBlock = block
	p.loadNewBlock()

	c.Assert(pool.at(p.stBlockIndex).IsPWMRateAdjusted, qt.Equals, true)
}

// Test_Preparer_prepareBufferCarvesUntilRingFull checks PrepareBuffer stops
// once the ring has no more room, without losing the in-flight block (spec
// §4.2, ring-boundary exit condition).
func Test_Preparer_prepareBufferCarvesUntilRingFull(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps: [AxisCount]uint32{200000, 0, 0}, StepEventCount: 200000,
		Millimeters: 1000, Acceleration: 500 * 3600, ProgrammedRate: 600,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}}
	p, ring, _ := newTestPreparer(c, planner)

	p.PrepareBuffer()

	c.Assert(ring.hasRoom(), qt.Equals, false)
	c.Assert(planner.discardedCount, qt.Equals, 0, qt.Commentf("a long block must still be in flight once the ring fills"))
}
