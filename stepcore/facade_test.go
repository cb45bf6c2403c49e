package stepcore

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func newTestControl(c *qt.C, planner *mockPlanner) (*Control, *mockPins, *mockSupervisor, *mockTimer) {
	pins := newMockPins()
	sup := newMockSupervisor()
	timer := &mockTimer{}
	deps := Deps{
		Planner:    planner,
		Pins:       pins,
		Spindle:    newMockSpindle(),
		Probe:      &mockProbe{},
		Timer:      timer,
		Supervisor: sup,
		Settings:   defaultTestSettings(),
		Timing:     defaultTestTiming(),
		RingSize:   6,
	}
	ctl, err := NewControl(deps)
	c.Assert(err, qt.IsNil)
	return ctl, pins, sup, timer
}

// Test_Control_singleBlockRunsToCompletion drives a single, simple
// full-trapezoid block end to end through PrepareBuffer and Tick and
// checks the final machine position matches the block's programmed steps
// exactly (spec Testable Property: step conservation across the whole
// pipeline, scenario S1 "start from rest, accelerate, cruise, decelerate
// to rest").
func Test_Control_singleBlockRunsToCompletion(t *testing.T) {
	c := qt.New(t)

	block := &PlannerBlock{
		Steps:          [AxisCount]uint32{4000, 0, 0},
		StepEventCount: 4000,
		DirectionBits:  0,
		Millimeters:    10,
		Acceleration:   500 * 60 * 60, // mm/min^2
		EntrySpeedSqr:  0,
		ProgrammedRate: 600, // mm/min
	}
	planner := &mockPlanner{queue: []*PlannerBlock{block}}

	ctl, _, sup, _ := newTestControl(c, planner)

	// The ring holds only five ~10 ms segments of this roughly one-second
	// move, so keep the preparer topping it up while the ISR drains it,
	// until the ISR reports CYCLE_STOP.
	const maxTicks = 2_000_000
	ticks := 0
	for sup.execFlags&ExecStateCycleStop == 0 && ticks < maxTicks {
		ctl.PrepareBuffer()
		ctl.Tick()
		ticks++
	}
	c.Assert(ticks, qt.Not(qt.Equals), maxTicks, qt.Commentf("stepper never went idle"))
	c.Assert(planner.CurrentBlock(), qt.IsNil, qt.Commentf("the block must be fully consumed once the stepper goes idle"))
	c.Assert(ctl.Position(AxisX), qt.Equals, int32(4000))
	c.Assert(planner.discardedCount, qt.Equals, 1)
}

// Test_Control_multipleBlocksAccumulatePosition runs two queued blocks back
// to back and checks position accumulates additively and direction flips
// are honored (scenario S2 "two queued moves, opposite directions").
func Test_Control_multipleBlocksAccumulatePosition(t *testing.T) {
	c := qt.New(t)

	forward := &PlannerBlock{
		Steps: [AxisCount]uint32{1000, 0, 0}, StepEventCount: 1000,
		Millimeters: 5, Acceleration: 500 * 60 * 60, ProgrammedRate: 300,
	}
	backward := &PlannerBlock{
		Steps: [AxisCount]uint32{400, 0, 0}, StepEventCount: 400,
		DirectionBits: bitFor(AxisX),
		Millimeters:   2, Acceleration: 500 * 60 * 60, ProgrammedRate: 300,
	}
	planner := &mockPlanner{queue: []*PlannerBlock{forward, backward}}
	ctl, _, _, _ := newTestControl(c, planner)

	const maxIterations = 2_000_000
	for i := 0; i < maxIterations; i++ {
		ctl.PrepareBuffer()
		ctl.Tick()
		if planner.CurrentBlock() == nil && ctl.ring.empty() {
			break
		}
	}

	c.Assert(ctl.Position(AxisX), qt.Equals, int32(1000-400))
}

// Test_Control_disableRespectsHoldIndefinite checks StepperIdleLockTime ==
// 0xFF keeps the axes enabled on a non-forced Disable, but a forced one
// always disables. Disable must stop the timer and park the step lines
// unconditionally, regardless of which branch the enable decision takes.
func Test_Control_disableRespectsHoldIndefinite(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, pins, _, timer := newTestControl(c, planner)
	ctl.settings.StepperIdleLockTime = 0xFF

	ctl.WakeUp()
	c.Assert(pins.enabled, qt.Equals, true)

	ctl.Disable(false)
	c.Assert(pins.enabled, qt.Equals, true, qt.Commentf("hold-indefinite must survive a non-forced Disable"))
	c.Assert(timer.stopCount, qt.Equals, 1, qt.Commentf("Disable must stop the timer even when it leaves drivers energized"))

	ctl.Disable(true)
	c.Assert(pins.enabled, qt.Equals, false)
	c.Assert(timer.stopCount, qt.Equals, 2)
}

// Test_Control_disableDwellsBeforeDroppingEnable checks that a finite
// StepperIdleLockTime is honored as a millisecond dwell before the enable
// line is dropped, not just compared against the 0xFF sentinel.
func Test_Control_disableDwellsBeforeDroppingEnable(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, pins, _, timer := newTestControl(c, planner)
	ctl.settings.StepperIdleLockTime = 5 // milliseconds; short enough to keep the test fast

	ctl.WakeUp()
	c.Assert(pins.enabled, qt.Equals, true)

	start := time.Now()
	ctl.Disable(false)
	elapsed := time.Since(start)

	c.Assert(pins.enabled, qt.Equals, false)
	c.Assert(timer.stopCount, qt.Equals, 1)
	c.Assert(elapsed >= 5*time.Millisecond, qt.Equals, true, qt.Commentf("Disable must dwell StepperIdleLockTime ms before disabling drivers, got %s", elapsed))
}

// Test_Control_disableHoldsDuringHoming checks that Disable leaves the
// drivers energized while the supervisor reports an in-progress homing
// cycle, even with a finite (non-0xFF) idle-lock time, since de-energizing
// mid-home would lose the axis's home reference.
func Test_Control_disableHoldsDuringHoming(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, pins, sup, timer := newTestControl(c, planner)
	ctl.settings.StepperIdleLockTime = 25
	sup.state = StateHoming

	ctl.WakeUp()
	ctl.Disable(false)

	c.Assert(pins.enabled, qt.Equals, true, qt.Commentf("homing must survive a non-forced Disable regardless of idle-lock time"))
	c.Assert(timer.stopCount, qt.Equals, 1, qt.Commentf("the timer still stops even when the drivers stay enabled"))

	ctl.Disable(true)
	c.Assert(pins.enabled, qt.Equals, false, qt.Commentf("force must override the homing gate"))
}

// Test_Control_initAppliesInvertMasks checks Init folds the per-axis pin
// masks through the global invert masks exactly once.
func Test_Control_initAppliesInvertMasks(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, pins, _, _ := newTestControl(c, planner)
	ctl.settings.StepInvertMask = bitFor(AxisX) | bitFor(AxisZ)
	ctl.settings.DirInvertMask = bitFor(AxisY)

	ctl.Init()

	c.Assert(pins.stepMask, qt.Equals, ctl.settings.StepPinMask[AxisX]|ctl.settings.StepPinMask[AxisZ])
	c.Assert(pins.dirMask, qt.Equals, ctl.settings.DirPinMask[AxisY])
}

// Test_Control_resetClearsWithoutTouchingPosition checks Reset clears ring
// and pool state but never rewrites sys_position (matching the original's
// Stepper_Reset, which is explicitly position-preserving).
func Test_Control_resetClearsWithoutTouchingPosition(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, _, _, _ := newTestControl(c, planner)
	ctl.SetPosition(AxisY, 1234)

	ctl.Reset()

	c.Assert(ctl.Position(AxisY), qt.Equals, int32(1234))
	c.Assert(ctl.ring.empty(), qt.Equals, true)
}

// Test_Control_realtimeRateGatedByState checks RealtimeRate reports 0
// outside an active motion state even while the preparer still holds a
// nonzero currentSpeed.
func Test_Control_realtimeRateGatedByState(t *testing.T) {
	c := qt.New(t)

	planner := &mockPlanner{}
	ctl, _, sup, _ := newTestControl(c, planner)
	ctl.preparer.currentSpeed = 123.4

	sup.state = StateIdle
	c.Assert(ctl.RealtimeRate(), qt.Equals, float32(0))

	sup.state = StateCycle
	c.Assert(ctl.RealtimeRate(), qt.Equals, float32(123.4))
}
