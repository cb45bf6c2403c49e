package stepcore

import "time"

// Control is the public entry point to the core: it owns the ring, the
// stepper-block pool, the ISR-side Stepper and the main-loop-side
// Preparer, and wires them to the caller-supplied Planner/Pins/Spindle/
// Probe/Timer/Supervisor (spec §2, §6).
//
// Control itself does no real-time work; Tick and PortReset are forwarded
// straight to Stepper so they stay interrupt-safe, and PrepareBuffer is
// forwarded straight to Preparer so it stays on the main-loop side.
type Control struct {
	ring     *segmentRing
	pool     *stepperBlockPool
	stepper  *Stepper
	preparer *Preparer

	pins     Pins
	timer    Timer
	sup      Supervisor
	settings *Settings
	timing   Timing
}

// Deps bundles the external collaborators Control needs at construction
// time (spec §6, "External interfaces").
type Deps struct {
	Planner    Planner
	Pins       Pins
	Spindle    Spindle
	Probe      Probe
	Timer      Timer
	Supervisor Supervisor
	Settings   *Settings
	Timing     Timing
	// RingSize is the segment ring's capacity, including the sacrificed
	// slot. Zero selects DefaultSegmentBufferSize. Clamped to
	// [2, MaxSegmentBufferSize].
	RingSize int
}

// NewControl builds a Control over the given collaborators. It does not
// start stepping; call Init followed by WakeUp to begin executing planner
// blocks.
func NewControl(deps Deps) (*Control, error) {
	if deps.Planner == nil || deps.Pins == nil || deps.Spindle == nil ||
		deps.Probe == nil || deps.Timer == nil || deps.Supervisor == nil || deps.Settings == nil {
		return nil, Error("stepcore: NewControl: all Deps fields are required")
	}

	ringSize := deps.RingSize
	if ringSize == 0 {
		ringSize = DefaultSegmentBufferSize
	}
	if ringSize < 2 {
		ringSize = 2
	}
	if ringSize > MaxSegmentBufferSize {
		ringSize = MaxSegmentBufferSize
	}

	ring := newSegmentRing(ringSize)
	pool := newStepperBlockPool(ringSize - 1)

	stepper := newStepper(ring, pool, deps.Pins, deps.Spindle, deps.Probe, deps.Timer, deps.Supervisor, deps.Timing)
	preparer := newPreparer(ring, pool, deps.Planner, deps.Spindle, deps.Supervisor, deps.Settings, deps.Timing)

	return &Control{
		ring: ring, pool: pool, stepper: stepper, preparer: preparer,
		pins: deps.Pins, timer: deps.Timer, sup: deps.Supervisor,
		settings: deps.Settings, timing: deps.Timing,
	}, nil
}

// Init applies the current Settings' invert masks to the pin driver. Call
// it once at startup and again after any settings change that touches
// StepInvertMask, DirInvertMask, or InvertStepEnable (spec §6).
func (c *Control) Init() {
	stepMask, dirMask := c.GenerateStepDirInvertMasks()
	c.pins.SetInvertMasks(stepMask, dirMask)
}

// GenerateStepDirInvertMasks computes the per-pin invert masks Pins should
// apply, folding each axis's StepPinMask/DirPinMask against the global
// StepInvertMask/DirInvertMask (spec §6, supplemented from the original's
// per-axis pin-mask tables).
func (c *Control) GenerateStepDirInvertMasks() (stepMask, dirMask uint8) {
	for axis := Axis(0); axis < AxisCount; axis++ {
		if c.settings.StepInvertMask&bitFor(axis) != 0 {
			stepMask |= c.settings.StepPinMask[axis]
		}
		if c.settings.DirInvertMask&bitFor(axis) != 0 {
			dirMask |= c.settings.DirPinMask[axis]
		}
	}
	return stepMask, dirMask
}

// WakeUp enables the steppers, waits 10 ms for the drivers to settle, and
// fills the segment ring so the ISR has segments to consume (spec §6,
// "Stepper_WakeUp"). It does not start the step timer: Timer has no start
// call, and Tick runs whenever the caller's timer invokes it.
func (c *Control) WakeUp() {
	c.pins.SetEnable(!c.settings.InvertStepEnable)
	time.Sleep(10 * time.Millisecond)
	c.preparer.PrepareBuffer()
}

// Disable de-energizes the axes (spec §4.3, "Disable(force)"): it always
// stops the step timer and parks the step lines via PortReset first, so a
// hard cancellation (force true, or Disable called mid-hold) never leaves
// a pulse asserted. When force is false, a StepperIdleLockTime of 0xFF or
// an in-progress homing cycle leaves the drivers energized (the
// hold-indefinitely setting); otherwise it dwells StepperIdleLockTime
// milliseconds — the one sleep this package does outside WakeUp's settle
// — before dropping the enable line.
func (c *Control) Disable(force bool) {
	c.timer.Stop()
	c.stepper.PortReset()

	holdIndefinitely := c.settings.StepperIdleLockTime == 0xFF || c.sup.State() == StateHoming
	if !force && holdIndefinitely {
		return
	}

	time.Sleep(time.Duration(c.settings.StepperIdleLockTime) * time.Millisecond)
	c.pins.SetEnable(c.settings.InvertStepEnable)
}

// Reset clears the ring, the stepper-block pool, and both halves' internal
// state, without touching the reported machine position (spec §6,
// "Stepper_Reset").
func (c *Control) Reset() {
	c.ring.reset()
	c.pool.reset()
	c.stepper.reset()
	c.preparer.reset()
}

// PrepareBuffer forwards to the preparer (spec §4.2). Call it from the main
// loop whenever new planner blocks may be available.
func (c *Control) PrepareBuffer() { c.preparer.PrepareBuffer() }

// Tick forwards to the ISR (spec §4.1). Call it from the step timer's
// interrupt handler.
func (c *Control) Tick() { c.stepper.Tick() }

// PortReset forwards to the ISR's pulse-width one-shot handler (spec §4.1).
// Call it from the pulse-reset timer's interrupt handler.
func (c *Control) PortReset() { c.stepper.PortReset() }

// Position returns the current machine position for axis, in steps.
func (c *Control) Position(axis Axis) int32 { return c.stepper.Position(axis) }

// SetPosition overwrites the machine position for axis, in steps. Must only
// be called while the step timer is stopped.
func (c *Control) SetPosition(axis Axis, value int32) { c.stepper.SetPosition(axis, value) }

// UpdatePlannerBlockParams forwards to the preparer (spec §4.3), called by
// the planner after it recalculates the in-flight block's speed profile.
func (c *Control) UpdatePlannerBlockParams() { c.preparer.UpdatePlannerBlockParams() }

// ParkingSetupBuffer forwards to the preparer (spec §4.3), called before a
// parking retract motion takes over the segment buffer.
func (c *Control) ParkingSetupBuffer() { c.preparer.ParkingSetupBuffer() }

// ParkingRestoreBuffer forwards to the preparer (spec §4.3), called once
// the parking motion completes to resume the snapshotted block.
func (c *Control) ParkingRestoreBuffer() { c.preparer.ParkingRestoreBuffer() }

// RealtimeRate returns the current feed rate in mm/min, or 0 when the
// machine is not in an active motion state (spec §6, "Stepper_GetRealtimeRate").
func (c *Control) RealtimeRate() float32 {
	if !isActiveMotionState(c.sup.State()) {
		return 0
	}
	return c.preparer.CurrentSpeed()
}
