package stepcore

// mockPins records every call stepcore makes against a Pins implementation,
// enough to assert on step pulses, direction, enable, and invert masks.
type mockPins struct {
	stepHigh       [AxisCount]bool
	stepPulses     [AxisCount]int
	direction      [AxisCount]bool
	enabled        bool
	idleCalls      int
	stepMask       uint8
	dirMask        uint8
}

func newMockPins() *mockPins { return &mockPins{} }

func (p *mockPins) StepAxis(axis Axis, high bool) {
	p.stepHigh[axis] = high
	if high {
		p.stepPulses[axis]++
	}
}

func (p *mockPins) SetDirection(axis Axis, forward bool) { p.direction[axis] = forward }
func (p *mockPins) SetEnable(enabled bool)                { p.enabled = enabled }
func (p *mockPins) Idle()                                 { p.idleCalls++ }
func (p *mockPins) SetInvertMasks(stepMask, dirMask uint8) {
	p.stepMask = stepMask
	p.dirMask = dirMask
}

// mockSpindle is a no-op Spindle that records the last duty value pushed
// and applies a trivial linear rpm->pwm mapping.
type mockSpindle struct {
	speed      uint8
	setCalls   int
	maxRPM     float32
}

func newMockSpindle() *mockSpindle { return &mockSpindle{maxRPM: 1000} }

func (s *mockSpindle) SetSpeed(pwm uint8) {
	s.speed = pwm
	s.setCalls++
}

func (s *mockSpindle) ComputePWM(rpm float32) uint8 {
	if rpm <= 0 {
		return 0
	}
	if rpm >= s.maxRPM {
		return 255
	}
	return uint8(255 * rpm / s.maxRPM)
}

// mockProbe counts StateMonitor invocations.
type mockProbe struct{ calls int }

func (p *mockProbe) StateMonitor() { p.calls++ }

// mockTimer records the last reload/pulse-width programmed.
type mockTimer struct {
	reload     uint16
	pulseWidth uint16
	reloads    []uint16
	stopped    bool
	stopCount  int
}

func (t *mockTimer) SetReload(cyclesPerTick uint16) {
	t.reload = cyclesPerTick
	t.reloads = append(t.reloads, cyclesPerTick)
}
func (t *mockTimer) SetPulseWidth(cycles uint16) { t.pulseWidth = cycles }
func (t *mockTimer) Stop() {
	t.stopped = true
	t.stopCount++
}

// mockSupervisor is a fully in-memory Supervisor double.
type mockSupervisor struct {
	state          MachineState
	stepControl    StepControl
	homingAxisLock uint8
	alarm          bool
	probeArmed     bool
	execFlags      ExecState
}

func newMockSupervisor() *mockSupervisor {
	return &mockSupervisor{homingAxisLock: 0xFF}
}

func (s *mockSupervisor) State() MachineState            { return s.state }
func (s *mockSupervisor) StepControl() StepControl       { return s.stepControl }
func (s *mockSupervisor) SetStepControl(sc StepControl)  { s.stepControl = sc }
func (s *mockSupervisor) HomingAxisLock() uint8          { return s.homingAxisLock }
func (s *mockSupervisor) AlarmActive() bool              { return s.alarm }
func (s *mockSupervisor) ProbeArmed() bool               { return s.probeArmed }
func (s *mockSupervisor) SetExecStateFlag(f ExecState)   { s.execFlags |= f }

// mockPlanner serves a fixed queue of blocks, one at a time, mimicking the
// real planner's ring buffer closely enough to drive the preparer.
type mockPlanner struct {
	queue           []*PlannerBlock
	discardedCount  int
	exitSpeedSqr    float32
	nominalSpeedFor func(b *PlannerBlock) float32
	sysMotion       *PlannerBlock
}

func (p *mockPlanner) CurrentBlock() *PlannerBlock {
	if len(p.queue) == 0 {
		return nil
	}
	return p.queue[0]
}

func (p *mockPlanner) SystemMotionBlock() *PlannerBlock { return p.sysMotion }

func (p *mockPlanner) ExecBlockExitSpeedSqr() float32 { return p.exitSpeedSqr }

func (p *mockPlanner) ComputeProfileNominalSpeed(b *PlannerBlock) float32 {
	if p.nominalSpeedFor != nil {
		return p.nominalSpeedFor(b)
	}
	return b.ProgrammedRate
}

func (p *mockPlanner) DiscardCurrentBlock() {
	p.discardedCount++
	if len(p.queue) > 0 {
		p.queue = p.queue[1:]
	}
}

func defaultTestTiming() Timing {
	return Timing{
		FTimerStepper:              24_000_000,
		AccelerationTicksPerSecond: 100,
		MaxStepRateHz:              0,
		TicksPerMicrosecond:        24,
	}
}

func defaultTestSettings() *Settings {
	return &Settings{
		StepperIdleLockTime: 25,
		StepPinMask:         [AxisCount]uint8{1, 2, 4},
		DirPinMask:          [AxisCount]uint8{1, 2, 4},
	}
}
