//go:build tinygo

// Command cncboard is a real-hardware bring-up entry point: it wires a
// TMC5160 (SPI) driving the X axis and a TMC2209 (UART) driving Y and Z,
// configures both for external STEP/DIR pulses, and hands the assembled
// Pins/Spindle/Probe to a stepcore.Control. It is the board main a
// developer copies and adapts per wiring, not a generic library.
package main

import (
	"machine"

	"github.com/grbl-go/stepcore/pins"
	"github.com/grbl-go/stepcore/probe"
	"github.com/grbl-go/stepcore/spindle"
	"github.com/grbl-go/stepcore/stepcore"
	"github.com/grbl-go/stepcore/tmc2209"
	"github.com/grbl-go/stepcore/tmc5160"
)

// pollTimer is a cooperative stand-in for the board's own hardware step
// timer: it never interrupts on its own. main's run loop below calls Tick
// back to back, as fast as the loop runs, instead of relying on an ISR,
// which is adequate for
// the modest step rates a TMC5160/TMC2209 pair in external STEP/DIR mode
// typically drives. A board that needs ISR-accurate pulse timing should
// replace this with a real machine timer interrupt calling ctl.Tick and
// ctl.PortReset.
type pollTimer struct {
	reload, pulseWidth uint16
}

func (t *pollTimer) SetReload(cyclesPerTick uint16) { t.reload = cyclesPerTick }
func (t *pollTimer) SetPulseWidth(cycles uint16)    { t.pulseWidth = cycles }
func (t *pollTimer) Stop()                          {}

// boardSupervisor is the minimal Supervisor this single-board main needs:
// one machine state and the step-control bitset, both driven directly by
// main rather than a serial command parser.
type boardSupervisor struct {
	state       stepcore.MachineState
	stepControl stepcore.StepControl
}

func (s *boardSupervisor) State() stepcore.MachineState           { return s.state }
func (s *boardSupervisor) StepControl() stepcore.StepControl      { return s.stepControl }
func (s *boardSupervisor) SetStepControl(sc stepcore.StepControl) { s.stepControl = sc }
func (s *boardSupervisor) HomingAxisLock() uint8                  { return 0xFF }
func (s *boardSupervisor) AlarmActive() bool                      { return false }
func (s *boardSupervisor) ProbeArmed() bool                       { return true }
func (s *boardSupervisor) SetExecStateFlag(stepcore.ExecState)    {}

func main() {
	spi := machine.SPI1
	spi.Configure(machine.SPIConfig{Frequency: 12_000_000, Mode: 3, LSBFirst: false})
	csX := machine.GPIO13
	csX.Configure(machine.PinConfig{Mode: machine.PinOutput})
	ennX := machine.GPIO18
	ennX.Configure(machine.PinConfig{Mode: machine.PinOutput})

	xComm := tmc5160.NewSPIComm(*spi, map[uint8]machine.Pin{0: csX})
	xDriver := tmc5160.NewDriver(xComm, 0, ennX, tmc5160.NewDefaultStepper())
	if err := xDriver.ConfigureForExternalStepDir(
		tmc5160.NewPowerStageParameters(2, 16, 8),
		tmc5160.NewMotorParameters(128, 5, 20),
	); err != nil {
		println("cncboard: TMC5160 configuration failed:", err.Error())
		return
	}

	uart := machine.UART0
	yzComm := tmc2209.NewUARTComm(*uart, 0)
	yDriver := tmc2209.NewTMC2209(yzComm, 0)
	zDriver := tmc2209.NewTMC2209(yzComm, 1)
	axisCfg := tmc2209.CNCConfig{RunCurrentPercent: 70, HoldCurrentPercent: 35, Microsteps: 16, StealthChop: true}
	if err := yDriver.Setup(); err != nil {
		println("cncboard: Y driver UART setup failed:", err.Error())
		return
	}
	if err := yDriver.Apply(axisCfg); err != nil {
		println("cncboard: Y driver configuration failed:", err.Error())
		return
	}
	if err := zDriver.Apply(axisCfg); err != nil {
		println("cncboard: Z driver configuration failed:", err.Error())
		return
	}

	xStep, xDir := machine.GPIO2, machine.GPIO3
	yStep, yDir := machine.GPIO4, machine.GPIO5
	zStep, zDir := machine.GPIO6, machine.GPIO7
	enable := machine.GPIO8
	for _, p := range []machine.Pin{xStep, xDir, yStep, yDir, zStep, zDir, enable} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}

	axes := [3]pins.AxisPins{
		{Step: pins.FromMachinePins{Pin: xStep}, Dir: pins.FromMachinePins{Pin: xDir}},
		{Step: pins.FromMachinePins{Pin: yStep}, Dir: pins.FromMachinePins{Pin: yDir}},
		{Step: pins.FromMachinePins{Pin: zStep}, Dir: pins.FromMachinePins{Pin: zDir}},
	}
	pinDriver := pins.NewDriver(axes, pins.FromMachinePins{Pin: enable})

	pwm := machine.PWM0
	if err := pwm.Configure(machine.PWMConfig{Period: 1e9 / 20000}); err != nil {
		println("cncboard: spindle PWM configure failed:", err.Error())
		return
	}
	spindleDriver, err := spindle.NewDriver(pwm, machine.GPIO9, 24000, 40)
	if err != nil {
		println("cncboard: spindle PWM setup failed:", err.Error())
		return
	}

	probePin := machine.GPIO10
	probePin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	// posRef breaks the construction cycle: probe.NewMonitor needs a
	// Positioner, but the only Positioner is the Control built below from
	// the same Deps that need the probe. ctl is filled in once it exists.
	posRef := &positionerRef{}

	planner := &boardPlanner{}
	sup := &boardSupervisor{state: stepcore.StateIdle}
	settings := &stepcore.Settings{
		StepperIdleLockTime: 25,
		StepPinMask:         [stepcore.AxisCount]uint8{1, 2, 4},
		DirPinMask:          [stepcore.AxisCount]uint8{1, 2, 4},
	}
	timing := stepcore.Timing{
		FTimerStepper:              24_000_000,
		AccelerationTicksPerSecond: 100,
		TicksPerMicrosecond:        24,
	}

	ctl, err := stepcore.NewControl(stepcore.Deps{
		Planner: planner, Pins: pinDriver, Spindle: spindleDriver,
		Probe: probe.NewMonitor(probePinAdapter{probePin}, posRef, false),
		Timer: &pollTimer{}, Supervisor: sup,
		Settings: settings, Timing: timing, RingSize: 10,
	})
	if err != nil {
		println("cncboard: could not build Control:", err.Error())
		return
	}
	posRef.ctl = ctl
	ctl.Init()
	ctl.WakeUp()

	for {
		ctl.PrepareBuffer()
		ctl.Tick()
	}
}

// positionerRef forwards probe.Positioner to a *stepcore.Control set after
// construction, breaking the Probe/Control construction cycle.
type positionerRef struct{ ctl *stepcore.Control }

func (r *positionerRef) Position(axis stepcore.Axis) int32 {
	if r.ctl == nil {
		return 0
	}
	return r.ctl.Position(axis)
}

// probePinAdapter adapts machine.Pin into probe.Pin.
type probePinAdapter struct{ machine.Pin }

func (p probePinAdapter) Get() bool { return p.Pin.Get() }

// boardPlanner is a placeholder Planner with no queued motion: a real
// board main wires this to a G-code interpreter's block buffer instead.
type boardPlanner struct{}

func (boardPlanner) CurrentBlock() *stepcore.PlannerBlock        { return nil }
func (boardPlanner) SystemMotionBlock() *stepcore.PlannerBlock   { return nil }
func (boardPlanner) ExecBlockExitSpeedSqr() float32              { return 0 }
func (boardPlanner) ComputeProfileNominalSpeed(*stepcore.PlannerBlock) float32 {
	return 0
}
func (boardPlanner) DiscardCurrentBlock() {}
