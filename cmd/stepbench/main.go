// Command stepbench is a host-side simulation harness for stepcore: it
// feeds a tiny move-script language to a Control wired over in-memory
// doubles and reports the resulting step counts and timing, without any
// real hardware. It exists to let a developer sanity-check a planner
// integration before ever touching a board.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/grbl-go/stepcore/stepcore"
)

// queuePlanner is a trivial Planner backed by a FIFO of blocks appended by
// the move-script interpreter below.
type queuePlanner struct {
	blocks    []*stepcore.PlannerBlock
	discarded int
}

func (q *queuePlanner) CurrentBlock() *stepcore.PlannerBlock {
	if len(q.blocks) == 0 {
		return nil
	}
	return q.blocks[0]
}
func (q *queuePlanner) SystemMotionBlock() *stepcore.PlannerBlock { return nil }
func (q *queuePlanner) ExecBlockExitSpeedSqr() float32            { return 0 }
func (q *queuePlanner) ComputeProfileNominalSpeed(b *stepcore.PlannerBlock) float32 {
	return b.ProgrammedRate
}
func (q *queuePlanner) DiscardCurrentBlock() {
	q.discarded++
	if len(q.blocks) > 0 {
		q.blocks = q.blocks[1:]
	}
}

type noopPins struct{}

func (noopPins) StepAxis(stepcore.Axis, bool)     {}
func (noopPins) SetDirection(stepcore.Axis, bool) {}
func (noopPins) SetEnable(bool)                   {}
func (noopPins) Idle()                            {}
func (noopPins) SetInvertMasks(uint8, uint8)      {}

type noopSpindle struct{}

func (noopSpindle) SetSpeed(uint8)           {}
func (noopSpindle) ComputePWM(float32) uint8 { return 0 }

type noopProbe struct{}

func (noopProbe) StateMonitor() {}

type noopTimer struct{}

func (noopTimer) SetReload(uint16)     {}
func (noopTimer) SetPulseWidth(uint16) {}
func (noopTimer) Stop()                {}

// memSupervisor is a minimal in-memory Supervisor good enough to drive the
// bench: a single state variable and the step-control bitset.
type memSupervisor struct {
	state       stepcore.MachineState
	stepControl stepcore.StepControl
}

func (s *memSupervisor) State() stepcore.MachineState           { return s.state }
func (s *memSupervisor) StepControl() stepcore.StepControl      { return s.stepControl }
func (s *memSupervisor) SetStepControl(sc stepcore.StepControl) { s.stepControl = sc }
func (s *memSupervisor) HomingAxisLock() uint8                  { return 0xFF }
func (s *memSupervisor) AlarmActive() bool                      { return false }
func (s *memSupervisor) ProbeArmed() bool                       { return false }
func (s *memSupervisor) SetExecStateFlag(f stepcore.ExecState) {}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	planner := &queuePlanner{}
	sup := &memSupervisor{state: stepcore.StateCycle}
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
		Planner: planner, Pins: noopPins{}, Spindle: noopSpindle{},
		Probe: noopProbe{}, Timer: noopTimer{}, Supervisor: sup,
		Settings: settings, Timing: timing, RingSize: 10,
	})
	if err != nil {
		log.Error("bench: could not build Control", "error", err)
		os.Exit(1)
	}
	ctl.Init()

	log.Info("stepbench ready, type 'help' for commands")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields, err := shlex.Split(scanner.Text())
		if err != nil || len(fields) == 0 {
			continue
		}
		runCommand(fields, ctl, planner, sup, log)
	}
}

func runCommand(fields []string, ctl *stepcore.Control, planner *queuePlanner, sup *memSupervisor, log *slog.Logger) {
	switch fields[0] {
	case "help":
		fmt.Println("commands: move X<mm> Y<mm> Z<mm> F<rate> | hold | resume | park | dump | run <ticks>")
	case "move":
		block := parseMoveCommand(fields[1:])
		planner.blocks = append(planner.blocks, block)
		ctl.PrepareBuffer()
		fmt.Printf("queued block: steps=%v millimeters=%.3f rate=%.1f\n", block.Steps, block.Millimeters, block.ProgrammedRate)
	case "hold":
		sup.stepControl |= stepcore.StepControlExecuteHold
		ctl.UpdatePlannerBlockParams()
		log.Info("hold requested")
	case "resume":
		sup.stepControl &^= stepcore.StepControlExecuteHold
		log.Info("resume requested")
	case "park":
		ctl.ParkingSetupBuffer()
		log.Info("parking buffer snapshotted")
	case "run":
		n := 1000
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				n = v
			}
		}
		for i := 0; i < n; i++ {
			ctl.PrepareBuffer()
			ctl.Tick()
		}
		fmt.Printf("ran %d ticks: x=%d y=%d z=%d rate=%.1f\n", n,
			ctl.Position(stepcore.AxisX), ctl.Position(stepcore.AxisY), ctl.Position(stepcore.AxisZ),
			ctl.RealtimeRate())
	case "dump":
		fmt.Printf("position: x=%d y=%d z=%d\n", ctl.Position(stepcore.AxisX), ctl.Position(stepcore.AxisY), ctl.Position(stepcore.AxisZ))
	default:
		fmt.Println("unrecognized command:", fields[0])
	}
}

// parseMoveCommand turns tokens like "X10" "Y4" "F300" into a synthetic
// PlannerBlock. It is a simulation convenience, not a real planner: steps
// are derived from a fixed 80 steps/mm assumption and acceleration is
// fixed at 500 mm/s^2.
func parseMoveCommand(tokens []string) *stepcore.PlannerBlock {
	const stepsPerMM = 80.0
	const acceleration = 500 * 3600 // mm/min^2

	block := &stepcore.PlannerBlock{Acceleration: acceleration, ProgrammedRate: 600}
	var maxMM float32
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		axisLetter := tok[0]
		value, err := strconv.ParseFloat(tok[1:], 32)
		if err != nil {
			continue
		}
		v := float32(value)

		switch strings.ToUpper(string(axisLetter)) {
		case "X":
			block.Steps[stepcore.AxisX] = uint32(v * stepsPerMM)
			if abs32(v) > maxMM {
				maxMM = abs32(v)
			}
		case "Y":
			block.Steps[stepcore.AxisY] = uint32(v * stepsPerMM)
			if abs32(v) > maxMM {
				maxMM = abs32(v)
			}
		case "Z":
			block.Steps[stepcore.AxisZ] = uint32(v * stepsPerMM)
			if abs32(v) > maxMM {
				maxMM = abs32(v)
			}
		case "F":
			block.ProgrammedRate = v
		}
	}

	block.Millimeters = maxMM
	for _, s := range block.Steps {
		if s > block.StepEventCount {
			block.StepEventCount = s
		}
	}
	return block
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
