package stepcore

// PlannerBlock is the planner's motion block, read-only to stepcore except
// for Millimeters and EntrySpeedSqr, which the preparer updates in place as
// it consumes the block (spec §3).
type PlannerBlock struct {
	Steps          [AxisCount]uint32
	StepEventCount uint32 // max over axes
	DirectionBits  uint8

	Millimeters    float32
	Acceleration   float32 // mm/min^2
	EntrySpeedSqr  float32 // (mm/min)^2
	ProgrammedRate float32 // mm/min

	SpindleSpeed float32
	Condition    BlockCondition

	BacklashMotion bool
}

// Planner is the external motion planner stepcore consumes from. It is
// implemented outside this module; stepcore only ever calls it from the
// preparer, never from the ISR (spec §6).
type Planner interface {
	// CurrentBlock returns the next queued block, or nil if none is ready.
	CurrentBlock() *PlannerBlock
	// SystemMotionBlock returns the block driving an internal system
	// motion (e.g. homing, parking), or nil.
	SystemMotionBlock() *PlannerBlock
	// ExecBlockExitSpeedSqr returns the planner-computed exit v^2 for the
	// block currently executing.
	ExecBlockExitSpeedSqr() float32
	// ComputeProfileNominalSpeed returns the nominal speed for the given
	// block, already adjusted for any active feed override.
	ComputeProfileNominalSpeed(b *PlannerBlock) float32
	// DiscardCurrentBlock releases the head block once its millimeters
	// have been fully consumed.
	DiscardCurrentBlock()
}

// Settings is the subset of the persistent settings store stepcore reads
// (spec §6).
type Settings struct {
	StepInvertMask      uint8
	DirInvertMask       uint8
	StepperIdleLockTime uint8 // 0xFF = hold axes enabled indefinitely
	InvertStepEnable    bool
	LaserMode           bool
	StepPinMask         [AxisCount]uint8
	DirPinMask          [AxisCount]uint8
}

// Supervisor is the system-state side-channel stepcore observes and
// signals (spec §6): run state, the shared step-control bitset, the homing
// axis lock mask, and the alarm flag, plus the one flag the ISR sets.
type Supervisor interface {
	State() MachineState
	StepControl() StepControl
	SetStepControl(StepControl)
	HomingAxisLock() uint8
	AlarmActive() bool
	ProbeArmed() bool
	SetExecStateFlag(ExecState)
}

// ExecState is the realtime-exec flag the ISR raises for the main loop to
// observe (only CycleStop is used by stepcore today).
type ExecState uint8

const (
	ExecStateCycleStop ExecState = 1 << iota
)
