package stepcore

import "github.com/grbl-go/stepcore/internal/mathutil"

// Preparer is the segment preparer: the main-loop half of the core
// (spec §4.2). It integrates the current planner block's velocity profile
// and carves it into ~10ms segments for the ring, one PrepareBuffer call
// at a time. All floating point in the core lives here; the ISR (Stepper)
// never touches a float.
type Preparer struct {
	ring     *segmentRing
	pool     *stepperBlockPool
	planner  Planner
	spindle  Spindle
	sup      Supervisor
	settings *Settings
	timing   Timing

	stBlockIndex uint8
	flags        prepFlags

	dtRemainder    float32
	stepsRemaining float32
	stepPerMM      float32
	reqMMIncrement float32

	// Parking snapshot of a partially-consumed block, restored by
	// ParkingRestoreBuffer (spec §4.3).
	lastStBlockIndex   uint8
	lastStepsRemaining float32
	lastStepPerMM      float32
	lastDtRemainder    float32

	rampType        RampType
	mmComplete      float32
	currentSpeed    float32
	maximumSpeed    float32
	exitSpeed       float32
	accelerateUntil float32
	decelerateAfter float32

	invRate           float32
	currentSpindlePWM uint8

	plBlock *PlannerBlock // block currently being prepped; nil = none held
}

func newPreparer(ring *segmentRing, pool *stepperBlockPool, planner Planner, spindle Spindle, sup Supervisor, settings *Settings, timing Timing) *Preparer {
	return &Preparer{
		ring: ring, pool: pool, planner: planner, spindle: spindle,
		sup: sup, settings: settings, timing: timing,
	}
}

// CurrentSpeed is the speed at the end of the segment buffer (mm/min), used
// by Control.RealtimeRate.
func (p *Preparer) CurrentSpeed() float32 { return p.currentSpeed }

// PrepareBuffer fills the segment ring from the planner, one segment per
// iteration, until the ring has no more room or the planner has no more
// blocks (spec §4.2).
func (p *Preparer) PrepareBuffer() {
	if p.sup.StepControl().Has(StepControlEndMotion) {
		return
	}

	for p.ring.hasRoom() {
		if p.plBlock == nil {
			if p.sup.StepControl().Has(StepControlExecuteSysMotion) {
				p.plBlock = p.planner.SystemMotionBlock()
			} else {
				p.plBlock = p.planner.CurrentBlock()
			}
			if p.plBlock == nil {
				return
			}

			if p.flags.has(prepFlagRecalculate) {
				if p.flags.has(prepFlagParking) {
					p.flags.clear(prepFlagRecalculate)
				} else {
					p.flags = 0
				}
			} else {
				p.loadNewBlock()
			}

			p.computeVelocityProfile()
			p.sup.SetStepControl(p.sup.StepControl() | StepControlUpdateSpindlePWM)
		}

		if p.carveSegment() {
			return
		}
	}
}

// loadNewBlock allocates a fresh stepper-block pool slot for p.plBlock and
// pre-scales its Bresenham data by MaxAMASSLevel (spec §4.2(a)).
func (p *Preparer) loadNewBlock() {
	p.stBlockIndex = p.pool.nextIndex(p.stBlockIndex)
	block := p.pool.at(p.stBlockIndex)

	block.DirectionBits = p.plBlock.DirectionBits
	for axis := Axis(0); axis < AxisCount; axis++ {
		block.Steps[axis] = p.plBlock.Steps[axis] << MaxAMASSLevel
	}
	block.StepEventCount = p.plBlock.StepEventCount << MaxAMASSLevel

	p.stepsRemaining = float32(p.plBlock.StepEventCount)
	p.stepPerMM = p.stepsRemaining / p.plBlock.Millimeters
	p.reqMMIncrement = ReqMMIncrementScalar / p.stepPerMM
	p.dtRemainder = 0

	sc := p.sup.StepControl()
	if sc.Has(StepControlExecuteHold) || p.flags.has(prepFlagDecelOverride) {
		p.currentSpeed = p.exitSpeed
		p.plBlock.EntrySpeedSqr = p.exitSpeed * p.exitSpeed
		p.flags.clear(prepFlagDecelOverride)
	} else {
		p.currentSpeed = mathutil.Sqrt(p.plBlock.EntrySpeedSqr)
	}

	block.IsPWMRateAdjusted = false
	if p.settings.LaserMode && p.plBlock.Condition.Has(CondSpindleCCW) {
		p.invRate = 1.0 / p.plBlock.ProgrammedRate
		block.IsPWMRateAdjusted = true
	}
}

// computeVelocityProfile classifies the block's velocity profile into one
// of the seven shapes and sets accelerateUntil/decelerateAfter/maximumSpeed
// accordingly (spec §4.2(b)).
func (p *Preparer) computeVelocityProfile() {
	p.mmComplete = 0
	inv2Accel := 0.5 / p.plBlock.Acceleration
	sc := p.sup.StepControl()

	if sc.Has(StepControlExecuteHold) {
		p.rampType = RampDecel
		decelDist := p.plBlock.Millimeters - inv2Accel*p.plBlock.EntrySpeedSqr
		if decelDist < 0 {
			p.exitSpeed = mathutil.Sqrt(p.plBlock.EntrySpeedSqr - 2*p.plBlock.Acceleration*p.plBlock.Millimeters)
		} else {
			p.mmComplete = decelDist
			p.exitSpeed = 0
		}
		return
	}

	p.rampType = RampAccel
	p.accelerateUntil = p.plBlock.Millimeters

	var exitSpeedSqr float32
	if sc.Has(StepControlExecuteSysMotion) {
		p.exitSpeed = 0
		exitSpeedSqr = 0
	} else {
		exitSpeedSqr = p.planner.ExecBlockExitSpeedSqr()
		p.exitSpeed = mathutil.Sqrt(exitSpeedSqr)
	}

	nominalSpeed := p.planner.ComputeProfileNominalSpeed(p.plBlock)
	nominalSpeedSqr := nominalSpeed * nominalSpeed
	intersectDistance := 0.5 * (p.plBlock.Millimeters + inv2Accel*(p.plBlock.EntrySpeedSqr-exitSpeedSqr))

	switch {
	case p.plBlock.EntrySpeedSqr > nominalSpeedSqr:
		// Only occurs during feed-override reductions.
		p.accelerateUntil = p.plBlock.Millimeters - inv2Accel*(p.plBlock.EntrySpeedSqr-nominalSpeedSqr)
		if p.accelerateUntil <= 0 {
			p.rampType = RampDecel
			p.exitSpeed = mathutil.Sqrt(p.plBlock.EntrySpeedSqr - 2*p.plBlock.Acceleration*p.plBlock.Millimeters)
			p.flags.set(prepFlagDecelOverride)
		} else {
			p.decelerateAfter = inv2Accel * (nominalSpeedSqr - exitSpeedSqr)
			p.maximumSpeed = nominalSpeed
			p.rampType = RampDecelOverride
		}

	case intersectDistance > 0:
		if intersectDistance < p.plBlock.Millimeters {
			p.decelerateAfter = inv2Accel * (nominalSpeedSqr - exitSpeedSqr)
			if p.decelerateAfter < intersectDistance {
				p.maximumSpeed = nominalSpeed
				if p.plBlock.EntrySpeedSqr == nominalSpeedSqr {
					p.rampType = RampCruise
				} else {
					p.accelerateUntil -= inv2Accel * (nominalSpeedSqr - p.plBlock.EntrySpeedSqr)
				}
			} else {
				p.accelerateUntil = intersectDistance
				p.decelerateAfter = intersectDistance
				p.maximumSpeed = mathutil.Sqrt(2*p.plBlock.Acceleration*intersectDistance + exitSpeedSqr)
			}
		} else {
			p.rampType = RampDecel
		}

	default:
		p.accelerateUntil = 0
		p.maximumSpeed = p.exitSpeed
	}
}

// carveSegment integrates the ramp state machine until it has filled one
// DT_SEGMENT-long (or profile-terminal) segment, writes it to the ring,
// and updates the running planner/prep state (spec §4.2(c)-(h)). It
// returns true when PrepareBuffer should stop (no segment generated, or a
// hold or system-motion exit condition was reached); after a block is
// fully consumed and discarded it returns false so PrepareBuffer moves on
// to the next block.
func (p *Preparer) carveSegment() bool {
	seg := p.ring.writeSlot()
	seg.StBlockIndex = p.stBlockIndex
	seg.BacklashMotion = p.plBlock.BacklashMotion

	dtMax := p.timing.dtSegment()
	dt := float32(0)
	timeVar := dtMax
	var mmVar, speedVar float32
	mmRemaining := p.plBlock.Millimeters
	minimumMM := mmRemaining - p.reqMMIncrement
	if minimumMM < 0 {
		minimumMM = 0
	}

	for {
		switch p.rampType {
		case RampDecelOverride:
			speedVar = p.plBlock.Acceleration * timeVar
			mmVar = timeVar * (p.currentSpeed - 0.5*speedVar)
			mmRemaining -= mmVar

			if mmRemaining < p.accelerateUntil || mmVar <= 0 {
				mmRemaining = p.accelerateUntil
				timeVar = 2 * (p.plBlock.Millimeters - mmRemaining) / (p.currentSpeed + p.maximumSpeed)
				p.rampType = RampCruise
				p.currentSpeed = p.maximumSpeed
			} else {
				p.currentSpeed -= speedVar
			}

		case RampAccel:
			speedVar = p.plBlock.Acceleration * timeVar
			mmRemaining -= timeVar * (p.currentSpeed + 0.5*speedVar)

			if mmRemaining < p.accelerateUntil {
				mmRemaining = p.accelerateUntil
				timeVar = 2 * (p.plBlock.Millimeters - mmRemaining) / (p.currentSpeed + p.maximumSpeed)
				if mmRemaining == p.decelerateAfter {
					p.rampType = RampDecel
				} else {
					p.rampType = RampCruise
				}
				p.currentSpeed = p.maximumSpeed
			} else {
				p.currentSpeed += speedVar
			}

		case RampCruise:
			mmVar = mmRemaining - p.maximumSpeed*timeVar

			if mmVar < p.decelerateAfter {
				timeVar = (mmRemaining - p.decelerateAfter) / p.maximumSpeed
				mmRemaining = p.decelerateAfter
				p.rampType = RampDecel
			} else {
				mmRemaining = mmVar
			}

		default: // RampDecel
			speedVar = p.plBlock.Acceleration * timeVar
			if p.currentSpeed > speedVar {
				mmVar = mmRemaining - timeVar*(p.currentSpeed-0.5*speedVar)
				if mmVar > p.mmComplete {
					mmRemaining = mmVar
					p.currentSpeed -= speedVar
					break
				}
			}
			timeVar = 2 * (mmRemaining - p.mmComplete) / (p.currentSpeed + p.exitSpeed)
			mmRemaining = p.mmComplete
			p.currentSpeed = p.exitSpeed
		}

		dt += timeVar

		if dt < dtMax {
			timeVar = dtMax - dt
		} else {
			if mmRemaining > minimumMM {
				dtMax += p.timing.dtSegment()
				timeVar = dtMax - dt
			} else {
				break
			}
		}

		if mmRemaining <= p.mmComplete {
			break
		}
	}

	// Spindle PWM for this segment (spec §4.2(d)).
	block := p.pool.at(p.stBlockIndex)
	if block.IsPWMRateAdjusted || p.sup.StepControl().Has(StepControlUpdateSpindlePWM) {
		if p.plBlock.Condition.Has(CondSpindleCW) || p.plBlock.Condition.Has(CondSpindleCCW) {
			rpm := p.plBlock.SpindleSpeed
			if block.IsPWMRateAdjusted {
				rpm *= p.currentSpeed * p.invRate
			}
			p.currentSpindlePWM = p.spindle.ComputePWM(rpm)
		} else {
			p.currentSpindlePWM = SpindlePWMOff
		}
		p.sup.SetStepControl(p.sup.StepControl() &^ StepControlUpdateSpindlePWM)
	}
	seg.SpindlePWM = p.currentSpindlePWM

	// Steps & rate (spec §4.2(e)).
	stepDistRemaining := p.stepPerMM * mmRemaining
	nStepsRemaining := mathutil.Ceil(stepDistRemaining)
	lastNStepsRemaining := mathutil.Ceil(p.stepsRemaining)
	seg.NStep = uint16(lastNStepsRemaining - nStepsRemaining)

	if seg.NStep == 0 && p.sup.StepControl().Has(StepControlExecuteHold) {
		// Less than one step left to decelerate to zero. AMASS needs
		// whole steps, so bail without generating a segment.
		p.sup.SetStepControl(p.sup.StepControl() | StepControlEndMotion)
		if !p.flags.has(prepFlagParking) {
			p.flags.set(prepFlagHoldPartialBlock)
		}
		return true
	}

	dt += p.dtRemainder
	invRate := dt / (lastNStepsRemaining - stepDistRemaining)
	cycles := uint32(mathutil.Ceil(p.timing.TicksPerMicrosecond * 1_000_000 * 60 * invRate))

	// AMASS selection (spec §4.2(f)).
	level := p.timing.amassLevelFor(cycles)
	seg.AmassLevel = level
	if level > 0 {
		cycles >>= level
		seg.NStep <<= level
	}

	if cycles < 1<<16 {
		seg.CyclesPerTick = uint16(cycles)
	} else {
		seg.CyclesPerTick = 0xFFFF
	}
	if seg.CyclesPerTick < p.timing.stepTimerMin() {
		seg.CyclesPerTick = p.timing.stepTimerMin()
	}

	// Commit (spec §4.2(g)).
	p.ring.commit()
	p.plBlock.Millimeters = mmRemaining
	p.stepsRemaining = nStepsRemaining
	p.dtRemainder = (nStepsRemaining - stepDistRemaining) * invRate

	// Exit conditions (spec §4.2(h)).
	if mmRemaining == p.mmComplete {
		if mmRemaining > 0 {
			p.sup.SetStepControl(p.sup.StepControl() | StepControlEndMotion)
			if !p.flags.has(prepFlagParking) {
				p.flags.set(prepFlagHoldPartialBlock)
			}
			return true
		}

		if p.sup.StepControl().Has(StepControlExecuteSysMotion) {
			p.sup.SetStepControl(p.sup.StepControl() | StepControlEndMotion)
			return true
		}

		p.plBlock = nil
		p.planner.DiscardCurrentBlock()
	}

	return false
}

// UpdatePlannerBlockParams is called by the planner when it recalculates
// the in-flight block (spec §4.3).
func (p *Preparer) UpdatePlannerBlockParams() {
	if p.plBlock != nil {
		p.flags.set(prepFlagRecalculate)
		p.plBlock.EntrySpeedSqr = p.currentSpeed * p.currentSpeed
		p.plBlock = nil
	}
}

// ParkingSetupBuffer snapshots a partially-consumed block before a parking
// retract motion takes over the segment buffer (spec §4.3).
func (p *Preparer) ParkingSetupBuffer() {
	if p.flags.has(prepFlagHoldPartialBlock) {
		p.lastStBlockIndex = p.stBlockIndex
		p.lastStepsRemaining = p.stepsRemaining
		p.lastDtRemainder = p.dtRemainder
		p.lastStepPerMM = p.stepPerMM
	}
	p.flags.set(prepFlagParking)
	p.flags.clear(prepFlagRecalculate)
	p.plBlock = nil
}

// ParkingRestoreBuffer restores the snapshot taken by ParkingSetupBuffer
// once the parking motion completes (spec §4.3).
func (p *Preparer) ParkingRestoreBuffer() {
	if p.flags.has(prepFlagHoldPartialBlock) {
		p.stBlockIndex = p.lastStBlockIndex
		p.stepsRemaining = p.lastStepsRemaining
		p.dtRemainder = p.lastDtRemainder
		p.stepPerMM = p.lastStepPerMM
		p.flags = prepFlagHoldPartialBlock | prepFlagRecalculate
		p.reqMMIncrement = ReqMMIncrementScalar / p.stepPerMM
	} else {
		p.flags = 0
	}
	p.plBlock = nil
}

func (p *Preparer) reset() {
	ring, pool, planner, spindle, sup, settings, timing := p.ring, p.pool, p.planner, p.spindle, p.sup, p.settings, p.timing
	*p = Preparer{ring: ring, pool: pool, planner: planner, spindle: spindle, sup: sup, settings: settings, timing: timing}
}
