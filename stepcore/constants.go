package stepcore

// MaxAMASSLevel is the highest Adaptive Multi-Axis Step Smoothing level.
// Levels are arbitrary bit-shift multipliers; powers of two are used to
// keep the ISR to shifts instead of divides (spec §9).
const MaxAMASSLevel = 3

// AMASS cutoff frequencies in Hz for levels 1..3, matching grbl's defaults.
const (
	amassCutoff1Hz uint32 = 8000
	amassCutoff2Hz uint32 = 4000
	amassCutoff3Hz uint32 = 2000
)

// ReqMMIncrementScalar scales 1/step_per_mm to get the minimum remaining
// distance a segment may leave behind, guaranteeing at least one step is
// ever carved per call (spec §4.2(c)).
const ReqMMIncrementScalar = 1.25

// DefaultSegmentBufferSize is the typical ring depth (spec §6); the caller
// is free to size the ring 6-10 deep via Deps.RingSize in NewControl.
const DefaultSegmentBufferSize = 10

// MaxSegmentBufferSize bounds the sizes of the ring and the stepper-block
// pool, which NewControl allocates once. Real firmware picks one size at
// compile time; this module allows any size up to this ceiling to be chosen
// via Deps.RingSize in NewControl.
const MaxSegmentBufferSize = 32

// Timing carries the compile-time constants spec §6 lists as externally
// supplied: the step timer clock, the segment cadence, and the step-rate
// ceiling.
type Timing struct {
	// FTimerStepper is the step timer's input clock, in Hz (e.g. 24e6 for
	// a 24 MHz timer).
	FTimerStepper uint32
	// AccelerationTicksPerSecond is the segment cadence (typ. 100 Hz).
	AccelerationTicksPerSecond uint32
	// MaxStepRateHz floors cycles_per_tick. Zero selects the default
	// 60,000 steps/sec ceiling used when no explicit rate limit is set.
	MaxStepRateHz uint32
	// TicksPerMicrosecond converts the timer's cycle count into the
	// inverse-rate-to-cycles computation of spec §4.2(e). For a timer
	// clocked directly off FTimerStepper this is FTimerStepper/1e6.
	TicksPerMicrosecond float32
}

// dtSegment returns DT_SEGMENT in minutes: the nominal duration of one
// carved segment.
func (t Timing) dtSegment() float32 {
	return 1.0 / (float32(t.AccelerationTicksPerSecond) * 60.0)
}

// stepTimerMin is STEP_TIMER_MIN: the floor on cycles_per_tick enforcing
// the hardware's maximum step rate.
func (t Timing) stepTimerMin() uint16 {
	maxRate := t.MaxStepRateHz
	if maxRate == 0 {
		maxRate = 60000
	}
	return uint16(t.FTimerStepper / maxRate)
}

func (t Timing) amassLevel1Cycles() uint32 { return t.FTimerStepper / amassCutoff1Hz }
func (t Timing) amassLevel2Cycles() uint32 { return t.FTimerStepper / amassCutoff2Hz }
func (t Timing) amassLevel3Cycles() uint32 { return t.FTimerStepper / amassCutoff3Hz }

// amassLevelFor chooses the highest AMASS level whose cutoff the given
// cycle count qualifies for (spec §4.2(f)).
func (t Timing) amassLevelFor(cycles uint32) uint8 {
	if cycles < t.amassLevel1Cycles() {
		return 0
	}
	if cycles < t.amassLevel2Cycles() {
		return 1
	}
	if cycles < t.amassLevel3Cycles() {
		return 2
	}
	return 3
}
