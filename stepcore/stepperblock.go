package stepcore

// StepperBlock is the core-owned, pre-scaled copy of a planner block's
// Bresenham essentials (spec §3). Multiple segments in the ring may
// reference the same StepperBlock slot; it must stay valid until the ISR
// has consumed the last segment referencing it.
type StepperBlock struct {
	Steps          [AxisCount]uint32 // planner.Steps[i] << MaxAMASSLevel
	StepEventCount uint32            // planner.StepEventCount << MaxAMASSLevel
	DirectionBits  uint8
	IsPWMRateAdjusted bool
}

// stepperBlockPool is the parallel ring of size S-1 holding StepperBlock
// data (spec §3: pool size = ring capacity minus one, guaranteeing at
// least one unreferenced slot at all times).
type stepperBlockPool struct {
	blocks []StepperBlock
}

func newStepperBlockPool(size int) *stepperBlockPool {
	return &stepperBlockPool{blocks: make([]StepperBlock, size)}
}

func (p *stepperBlockPool) at(index uint8) *StepperBlock {
	return &p.blocks[index]
}

// nextIndex advances a pool index with wraparound, mirroring
// Stepper_NextBlockIndex in the original.
func (p *stepperBlockPool) nextIndex(index uint8) uint8 {
	index++
	if int(index) == len(p.blocks) {
		return 0
	}
	return index
}

func (p *stepperBlockPool) reset() {
	for i := range p.blocks {
		p.blocks[i] = StepperBlock{}
	}
}
