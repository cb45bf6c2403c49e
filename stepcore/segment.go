package stepcore

import "sync/atomic"

// Segment is the compact, ring-buffered step-rate descriptor the preparer
// produces and the ISR consumes (spec §3).
type Segment struct {
	NStep          uint16 // step events left to emit, post-AMASS
	CyclesPerTick  uint16 // timer reload value
	StBlockIndex   uint8  // index into the stepper-block pool
	AmassLevel     uint8  // 0..MaxAMASSLevel
	SpindlePWM     uint8
	BacklashMotion bool
}

// segmentRing is the SPSC segment ring buffer (spec §3/§5). The preparer is
// the sole producer (owns nextHead and writes head), the ISR is the sole
// consumer (owns and advances tail). head and tail are atomics so the two
// sides can run on independent goroutines (real interrupt context under
// TinyGo, or a fuzzed-interleaving test here) without a data race, matching
// the spec's requirement that tail "must be accessed with single-word
// atomicity".
//
// The array holds `size` slots but only size-1 may be valid at once: head
// always points at the next free slot, one past the newest published
// segment, and the producer refuses to write when that would make head
// catch up to tail. This is the classic single-slot-sacrifice ring buffer,
// and it's why the stepper-block pool (stepperblock.go) is sized size-1.
type segmentRing struct {
	segments []Segment

	head atomic.Uint32 // published; written by producer, read by consumer
	tail atomic.Uint32 // published; written by consumer, read by producer

	nextHead uint8 // producer-private; always (head+1) mod size
}

func newSegmentRing(size int) *segmentRing {
	r := &segmentRing{segments: make([]Segment, size)}
	r.nextHead = 1 % uint8(size)
	return r
}

func (r *segmentRing) size() uint8 { return uint8(len(r.segments)) }

// --- producer side (Preparer) ---

// hasRoom reports whether the preparer may write into the current head
// slot and commit it.
func (r *segmentRing) hasRoom() bool {
	return r.tail.Load() != uint32(r.nextHead)
}

// writeSlot returns the segment the preparer should fill in before calling
// commit.
func (r *segmentRing) writeSlot() *Segment {
	return &r.segments[r.head.Load()]
}

// commit publishes the segment written via writeSlot, making it visible to
// the consumer, and advances the producer's cursors.
func (r *segmentRing) commit() {
	newHead := r.nextHead
	r.head.Store(uint32(newHead))
	r.nextHead = (newHead + 1) % r.size()
}

// --- consumer side (Stepper ISR) ---

// empty reports whether the consumer has nothing left to execute.
func (r *segmentRing) empty() bool {
	return r.head.Load() == r.tail.Load()
}

// readSlot returns the segment currently at the tail.
func (r *segmentRing) readSlot() *Segment {
	return &r.segments[r.tail.Load()]
}

// advanceTail retires the segment at the tail once the ISR has emitted all
// of its steps.
func (r *segmentRing) advanceTail() {
	t := r.tail.Load()
	t = (t + 1) % uint32(r.size())
	r.tail.Store(t)
}

func (r *segmentRing) reset() {
	for i := range r.segments {
		r.segments[i] = Segment{}
	}
	r.head.Store(0)
	r.tail.Store(0)
	r.nextHead = 1 % r.size()
}
