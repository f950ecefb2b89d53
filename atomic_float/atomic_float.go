package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 for non-locking atomic operations, stored as its IEEE-754 bits.
// The agent's exploration rate lives in one so the config watcher can retune it while the
// walker is selecting actions, and the walker's running statistics are read by the server
// through them while the walk is in progress.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.bits.Store(math.Float64bits(val))
	return af
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() (value float64) {
	return math.Float64frombits(af.bits.Load())
}

// AtomicAdd attempts to add @addend to the float64 once.
// If the value changed between the read and the swap the add is not applied and
// succeeded is false; the caller decides whether to retry, recalculate or drop the update.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// AtomicSet sets the float64, returning true on success.
// It fails only if another writer changed the value during the call.
func (af *AtomicFloat64) AtomicSet(newVal float64) (succeeded bool) {
	old := af.bits.Load()
	return af.bits.CompareAndSwap(old, math.Float64bits(newVal))
}

// Store unconditionally overwrites the float64.
func (af *AtomicFloat64) Store(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// Accumulate adds @addend, retrying until no other writer interferes.
func (af *AtomicFloat64) Accumulate(addend float64) float64 {
	for {
		if newVal, ok := af.AtomicAdd(addend); ok {
			return newVal
		}
	}
}
