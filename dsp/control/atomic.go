package control

import (
	"math"
	"sync/atomic"
)

// atomicFloat publishes a float64 between the control and audio goroutines.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}
