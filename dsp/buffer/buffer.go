package buffer

import "fmt"

// Buffer is a float64 slice with a fixed backing capacity.
// DSP functions accept raw []float64; use Samples() to bridge.
type Buffer struct {
	samples []float64
}

// New returns a zero-filled Buffer whose length and capacity equal capacity.
func New(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{samples: make([]float64, capacity)}
}

// Samples returns the visible part of the buffer.
func (b *Buffer) Samples() []float64 {
	return b.samples
}

// Len returns the current number of visible samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Cap returns the fixed capacity of the backing array.
func (b *Buffer) Cap() int {
	return cap(b.samples)
}

// Resize sets the visible length to n. It fails instead of growing when n
// exceeds the capacity. Newly exposed samples are zeroed.
func (b *Buffer) Resize(n int) error {
	if n < 0 || n > cap(b.samples) {
		return fmt.Errorf("buffer resize %d outside capacity %d", n, cap(b.samples))
	}
	oldLen := len(b.samples)
	b.samples = b.samples[:n]
	for i := oldLen; i < n; i++ {
		b.samples[i] = 0
	}
	return nil
}
