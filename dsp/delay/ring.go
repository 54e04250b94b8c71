package delay

import "math"

// Index performs all modulo arithmetic for a ring of fixed size.
// Every position handed out by an Index lies in [0, size).
type Index struct {
	size int
}

// NewIndex returns an Index for a ring of the given size. size must be > 0.
func NewIndex(size int) Index {
	return Index{size: size}
}

// Size returns the ring size.
func (r Index) Size() int {
	return r.size
}

// Wrap maps any integer position onto the ring.
func (r Index) Wrap(i int) int {
	i %= r.size
	if i < 0 {
		i += r.size
	}
	return i
}

// Add advances position i by n (n may be negative).
func (r Index) Add(i, n int) int {
	return r.Wrap(i + n)
}

// Dist returns the forward distance from position from to position to,
// always in [0, size).
func (r Index) Dist(from, to int) int {
	return r.Wrap(to - from)
}

// WrapFloat maps a fractional position onto [0, size).
func (r Index) WrapFloat(x float64) float64 {
	s := float64(r.size)
	x = math.Mod(x, s)
	if x < 0 {
		x += s
	}
	// math.Mod of a tiny negative value can round up to exactly s.
	if x >= s {
		x = 0
	}
	return x
}
