package delay

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-granular/dsp/interp"
)

// ErrTapRange is returned for a read tap index outside [0, Taps()).
var ErrTapRange = errors.New("delay: tap index out of range")

// Option configures a Line.
type Option func(*Line)

// WithMode selects the interpolator used by fractional reads.
func WithMode(mode interp.Mode) Option {
	return func(d *Line) {
		d.mode = mode
	}
}

// Line is a fixed-capacity circular recording buffer with one write head
// and a set of independent, fractional read taps.
//
// Line never resizes after New. It is not safe for concurrent use.
type Line struct {
	buffer []float64
	ring   Index
	write  int
	taps   []float64
	mode   interp.Mode
}

// New returns a Line holding capacity samples with the given number of
// read taps. All cursors start at position 0.
func New(capacity, taps int, opts ...Option) (*Line, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("delay capacity must be > 0: %d", capacity)
	}
	if taps <= 0 {
		return nil, fmt.Errorf("delay taps must be > 0: %d", taps)
	}

	d := &Line{
		buffer: make([]float64, capacity),
		ring:   NewIndex(capacity),
		taps:   make([]float64, taps),
		mode:   interp.Linear,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Capacity returns the ring size in samples.
func (d *Line) Capacity() int {
	return len(d.buffer)
}

// Taps returns the number of read taps.
func (d *Line) Taps() int {
	return len(d.taps)
}

// Ring returns the index arithmetic of this line.
func (d *Line) Ring() Index {
	return d.ring
}

// Mode returns the fractional interpolation mode.
func (d *Line) Mode() interp.Mode {
	return d.mode
}

// WritePosition returns the index the next sample will be written to.
func (d *Line) WritePosition() int {
	return d.write
}

// Dist returns the forward wrap-around distance from position from to
// position to, in [0, Capacity()).
func (d *Line) Dist(from, to int) int {
	return d.ring.Dist(from, to)
}

// At returns the sample stored at ring position pos (wrapped).
func (d *Line) At(pos int) float64 {
	return d.buffer[d.ring.Wrap(pos)]
}

// WriteBlock records samples at the write head, overwriting the oldest
// len(samples) samples. When the block is longer than the ring only its
// last Capacity() samples survive.
func (d *Line) WriteBlock(samples []float64) {
	n := len(samples)
	if n == 0 {
		return
	}

	size := len(d.buffer)
	if n > size {
		d.write = d.ring.Add(d.write, n-size)
		samples = samples[n-size:]
		n = size
	}

	first := size - d.write
	if first >= n {
		copy(d.buffer[d.write:d.write+n], samples)
	} else {
		copy(d.buffer[d.write:], samples[:first])
		copy(d.buffer[:n-first], samples[first:])
	}
	d.write = d.ring.Add(d.write, n)
}

// SetTap moves read tap to pos (wrapped onto the ring).
func (d *Line) SetTap(tap int, pos float64) error {
	if tap < 0 || tap >= len(d.taps) {
		return fmt.Errorf("%w: %d", ErrTapRange, tap)
	}
	d.taps[tap] = d.ring.WrapFloat(pos)
	return nil
}

// TapPosition returns the current position of read tap.
func (d *Line) TapPosition(tap int) (float64, error) {
	if tap < 0 || tap >= len(d.taps) {
		return 0, fmt.Errorf("%w: %d", ErrTapRange, tap)
	}
	return d.taps[tap], nil
}

// ReadBlock copies len(out) samples starting at the integer part of the
// tap position and advances the tap by len(out).
func (d *Line) ReadBlock(tap int, out []float64) error {
	if tap < 0 || tap >= len(d.taps) {
		return fmt.Errorf("%w: %d", ErrTapRange, tap)
	}

	pos := d.taps[tap]
	start := int(pos)
	frac := pos - float64(start)

	remaining := out
	at := start
	for len(remaining) > 0 {
		k := copy(remaining, d.buffer[at:])
		remaining = remaining[k:]
		at = 0
	}

	d.taps[tap] = float64(d.ring.Add(start, len(out))) + frac
	return nil
}

// ReadBlockFractional fills out by reading at fractional positions that
// advance by speed per output sample, starting at the tap position.
// The tap is left at the position following the last read.
func (d *Line) ReadBlockFractional(tap int, out []float64, speed float64) error {
	if tap < 0 || tap >= len(d.taps) {
		return fmt.Errorf("%w: %d", ErrTapRange, tap)
	}
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("delay read speed must be finite: %f", speed)
	}

	pos := d.taps[tap]
	for i := range out {
		out[i] = d.sampleAt(pos)
		pos = d.ring.WrapFloat(pos + speed)
	}
	d.taps[tap] = pos
	return nil
}

// ReadFractional returns the interpolated sample at fractional position pos.
func (d *Line) ReadFractional(pos float64) float64 {
	return d.sampleAt(d.ring.WrapFloat(pos))
}

// sampleAt expects pos already wrapped onto the ring.
func (d *Line) sampleAt(pos float64) float64 {
	i0 := int(pos)
	t := pos - float64(i0)

	x0 := d.buffer[i0]
	if t == 0 {
		return x0
	}
	x1 := d.buffer[d.ring.Add(i0, 1)]

	if d.mode == interp.Hermite {
		xm1 := d.buffer[d.ring.Add(i0, -1)]
		x2 := d.buffer[d.ring.Add(i0, 2)]
		return interp.Hermite4(t, xm1, x0, x1, x2)
	}
	return interp.Linear2(t, x0, x1)
}

// Reset clears the recorded audio and rewinds every cursor to 0.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	for i := range d.taps {
		d.taps[i] = 0
	}
	d.write = 0
}
