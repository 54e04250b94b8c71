package control

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-granular/dsp/core"
	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/meko-christian/algo-approx"
)

const (
	defaultEnergySmoothingMs = 50.0
	energyScratchSize        = 256
)

// EnergyDetector tracks the smoothed RMS level of the input. Its output is
// linear amplitude.
type EnergyDetector struct {
	smoothingMs atomicFloat
	squares     []float64
	level       float64

	out atomicFloat
}

// NewEnergyDetector creates a detector whose level follows block RMS with a
// one-pole smoother of smoothingMs. Zero disables smoothing.
func NewEnergyDetector(smoothingMs float64) (*EnergyDetector, error) {
	d := &EnergyDetector{squares: make([]float64, energyScratchSize)}
	if err := d.SetSmoothing(smoothingMs); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSmoothing sets the smoother time constant in milliseconds.
func (d *EnergyDetector) SetSmoothing(ms float64) error {
	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("energy smoothing must be >= 0 and finite: %f", ms)
	}
	d.smoothingMs.Store(ms)
	return nil
}

// Smoothing returns the smoother time constant in milliseconds.
func (d *EnergyDetector) Smoothing() float64 { return d.smoothingMs.Load() }

// Output returns the latest smoothed RMS.
func (d *EnergyDetector) Output() float64 { return d.out.Load() }

// Advance measures the RMS of in and moves the smoothed level toward it.
func (d *EnergyDetector) Advance(in []float64, sampleRate float64) {
	if len(in) == 0 {
		return
	}

	var sum float64
	for off := 0; off < len(in); off += len(d.squares) {
		chunk := in[off:min(off+len(d.squares), len(in))]
		sq := d.squares[:len(chunk)]
		vecmath.MulBlock(sq, chunk, chunk)
		sum += vecmath.Sum(sq)
	}
	var rms float64
	if ms := sum / float64(len(in)); ms > 0 {
		rms = approx.FastSqrt(ms)
	}

	tau := d.smoothingMs.Load() * 0.001
	if tau <= 0 || sampleRate <= 0 {
		d.level = rms
	} else {
		coeff := approx.FastExp(-float64(len(in)) / (tau * sampleRate))
		d.level = coeff*d.level + (1-coeff)*rms
	}
	d.level = core.FlushDenormals(d.level)
	d.out.Store(d.level)
}

// Reset returns the level to silence.
func (d *EnergyDetector) Reset() {
	d.level = 0
	d.out.Store(0)
}
