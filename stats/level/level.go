// Package level measures the output level of a block stream.
package level

import (
	"math"

	"github.com/cwbudde/algo-granular/dsp/core"
	vecmath "github.com/cwbudde/algo-vecmath"
)

// Level summarizes the samples seen by a Meter.
type Level struct {
	Length  int
	DC      float64 // mean
	RMS     float64
	RMSdB   float64
	Peak    float64 // max |x|
	PeakdB  float64
	Crest   float64 // peak / RMS (linear), 0 for silence
	Clipped int     // samples with |x| > 1
}

// Meter accumulates level statistics across blocks. The zero value is
// ready to use. It is not safe for concurrent use.
type Meter struct {
	n       int
	sum     float64
	sumSq   float64
	peak    float64
	clipped int
}

// Update adds a block of samples.
func (m *Meter) Update(samples []float64) {
	if len(samples) == 0 {
		return
	}
	m.n += len(samples)
	m.sum += vecmath.Sum(samples)
	m.sumSq += vecmath.DotProduct(samples, samples)

	peak := vecmath.MaxAbs(samples)
	if peak > m.peak {
		m.peak = peak
	}
	if peak > 1 {
		for _, x := range samples {
			if math.Abs(x) > 1 {
				m.clipped++
			}
		}
	}
}

// Result returns the statistics accumulated since the last Reset.
func (m *Meter) Result() Level {
	if m.n == 0 {
		return Level{RMSdB: math.Inf(-1), PeakdB: math.Inf(-1)}
	}
	nf := float64(m.n)
	rms := math.Sqrt(m.sumSq / nf)
	l := Level{
		Length:  m.n,
		DC:      m.sum / nf,
		RMS:     rms,
		RMSdB:   core.LinearToDB(rms),
		Peak:    m.peak,
		PeakdB:  core.LinearToDB(m.peak),
		Clipped: m.clipped,
	}
	if rms > 0 {
		l.Crest = m.peak / rms
	}
	return l
}

// Reset clears the accumulated data.
func (m *Meter) Reset() {
	*m = Meter{}
}
