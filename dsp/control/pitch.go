package control

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"
)

const (
	defaultPitchFrameSize = 2048
	defaultPitchMinHz     = 50.0
	defaultPitchMaxHz     = 1000.0
	defaultPitchThreshold = 0.3
	pitchSilenceFloor     = 1e-10
)

// PitchOption mutates pitch detector construction parameters.
type PitchOption func(*pitchConfig) error

type pitchConfig struct {
	frameSize int
	minHz     float64
	maxHz     float64
	threshold float64
}

// WithPitchFrameSize sets the analysis window. It must be a power of two.
func WithPitchFrameSize(n int) PitchOption {
	return func(cfg *pitchConfig) error {
		if n < 64 || n&(n-1) != 0 {
			return fmt.Errorf("pitch frame size must be a power of two >= 64: %d", n)
		}
		cfg.frameSize = n
		return nil
	}
}

// WithPitchRange sets the detectable frequency range in Hz.
func WithPitchRange(minHz, maxHz float64) PitchOption {
	return func(cfg *pitchConfig) error {
		if minHz <= 0 || maxHz <= minHz || math.IsInf(maxHz, 0) || math.IsNaN(minHz) || math.IsNaN(maxHz) {
			return fmt.Errorf("pitch range must satisfy 0 < min < max: [%f, %f]", minHz, maxHz)
		}
		cfg.minHz = minHz
		cfg.maxHz = maxHz
		return nil
	}
}

// WithPitchThreshold sets the normalized autocorrelation peak required to
// report a pitch, in (0, 1).
func WithPitchThreshold(th float64) PitchOption {
	return func(cfg *pitchConfig) error {
		if th <= 0 || th >= 1 || math.IsNaN(th) {
			return fmt.Errorf("pitch threshold must be in (0, 1): %f", th)
		}
		cfg.threshold = th
		return nil
	}
}

// PitchDetector estimates the fundamental frequency of the input by FFT
// autocorrelation over a sliding frame. Its output is the detected
// frequency in Hz, or 0 when the frame is silent or unvoiced.
type PitchDetector struct {
	frameSize int
	minHz     float64
	maxHz     float64
	threshold float64

	history []float64
	filled  int

	plan     *algofft.Plan[complex128]
	spectrum []complex128
	re       []float64
	im       []float64
	power    []float64

	out atomicFloat
}

// NewPitchDetector creates a detector with a 2048-sample frame and a
// 50 Hz to 1 kHz range.
func NewPitchDetector(opts ...PitchOption) (*PitchDetector, error) {
	cfg := pitchConfig{
		frameSize: defaultPitchFrameSize,
		minHz:     defaultPitchMinHz,
		maxHz:     defaultPitchMaxHz,
		threshold: defaultPitchThreshold,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	fftSize := 2 * cfg.frameSize
	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("pitch detector: failed to create FFT plan: %w", err)
	}

	return &PitchDetector{
		frameSize: cfg.frameSize,
		minHz:     cfg.minHz,
		maxHz:     cfg.maxHz,
		threshold: cfg.threshold,
		history:   make([]float64, cfg.frameSize),
		plan:      plan,
		spectrum:  make([]complex128, fftSize),
		re:        make([]float64, fftSize),
		im:        make([]float64, fftSize),
		power:     make([]float64, fftSize),
	}, nil
}

// FrameSize returns the analysis window length.
func (d *PitchDetector) FrameSize() int { return d.frameSize }

// Output returns the latest pitch estimate in Hz.
func (d *PitchDetector) Output() float64 { return d.out.Load() }

// Advance appends in to the analysis frame and re-estimates the pitch.
func (d *PitchDetector) Advance(in []float64, sampleRate float64) {
	d.push(in)
	if d.filled < d.frameSize || sampleRate <= 0 {
		d.out.Store(0)
		return
	}
	d.out.Store(d.estimate(sampleRate))
}

// Reset clears the analysis frame.
func (d *PitchDetector) Reset() {
	clear(d.history)
	d.filled = 0
	d.out.Store(0)
}

func (d *PitchDetector) push(in []float64) {
	n := len(in)
	if n >= d.frameSize {
		copy(d.history, in[n-d.frameSize:])
		d.filled = d.frameSize
		return
	}
	copy(d.history, d.history[n:])
	copy(d.history[d.frameSize-n:], in)
	d.filled = min(d.filled+n, d.frameSize)
}

func (d *PitchDetector) estimate(sampleRate float64) float64 {
	var mean float64
	for _, x := range d.history {
		mean += x
	}
	mean /= float64(d.frameSize)

	for i, x := range d.history {
		d.spectrum[i] = complex(x-mean, 0)
	}
	for i := d.frameSize; i < len(d.spectrum); i++ {
		d.spectrum[i] = 0
	}

	if err := d.plan.Forward(d.spectrum, d.spectrum); err != nil {
		return 0
	}
	for i, c := range d.spectrum {
		d.re[i] = real(c)
		d.im[i] = imag(c)
	}
	vecmath.Power(d.power, d.re, d.im)
	for i, p := range d.power {
		d.spectrum[i] = complex(p, 0)
	}
	if err := d.plan.Inverse(d.spectrum, d.spectrum); err != nil {
		return 0
	}

	r0 := real(d.spectrum[0])
	if r0/float64(d.frameSize) < pitchSilenceFloor {
		return 0
	}

	minLag := max(int(sampleRate/d.maxHz), 1)
	maxLag := min(int(sampleRate/d.minHz), d.frameSize-2)
	if minLag >= maxLag {
		return 0
	}

	// Skip the zero-lag lobe before searching for the period peak.
	lag := minLag
	for lag < maxLag && real(d.spectrum[lag+1]) < real(d.spectrum[lag]) {
		lag++
	}

	best, bestVal := 0, 0.0
	for ; lag <= maxLag; lag++ {
		v := real(d.spectrum[lag])
		if v > bestVal {
			best, bestVal = lag, v
		}
	}
	if best == 0 || bestVal/r0 < d.threshold {
		return 0
	}

	// Parabolic refinement of the peak position.
	period := float64(best)
	if best > 0 && best+1 < len(d.spectrum) {
		a := real(d.spectrum[best-1])
		b := real(d.spectrum[best])
		c := real(d.spectrum[best+1])
		if den := a - 2*b + c; den != 0 {
			period += 0.5 * (a - c) / den
		}
	}
	return sampleRate / period
}
