package control

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
)

const (
	defaultLFORateHz = 1.0
	defaultLFODepth  = 1.0
	defaultLFOSeed   = 1
)

// Waveform selects the LFO shape.
type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Saw
	Square
	// Random holds a new uniform value in [-1, 1] every cycle.
	Random
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	case Saw:
		return "saw"
	case Square:
		return "square"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
}

// ParseWaveform maps a waveform name to its value.
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine", "sin":
		return Sine, nil
	case "triangle", "tri":
		return Triangle, nil
	case "saw":
		return Saw, nil
	case "square":
		return Square, nil
	case "random", "sh":
		return Random, nil
	}
	return 0, fmt.Errorf("control: unknown waveform %q", name)
}

// LFOOption mutates LFO construction parameters.
type LFOOption func(*lfoConfig) error

type lfoConfig struct {
	rateHz   float64
	depth    float64
	phase    float64
	waveform Waveform
	seed     int64
}

// WithLFORate sets the oscillation rate in Hz.
func WithLFORate(rateHz float64) LFOOption {
	return func(cfg *lfoConfig) error {
		if rateHz < 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
			return fmt.Errorf("lfo rate must be >= 0 and finite: %f", rateHz)
		}
		cfg.rateHz = rateHz
		return nil
	}
}

// WithLFODepth scales the output range to [-depth, depth].
func WithLFODepth(depth float64) LFOOption {
	return func(cfg *lfoConfig) error {
		if math.IsNaN(depth) || math.IsInf(depth, 0) {
			return fmt.Errorf("lfo depth must be finite: %f", depth)
		}
		cfg.depth = depth
		return nil
	}
}

// WithLFOPhase sets the start phase in cycles, [0, 1).
func WithLFOPhase(phase float64) LFOOption {
	return func(cfg *lfoConfig) error {
		if phase < 0 || phase >= 1 || math.IsNaN(phase) {
			return fmt.Errorf("lfo phase must be in [0, 1): %f", phase)
		}
		cfg.phase = phase
		return nil
	}
}

// WithWaveform selects the LFO shape.
func WithWaveform(w Waveform) LFOOption {
	return func(cfg *lfoConfig) error {
		if w < Sine || w > Random {
			return fmt.Errorf("lfo waveform out of range: %d", int(w))
		}
		cfg.waveform = w
		return nil
	}
}

// WithLFOSeed seeds the Random waveform.
func WithLFOSeed(seed int64) LFOOption {
	return func(cfg *lfoConfig) error {
		cfg.seed = seed
		return nil
	}
}

// LFO is a block-rate low-frequency oscillator.
//
// Rate, depth, waveform and freeze may be changed from any goroutine; phase
// is owned by the goroutine calling Advance.
type LFO struct {
	rate     atomicFloat
	depth    atomicFloat
	waveform atomic.Int32
	frozen   atomic.Bool
	freezeAt atomicFloat

	phase float64
	held  float64
	rng   *rand.Rand

	out atomicFloat
}

// NewLFO creates a sine LFO at 1 Hz with optional overrides.
func NewLFO(opts ...LFOOption) (*LFO, error) {
	cfg := lfoConfig{
		rateHz:   defaultLFORateHz,
		depth:    defaultLFODepth,
		waveform: Sine,
		seed:     defaultLFOSeed,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	l := &LFO{
		phase: cfg.phase,
		rng:   rand.New(rand.NewSource(cfg.seed)),
	}
	l.rate.Store(cfg.rateHz)
	l.depth.Store(cfg.depth)
	l.waveform.Store(int32(cfg.waveform))
	l.held = l.rng.Float64()*2 - 1
	l.out.Store(l.sample())
	return l, nil
}

// Advance moves the phase by rate·len(in)/sampleRate cycles.
func (l *LFO) Advance(in []float64, sampleRate float64) {
	if l.frozen.Load() {
		l.out.Store(l.freezeAt.Load())
		return
	}
	if sampleRate > 0 {
		p := l.phase + l.rate.Load()*float64(len(in))/sampleRate
		if p >= 1 {
			p -= math.Floor(p)
			l.held = l.rng.Float64()*2 - 1
		}
		l.phase = p
	}
	l.out.Store(l.sample())
}

func (l *LFO) sample() float64 {
	p := l.phase
	var v float64
	switch Waveform(l.waveform.Load()) {
	case Triangle:
		v = 1 - 4*math.Abs(p-0.5)
	case Saw:
		v = 2*p - 1
	case Square:
		if p < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case Random:
		v = l.held
	default:
		v = math.Sin(2 * math.Pi * p)
	}
	return l.depth.Load() * v
}

// Output returns the value computed by the latest Advance.
func (l *LFO) Output() float64 { return l.out.Load() }

// Phase returns the current phase in cycles. Call it from the Advance
// goroutine.
func (l *LFO) Phase() float64 { return l.phase }

// SetRate sets the oscillation rate in Hz.
func (l *LFO) SetRate(rateHz float64) error {
	if rateHz < 0 || math.IsNaN(rateHz) || math.IsInf(rateHz, 0) {
		return fmt.Errorf("lfo rate must be >= 0 and finite: %f", rateHz)
	}
	l.rate.Store(rateHz)
	return nil
}

// Rate returns the oscillation rate in Hz.
func (l *LFO) Rate() float64 { return l.rate.Load() }

// SetDepth scales the output range to [-depth, depth].
func (l *LFO) SetDepth(depth float64) error {
	if math.IsNaN(depth) || math.IsInf(depth, 0) {
		return fmt.Errorf("lfo depth must be finite: %f", depth)
	}
	l.depth.Store(depth)
	return nil
}

// Depth returns the output scale.
func (l *LFO) Depth() float64 { return l.depth.Load() }

// SetWaveform selects the LFO shape.
func (l *LFO) SetWaveform(w Waveform) error {
	if w < Sine || w > Random {
		return fmt.Errorf("lfo waveform out of range: %d", int(w))
	}
	l.waveform.Store(int32(w))
	return nil
}

// Waveform returns the current shape.
func (l *LFO) Waveform() Waveform { return Waveform(l.waveform.Load()) }

// Freeze pins the output to value until Unfreeze. The phase stops.
func (l *LFO) Freeze(value float64) {
	l.freezeAt.Store(value)
	l.frozen.Store(true)
	l.out.Store(value)
}

// Unfreeze resumes oscillation from the held phase.
func (l *LFO) Unfreeze() {
	l.frozen.Store(false)
}
