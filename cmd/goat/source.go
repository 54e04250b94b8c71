package main

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// source fills a block with the next samples of a test signal.
type source interface {
	Fill(dst []float64)
}

func newSource(name string, freq, sampleRate float64, seed int64) (source, error) {
	if freq <= 0 || freq >= sampleRate/2 {
		return nil, fmt.Errorf("frequency must be in (0, %g): %g", sampleRate/2, freq)
	}
	switch name {
	case "sine":
		return &sine{inc: freq / sampleRate}, nil
	case "noise":
		return &noise{rng: rand.New(rand.NewPCG(uint64(seed), 0x676f6174))}, nil
	case "pulse":
		return &pulse{period: max(1, int(sampleRate/freq))}, nil
	default:
		return nil, fmt.Errorf("unknown source %q (sine, noise, pulse)", name)
	}
}

type sine struct {
	phase, inc float64
}

func (s *sine) Fill(dst []float64) {
	for i := range dst {
		dst[i] = 0.5 * math.Sin(2*math.Pi*s.phase)
		s.phase += s.inc
		if s.phase >= 1 {
			s.phase--
		}
	}
}

type noise struct {
	rng *rand.Rand
}

func (n *noise) Fill(dst []float64) {
	for i := range dst {
		dst[i] = 0.25 * (2*n.rng.Float64() - 1)
	}
}

// pulse emits a single unit impulse per period, useful to hear grain onsets.
type pulse struct {
	period, pos int
}

func (p *pulse) Fill(dst []float64) {
	for i := range dst {
		dst[i] = 0
		if p.pos == 0 {
			dst[i] = 1
		}
		p.pos++
		if p.pos == p.period {
			p.pos = 0
		}
	}
}
