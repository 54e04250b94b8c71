// Package grain holds grain descriptors and the bounded FIFO of grains
// waiting to be synthesized.
package grain

import "github.com/cwbudde/algo-granular/dsp/window"

// Grain describes one excerpt of the delay line.
//
// Position is the start index in the source line, Duration the number of
// source samples to play and Age the number of samples the grain has waited
// in the table. Speed is the playback ratio (1 keeps the original pitch) and
// Gain an amplitude factor.
type Grain struct {
	Position int
	Duration int
	Age      int
	Shape    window.Type
	Speed    float64
	Gain     float64
}

// New returns a grain at unit speed and gain.
func New(position, duration int, shape window.Type) Grain {
	return Grain{
		Position: position,
		Duration: duration,
		Shape:    shape,
		Speed:    1,
		Gain:     1,
	}
}
