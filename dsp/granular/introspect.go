package granular

import (
	"github.com/cwbudde/algo-granular/dsp/control"
	"github.com/cwbudde/algo-granular/dsp/window"
)

// GrainInfo describes a pending or playing grain for display.
//
// Position is the distance from the grain's current read point forward to
// the write head as a fraction of the line capacity, so 0 is "now" and
// values near 1 are the oldest audio. Duration is the grain length as a
// fraction of the capacity.
type GrainInfo struct {
	Position float64
	Duration float64
	Speed    float64
	Gain     float64
	Shape    window.Type
	Age      int
	Active   bool
	Repeat   bool
}

// Grains lists pending grains oldest first followed by playing grains in
// slot order.
func (e *Engine) Grains() []GrainInfo {
	return e.AppendGrains(make([]GrainInfo, 0, e.table.Len()+e.synth.Active()))
}

// AppendGrains appends the Grains listing to dst.
func (e *Engine) AppendGrains(dst []GrainInfo) []GrainInfo {
	capacity := float64(e.line.Capacity())
	ring := e.line.Ring()
	write := e.line.WritePosition()

	for i := range e.table.Len() {
		g, _ := e.table.At(i)
		dst = append(dst, GrainInfo{
			Position: float64(ring.Dist(g.Position, write)) / capacity,
			Duration: float64(g.Duration) / capacity,
			Speed:    g.Speed,
			Gain:     g.Gain,
			Shape:    g.Shape,
			Age:      g.Age,
		})
	}

	for i := range e.synth.Voices() {
		s, _ := e.synth.Slot(i)
		if !s.Active {
			continue
		}
		g := s.Origin
		at := ring.Wrap(g.Position + int(float64(s.Pos)*g.Speed))
		dst = append(dst, GrainInfo{
			Position: float64(ring.Dist(at, write)) / capacity,
			Duration: float64(g.Duration) / capacity,
			Speed:    g.Speed,
			Gain:     g.Gain,
			Shape:    g.Shape,
			Age:      g.Age + s.Pos,
			Active:   true,
			Repeat:   s.Repeat,
		})
	}
	return dst
}

// Parameters describes every registered parameter in registration order.
func (e *Engine) Parameters() []control.ParameterInfo {
	return e.controls.Snapshot()
}

// SetRepeat makes the playing grain in slot loop until cleared.
func (e *Engine) SetRepeat(slot int, repeat bool) error {
	return e.synth.SetRepeat(slot, repeat)
}
