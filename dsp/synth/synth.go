// Package synth mixes a bounded pool of enveloped grains into an output
// stream.
//
// Every slot owns a scratch buffer sized for the longest grain, so
// activation and mixing never allocate.
package synth

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-granular/dsp/buffer"
	"github.com/cwbudde/algo-granular/dsp/delay"
	"github.com/cwbudde/algo-granular/dsp/envelope"
	"github.com/cwbudde/algo-granular/dsp/grain"
	vecmath "github.com/cwbudde/algo-vecmath"
)

var (
	// ErrLengthMismatch is returned when the envelope does not match the
	// grain duration.
	ErrLengthMismatch = errors.New("synth: envelope length does not match grain")
	// ErrGrainTooLong is returned for a grain longer than the slot storage.
	ErrGrainTooLong = errors.New("synth: grain exceeds slot capacity")
	// ErrPoolFull is returned when every slot is playing.
	ErrPoolFull = errors.New("synth: no free slot")
)

type slot struct {
	origin grain.Grain
	data   *buffer.Buffer
	pos    int
	repeat bool
	active bool
}

// SlotInfo describes one synth slot.
type SlotInfo struct {
	Origin grain.Grain
	Pos    int
	Len    int
	Repeat bool
	Active bool
}

// Synth plays at most Voices() grains at once and sums them sample by
// sample. It is not safe for concurrent use.
type Synth struct {
	slots    []slot
	maxGrain int
	active   int
	dropped  uint64
}

// New returns a synth with voices slots of up to maxGrain samples each.
func New(voices, maxGrain int) (*Synth, error) {
	if voices <= 0 {
		return nil, fmt.Errorf("synth voices must be > 0: %d", voices)
	}
	if maxGrain <= 0 {
		return nil, fmt.Errorf("synth max grain must be > 0: %d", maxGrain)
	}

	s := &Synth{
		slots:    make([]slot, voices),
		maxGrain: maxGrain,
	}
	for i := range s.slots {
		b := buffer.New(maxGrain)
		_ = b.Resize(0)
		s.slots[i].data = b
	}
	return s, nil
}

// Activate reads g from src through read tap, applies env and the grain
// gain, and starts it in the first free slot.
func (s *Synth) Activate(src *delay.Line, tap int, g grain.Grain, env *envelope.Envelope) error {
	if g.Duration > s.maxGrain {
		return fmt.Errorf("%w: %d > %d", ErrGrainTooLong, g.Duration, s.maxGrain)
	}
	if env == nil || g.Duration <= 0 || env.Duration != g.Duration || len(env.Samples) != g.Duration {
		return ErrLengthMismatch
	}

	idx := s.freeSlot()
	if idx < 0 {
		s.dropped++
		return ErrPoolFull
	}

	sl := &s.slots[idx]
	if err := sl.data.Resize(g.Duration); err != nil {
		return err
	}
	data := sl.data.Samples()

	if err := src.SetTap(tap, float64(g.Position)); err != nil {
		return err
	}
	var err error
	if g.Speed == 1 {
		err = src.ReadBlock(tap, data)
	} else {
		err = src.ReadBlockFractional(tap, data, g.Speed)
	}
	if err != nil {
		return err
	}

	vecmath.MulBlockInPlace(data, env.Samples)
	if g.Gain != 1 {
		vecmath.ScaleBlock(data, data, g.Gain)
	}

	sl.origin = g
	sl.pos = 0
	sl.repeat = false
	sl.active = true
	s.active++
	return nil
}

// SumAndAdvance returns the sum of every active slot's current sample and
// advances each by one. Finished slots are freed unless they repeat.
func (s *Synth) SumAndAdvance() float64 {
	if s.active == 0 {
		return 0
	}

	var sum float64
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.active {
			continue
		}
		sum += sl.data.Samples()[sl.pos]
		sl.pos++
		if sl.pos == sl.data.Len() {
			s.finish(sl)
		}
	}
	return sum
}

// WriteOutput overwrites out with len(out) mixed samples. The result is
// identical to calling SumAndAdvance once per sample.
func (s *Synth) WriteOutput(out []float64) {
	for i := range out {
		out[i] = 0
	}
	if s.active == 0 {
		return
	}

	for i := range s.slots {
		sl := &s.slots[i]
		off := 0
		for sl.active && off < len(out) {
			data := sl.data.Samples()
			k := min(len(data)-sl.pos, len(out)-off)
			vecmath.AddBlockInPlace(out[off:off+k], data[sl.pos:sl.pos+k])
			sl.pos += k
			off += k
			if sl.pos == len(data) {
				s.finish(sl)
			}
		}
	}
}

func (s *Synth) finish(sl *slot) {
	if sl.repeat {
		sl.pos = 0
		return
	}
	sl.active = false
	sl.pos = 0
	s.active--
}

func (s *Synth) freeSlot() int {
	for i := range s.slots {
		if !s.slots[i].active {
			return i
		}
	}
	return -1
}

// SetRepeat makes an active slot loop its grain instead of finishing.
func (s *Synth) SetRepeat(i int, repeat bool) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("synth slot out of range: %d", i)
	}
	if !s.slots[i].active {
		return fmt.Errorf("synth slot %d is not playing", i)
	}
	s.slots[i].repeat = repeat
	return nil
}

// Slot describes slot i.
func (s *Synth) Slot(i int) (SlotInfo, bool) {
	if i < 0 || i >= len(s.slots) {
		return SlotInfo{}, false
	}
	sl := &s.slots[i]
	return SlotInfo{
		Origin: sl.origin,
		Pos:    sl.pos,
		Len:    sl.data.Len(),
		Repeat: sl.repeat,
		Active: sl.active,
	}, true
}

// Active returns the number of playing slots.
func (s *Synth) Active() int { return s.active }

// Voices returns the number of slots.
func (s *Synth) Voices() int { return len(s.slots) }

// MaxGrain returns the longest grain a slot can hold.
func (s *Synth) MaxGrain() int { return s.maxGrain }

// Dropped returns the number of activations refused for lack of a free slot.
func (s *Synth) Dropped() uint64 { return s.dropped }

// Reset stops every slot and clears the drop counter.
func (s *Synth) Reset() {
	for i := range s.slots {
		sl := &s.slots[i]
		sl.origin = grain.Grain{}
		sl.pos = 0
		sl.repeat = false
		sl.active = false
		_ = sl.data.Resize(0)
	}
	s.active = 0
	s.dropped = 0
}
