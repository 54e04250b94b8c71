package control

import "github.com/cwbudde/algo-granular/dsp/core"

// NumSlots is the number of modulation slots per parameter.
const NumSlots = 3

// Slot is one modulation input of a parameter.
type Slot struct {
	Name   string
	Mod    Modulator
	Amount float64
}

// Parameter is a named value driven by an offset and up to NumSlots
// modulators.
//
// Offset and slots are changed through the Manager. Value is safe to read
// from any goroutine.
type Parameter struct {
	name string
	def  float64
	min  float64
	max  float64

	offset float64
	slots  [NumSlots]Slot

	value atomicFloat
}

func newParameter(name string, def, min, max float64) *Parameter {
	p := &Parameter{
		name:   name,
		def:    def,
		min:    min,
		max:    max,
		offset: def,
	}
	p.clearSlots()
	p.value.Store(core.Clamp(def, min, max))
	return p
}

// Name returns the registry key.
func (p *Parameter) Name() string { return p.name }

// Default returns the registration default.
func (p *Parameter) Default() float64 { return p.def }

// Min returns the lower clamp bound.
func (p *Parameter) Min() float64 { return p.min }

// Max returns the upper clamp bound.
func (p *Parameter) Max() float64 { return p.max }

// Value returns the value published by the latest evaluation.
func (p *Parameter) Value() float64 { return p.value.Load() }

// Int returns Value truncated toward zero.
func (p *Parameter) Int() int { return int(p.Value()) }

// evaluate computes the clamped sum of the offset and every attached
// modulator output scaled by its amount. The caller holds the manager lock.
func (p *Parameter) evaluate() float64 {
	v := p.offset
	for i := range p.slots {
		s := &p.slots[i]
		if s.Mod != nil {
			v += s.Amount * s.Mod.Output()
		}
	}
	if !core.IsFinite(v) {
		v = p.offset
	}
	return core.Clamp(v, p.min, p.max)
}

func (p *Parameter) publish() {
	p.value.Store(p.evaluate())
}

func (p *Parameter) clearSlots() {
	for i := range p.slots {
		p.slots[i] = Slot{Amount: 1}
	}
}
