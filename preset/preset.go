// Package preset loads and saves engine control state as YAML.
//
// A preset only drives the engine's public control surface, so applying one
// while audio is running is safe.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/cwbudde/algo-granular/dsp/control"
	"github.com/cwbudde/algo-granular/dsp/granular"
	"github.com/cwbudde/algo-granular/dsp/window"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for a preset that decodes but cannot be applied.
var ErrInvalid = errors.New("preset: invalid")

// Preset is the serializable control state of an engine. Nil and empty
// fields leave the engine unchanged.
type Preset struct {
	Name       string               `yaml:"name,omitempty"`
	InterOnset *Range               `yaml:"interonset,omitempty"`
	Shape      string               `yaml:"shape,omitempty"`
	Pitch      *Target              `yaml:"pitch,omitempty"`
	Energy     *Target              `yaml:"energy,omitempty"`
	LFOs       map[string]LFO       `yaml:"lfos,omitempty"`
	Parameters map[string]Parameter `yaml:"parameters,omitempty"`
}

// Range is an inter-onset interval in samples.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Target is a pitch (Hz) or energy (RMS) target.
type Target struct {
	Value   float64 `yaml:"value"`
	Enabled bool    `yaml:"enabled"`
}

// LFO configures one oscillator of the modulator bank.
type LFO struct {
	Rate     *float64 `yaml:"rate,omitempty"`
	Depth    *float64 `yaml:"depth,omitempty"`
	Waveform string   `yaml:"waveform,omitempty"`
}

// Parameter sets a parameter offset and its modulation slots. Applying it
// first resets the parameter.
type Parameter struct {
	Offset     *float64     `yaml:"offset,omitempty"`
	Modulators []Modulation `yaml:"modulators,omitempty"`
}

// Modulation attaches Source to Slot with Amount.
type Modulation struct {
	Slot   int     `yaml:"slot"`
	Source string  `yaml:"source"`
	Amount float64 `yaml:"amount"`
}

// Default reproduces the classic patch: a 2000-sample grain size swept by
// lfo1 with amount 2000.
func Default() Preset {
	offset := 2000.0
	return Preset{
		Name:  "default",
		Shape: window.TypeHann.String(),
		Parameters: map[string]Parameter{
			granular.ParamGrainSize: {
				Offset: &offset,
				Modulators: []Modulation{
					{Slot: 0, Source: granular.ModLFO1, Amount: 2000},
				},
			},
		},
	}
}

// Parse decodes a YAML preset. Unknown fields are rejected.
func Parse(data []byte) (Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Preset{}, fmt.Errorf("preset: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// Validate checks the fields that do not depend on an engine.
func (p Preset) Validate() error {
	if p.InterOnset != nil && (p.InterOnset.Min < 1 || p.InterOnset.Min > p.InterOnset.Max) {
		return fmt.Errorf("%w: interonset [%d, %d]", ErrInvalid, p.InterOnset.Min, p.InterOnset.Max)
	}
	if p.Shape != "" {
		if _, err := window.Parse(p.Shape); err != nil {
			return fmt.Errorf("%w: shape: %w", ErrInvalid, err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(p.LFOs)) {
		if w := p.LFOs[name].Waveform; w != "" {
			if _, err := control.ParseWaveform(w); err != nil {
				return fmt.Errorf("%w: lfo %s: %w", ErrInvalid, name, err)
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(p.Parameters)) {
		for _, m := range p.Parameters[name].Modulators {
			if m.Slot < 0 || m.Slot >= control.NumSlots {
				return fmt.Errorf("%w: parameter %s slot %d", ErrInvalid, name, m.Slot)
			}
		}
	}
	return nil
}

// Apply pushes p onto e. Maps are applied in key order; the first failure
// stops the application and is returned.
func (p Preset) Apply(e *granular.Engine) error {
	if err := p.Validate(); err != nil {
		return err
	}

	for _, name := range slices.Sorted(maps.Keys(p.LFOs)) {
		if err := applyLFO(e, name, p.LFOs[name]); err != nil {
			return fmt.Errorf("preset: lfo %s: %w", name, err)
		}
	}

	s := e.Scheduler()
	if p.InterOnset != nil {
		if err := s.SetInterOnset(p.InterOnset.Min, p.InterOnset.Max); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	}
	if p.Shape != "" {
		t, _ := window.Parse(p.Shape)
		if err := s.SetShape(t); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	}
	if p.Pitch != nil {
		if err := s.SetPitchTarget(p.Pitch.Value, p.Pitch.Enabled); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	}
	if p.Energy != nil {
		if err := s.SetEnergyTarget(p.Energy.Value, p.Energy.Enabled); err != nil {
			return fmt.Errorf("preset: %w", err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Parameters)) {
		if err := applyParameter(e, name, p.Parameters[name]); err != nil {
			return fmt.Errorf("preset: parameter %s: %w", name, err)
		}
	}
	return nil
}

func applyLFO(e *granular.Engine, name string, cfg LFO) error {
	l, err := e.LFO(name)
	if err != nil {
		return err
	}
	if cfg.Rate != nil {
		if err := l.SetRate(*cfg.Rate); err != nil {
			return err
		}
	}
	if cfg.Depth != nil {
		if err := l.SetDepth(*cfg.Depth); err != nil {
			return err
		}
	}
	if cfg.Waveform != "" {
		w, _ := control.ParseWaveform(cfg.Waveform)
		if err := l.SetWaveform(w); err != nil {
			return err
		}
	}
	return nil
}

func applyParameter(e *granular.Engine, name string, cfg Parameter) error {
	if err := e.ResetParameter(name); err != nil {
		return err
	}
	if cfg.Offset != nil {
		if err := e.SetOffset(name, *cfg.Offset); err != nil {
			return err
		}
	}
	for _, m := range cfg.Modulators {
		if err := e.Attach(name, m.Slot, m.Source); err != nil {
			return err
		}
		if err := e.SetAmount(name, m.Slot, m.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Capture records the current control state of e.
func Capture(e *granular.Engine) Preset {
	s := e.Scheduler()
	lo, hi := s.InterOnset()
	pitch, pitchOn := s.PitchTarget()
	energy, energyOn := s.EnergyTarget()

	p := Preset{
		InterOnset: &Range{Min: lo, Max: hi},
		Shape:      s.Shape().String(),
		Pitch:      &Target{Value: pitch, Enabled: pitchOn},
		Energy:     &Target{Value: energy, Enabled: energyOn},
		LFOs:       make(map[string]LFO),
		Parameters: make(map[string]Parameter),
	}

	for _, name := range []string{granular.ModLFO1, granular.ModLFO2} {
		l, err := e.LFO(name)
		if err != nil {
			continue
		}
		rate, depth := l.Rate(), l.Depth()
		p.LFOs[name] = LFO{Rate: &rate, Depth: &depth, Waveform: l.Waveform().String()}
	}

	for _, info := range e.Parameters() {
		offset := info.Offset
		param := Parameter{Offset: &offset}
		for _, m := range info.Modulators {
			param.Modulators = append(param.Modulators, Modulation{Slot: m.Slot, Source: m.Name, Amount: m.Amount})
		}
		p.Parameters[info.Name] = param
	}
	return p
}

// Marshal encodes p as YAML with two-space indentation.
func Marshal(p Preset) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("preset: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("preset: encode: %w", err)
	}
	return buf.Bytes(), nil
}
