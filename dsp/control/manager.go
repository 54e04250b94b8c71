package control

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

type namedModulator struct {
	name string
	mod  Modulator
}

// ModulatorInfo describes one attached modulator slot.
type ModulatorInfo struct {
	Slot   int
	Name   string
	Amount float64
}

// ParameterInfo is a point-in-time view of a parameter.
type ParameterInfo struct {
	Name       string
	Value      float64
	Offset     float64
	Default    float64
	Min        float64
	Max        float64
	Modulators []ModulatorInfo
}

// Manager is the parameter registry and modulator bank of one engine.
//
// Register, Attach, Detach, SetAmount, SetOffset and Reset may be called
// from any goroutine. Perform belongs to the audio goroutine and never
// blocks: if a control operation holds the lock it keeps the previous
// parameter values for that block.
type Manager struct {
	mu         sync.Mutex
	sampleRate float64

	params  []*Parameter
	byName  map[string]*Parameter
	modName map[string]Modulator

	// mods is replaced, never mutated, so Perform can read it without mu.
	mods atomic.Pointer[[]namedModulator]

	contended atomic.Uint64
}

// NewManager returns an empty manager for the given sample rate.
func NewManager(sampleRate float64) (*Manager, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("control sample rate must be > 0 and finite: %f", sampleRate)
	}
	m := &Manager{
		sampleRate: sampleRate,
		byName:     make(map[string]*Parameter),
		modName:    make(map[string]Modulator),
	}
	empty := []namedModulator{}
	m.mods.Store(&empty)
	return m, nil
}

// SampleRate returns the rate passed to modulators.
func (m *Manager) SampleRate() float64 { return m.sampleRate }

// RegisterParameter adds a parameter whose offset starts at def.
func (m *Manager) RegisterParameter(name string, def, min, max float64) (*Parameter, error) {
	if name == "" {
		return nil, fmt.Errorf("control: parameter needs a name")
	}
	if math.IsNaN(min) || math.IsNaN(max) || math.IsNaN(def) || min > max {
		return nil, fmt.Errorf("%w: %s [%g, %g] default %g", ErrInvalidRange, name, min, max, def)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
	}
	p := newParameter(name, def, min, max)
	m.params = append(m.params, p)
	m.byName[name] = p
	return p, nil
}

// RegisterModulator adds mod to the bank under name.
func (m *Manager) RegisterModulator(name string, mod Modulator) error {
	if name == "" || mod == nil {
		return fmt.Errorf("control: modulator needs a name and a value: %q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.modName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModulator, name)
	}
	m.modName[name] = mod

	old := *m.mods.Load()
	next := make([]namedModulator, len(old), len(old)+1)
	copy(next, old)
	next = append(next, namedModulator{name: name, mod: mod})
	m.mods.Store(&next)
	return nil
}

// Parameter returns the parameter registered under name.
func (m *Manager) Parameter(name string) (*Parameter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(name)
}

// Modulator returns the modulator registered under name.
func (m *Manager) Modulator(name string) (Modulator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModulator, name)
	}
	return mod, nil
}

// Modulators returns the bank's names in registration order.
func (m *Manager) Modulators() []string {
	mods := *m.mods.Load()
	names := make([]string, len(mods))
	for i, nm := range mods {
		names[i] = nm.name
	}
	return names
}

// Attach connects the named modulator to slot of param.
func (m *Manager) Attach(param string, slot int, modulator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookupSlot(param, slot)
	if err != nil {
		return err
	}
	mod, ok := m.modName[modulator]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModulator, modulator)
	}
	if p.slots[slot].Mod != nil {
		return fmt.Errorf("%w: %s[%d] holds %s", ErrSlotOccupied, param, slot, p.slots[slot].Name)
	}
	p.slots[slot].Mod = mod
	p.slots[slot].Name = modulator
	return nil
}

// Detach disconnects the modulator in slot of param. The amount is kept.
func (m *Manager) Detach(param string, slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookupSlot(param, slot)
	if err != nil {
		return err
	}
	if p.slots[slot].Mod == nil {
		return fmt.Errorf("%w: %s[%d]", ErrSlotEmpty, param, slot)
	}
	p.slots[slot].Mod = nil
	p.slots[slot].Name = ""
	return nil
}

// SetAmount scales the contribution of slot of param.
func (m *Manager) SetAmount(param string, slot int, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("control amount must be finite: %f", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookupSlot(param, slot)
	if err != nil {
		return err
	}
	p.slots[slot].Amount = amount
	return nil
}

// SetOffset sets the base value of param. The published value follows at
// the next Perform.
func (m *Manager) SetOffset(param string, offset float64) error {
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		return fmt.Errorf("control offset must be finite: %f", offset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(param)
	if err != nil {
		return err
	}
	p.offset = offset
	return nil
}

// Reset restores the default offset of param, detaches every slot and sets
// every amount back to 1.
func (m *Manager) Reset(param string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(param)
	if err != nil {
		return err
	}
	resetParameter(p)
	return nil
}

// ResetAll resets every parameter in registration order.
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.params {
		resetParameter(p)
	}
}

func resetParameter(p *Parameter) {
	p.offset = p.def
	p.clearSlots()
	p.publish()
}

// Perform advances every modulator over in and then evaluates every
// parameter in registration order.
func (m *Manager) Perform(in []float64) {
	for _, nm := range *m.mods.Load() {
		nm.mod.Advance(in, m.sampleRate)
	}

	if !m.mu.TryLock() {
		m.contended.Add(1)
		return
	}
	for _, p := range m.params {
		p.publish()
	}
	m.mu.Unlock()
}

// Contended returns the number of blocks that kept stale parameter values
// because a control operation held the lock.
func (m *Manager) Contended() uint64 { return m.contended.Load() }

// Evaluate computes the current value of the named parameter from its
// offset, amounts and modulator outputs without publishing it.
func (m *Manager) Evaluate(name string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	return p.evaluate(), nil
}

// Info describes the parameter registered under name.
func (m *Manager) Info(name string) (ParameterInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(name)
	if err != nil {
		return ParameterInfo{}, err
	}
	return info(p), nil
}

// Snapshot describes every parameter in registration order.
func (m *Manager) Snapshot() []ParameterInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ParameterInfo, len(m.params))
	for i, p := range m.params {
		out[i] = info(p)
	}
	return out
}

func info(p *Parameter) ParameterInfo {
	pi := ParameterInfo{
		Name:    p.name,
		Value:   p.Value(),
		Offset:  p.offset,
		Default: p.def,
		Min:     p.min,
		Max:     p.max,
	}
	for i, s := range p.slots {
		if s.Mod == nil {
			continue
		}
		pi.Modulators = append(pi.Modulators, ModulatorInfo{Slot: i, Name: s.Name, Amount: s.Amount})
	}
	return pi
}

func (m *Manager) lookup(name string) (*Parameter, error) {
	p, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return p, nil
}

func (m *Manager) lookupSlot(name string, slot int) (*Parameter, error) {
	p, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	if slot < 0 || slot >= NumSlots {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrSlotRange, slot, NumSlots)
	}
	return p, nil
}
