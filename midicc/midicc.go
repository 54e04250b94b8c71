// Package midicc maps MIDI control-change messages onto parameter offsets.
package midicc

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"gitlab.com/gomidi/midi/v2"
)

// ErrBinding is returned for an out-of-range channel, controller or span.
var ErrBinding = errors.New("midicc: invalid binding")

// Target receives parameter offsets. *granular.Engine implements it.
type Target interface {
	SetOffset(param string, offset float64) error
}

// Binding maps one controller on one channel linearly onto [Lo, Hi] of a
// parameter. CC value 0 gives Lo and 127 gives Hi.
type Binding struct {
	Channel    uint8
	Controller uint8
	Parameter  string
	Lo         float64
	Hi         float64
}

// Value returns the offset for a 7-bit controller value.
func (b Binding) Value(cc uint8) float64 {
	return b.Lo + (b.Hi-b.Lo)*float64(min(cc, 127))/127
}

type key struct {
	channel    uint8
	controller uint8
}

// Map dispatches control changes to a Target. It is safe for concurrent
// use, so Handle can run on a MIDI driver goroutine while bindings change.
type Map struct {
	mu       sync.RWMutex
	target   Target
	bindings map[key]Binding
}

// New returns an empty map that drives target.
func New(target Target) *Map {
	return &Map{
		target:   target,
		bindings: make(map[key]Binding),
	}
}

// Bind routes controller on channel to param, replacing any previous
// binding of that controller.
func (m *Map) Bind(channel, controller uint8, param string, lo, hi float64) error {
	if channel > 15 {
		return fmt.Errorf("%w: channel %d", ErrBinding, channel)
	}
	if controller > 127 {
		return fmt.Errorf("%w: controller %d", ErrBinding, controller)
	}
	if param == "" {
		return fmt.Errorf("%w: empty parameter", ErrBinding)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("%w: span [%g, %g]", ErrBinding, lo, hi)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[key{channel, controller}] = Binding{
		Channel:    channel,
		Controller: controller,
		Parameter:  param,
		Lo:         lo,
		Hi:         hi,
	}
	return nil
}

// Unbind removes the binding of controller on channel and reports whether
// one existed.
func (m *Map) Unbind(channel, controller uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{channel, controller}
	_, ok := m.bindings[k]
	delete(m.bindings, k)
	return ok
}

// Bindings lists every binding ordered by channel and controller.
func (m *Map) Bindings() []Binding {
	m.mu.RLock()
	out := make([]Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Binding) int {
		if c := cmp.Compare(a.Channel, b.Channel); c != 0 {
			return c
		}
		return cmp.Compare(a.Controller, b.Controller)
	})
	return out
}

// Handle applies msg if it is a bound control change. It reports whether a
// parameter was set; other messages are ignored.
func (m *Map) Handle(msg midi.Message) (bool, error) {
	var channel, controller, value uint8
	if !msg.GetControlChange(&channel, &controller, &value) {
		return false, nil
	}

	m.mu.RLock()
	b, ok := m.bindings[key{channel, controller}]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := m.target.SetOffset(b.Parameter, b.Value(value)); err != nil {
		return false, fmt.Errorf("midicc: ch %d cc %d: %w", channel, controller, err)
	}
	return true, nil
}

// Listener adapts Handle to the callback of midi.ListenTo. Errors go to
// onErr when it is not nil.
func (m *Map) Listener(onErr func(error)) func(msg midi.Message, timestampms int32) {
	return func(msg midi.Message, _ int32) {
		if _, err := m.Handle(msg); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
