package midicc

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

type printTarget struct{}

func (printTarget) SetOffset(param string, v float64) error {
	fmt.Printf("%s = %.0f\n", param, v)
	return nil
}

func ExampleMap_Handle() {
	m := New(printTarget{})
	_ = m.Bind(0, 74, "gransize", 0, 2540)

	_, _ = m.Handle(midi.ControlChange(0, 74, 127))
	_, _ = m.Handle(midi.ControlChange(0, 74, 50))
	ok, _ := m.Handle(midi.NoteOn(0, 60, 100))
	fmt.Println(ok)
	// Output:
	// gransize = 2540
	// gransize = 1000
	// false
}
