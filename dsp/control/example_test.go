package control

import "fmt"

func ExampleManager() {
	m, _ := NewManager(48000)
	p, _ := m.RegisterParameter("gransize", 2000, 0, 10000)

	lfo, _ := NewLFO(WithLFORate(2))
	lfo.Freeze(0.5)
	_ = m.RegisterModulator("lfo1", lfo)
	_ = m.Attach("gransize", 0, "lfo1")
	_ = m.SetAmount("gransize", 0, 2000)

	m.Perform(make([]float64, 64))
	fmt.Println(p.Value())

	err := m.Attach("gransize", 0, "lfo1")
	fmt.Println(err)
	// Output:
	// 3000
	// control: slot already has a modulator: gransize[0] holds lfo1
}
