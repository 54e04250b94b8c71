package granular

import (
	"fmt"

	"github.com/cwbudde/algo-granular/dsp/core"
	"github.com/cwbudde/algo-granular/dsp/window"
)

func ExampleEngine_Process() {
	e, err := New(core.WithBufferSize(8192), core.WithMaxGrainSize(1024))
	if err != nil {
		panic(err)
	}
	_ = e.SetOffset(ParamGrainSize, 256)
	_ = e.SetShape(window.TypeHann)
	_ = e.SetInterOnset(128, 128)
	e.Reset()

	in := make([]float64, 64)
	out := make([]float64, 64)
	for i := range in {
		in[i] = 0.5
	}
	for range 32 {
		_ = e.Process(in, out)
	}

	st := e.Stats()
	fmt.Println(st.Blocks, st.Fetched, st.Synthesized, st.EnvelopeMisses)
	// Output:
	// 32 16 16 1
}
