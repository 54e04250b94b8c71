package grain

import (
	"fmt"

	"github.com/cwbudde/algo-granular/dsp/window"
)

func ExampleTable() {
	tbl, _ := NewTable(2, 0)
	fmt.Println(tbl.Add(New(0, 64, window.TypeHann)))
	fmt.Println(tbl.Add(New(64, 64, window.TypeHann)))
	fmt.Println(tbl.Add(New(128, 64, window.TypeHann)))

	g, _ := tbl.Pop()
	fmt.Println(g.Position, tbl.Len(), tbl.Dropped())
	// Output:
	// true
	// true
	// false
	// 0 1 1
}
