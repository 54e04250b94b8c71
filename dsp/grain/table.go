package grain

import "fmt"

// Table is a fixed-capacity FIFO of pending grains.
//
// A grain becomes ready once its Age reaches the table's pre-delay. With a
// pre-delay of 0 every grain is ready as soon as it is added. Table is not
// safe for concurrent use.
type Table struct {
	items    []Grain
	head     int
	count    int
	preDelay int
	dropped  uint64
}

// NewTable returns a table holding up to capacity grains.
func NewTable(capacity, preDelay int) (*Table, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("grain table capacity must be > 0: %d", capacity)
	}
	if preDelay < 0 {
		return nil, fmt.Errorf("grain table pre-delay must be >= 0: %d", preDelay)
	}
	return &Table{
		items:    make([]Grain, capacity),
		preDelay: preDelay,
	}, nil
}

// Add appends g behind every pending grain. It returns false and counts a
// drop when the table is full.
func (t *Table) Add(g Grain) bool {
	if t.count == len(t.items) {
		t.dropped++
		return false
	}
	t.items[t.slot(t.count)] = g
	t.count++
	return true
}

// UpdateLifetime ages every pending grain by n samples.
func (t *Table) UpdateLifetime(n int) {
	if n <= 0 {
		return
	}
	for i := 0; i < t.count; i++ {
		t.items[t.slot(i)].Age += n
	}
}

// Ready reports whether g has waited out the pre-delay.
func (t *Table) Ready(g Grain) bool {
	return g.Age >= t.preDelay
}

// Peek returns the oldest grain if it is ready.
func (t *Table) Peek() (Grain, bool) {
	if t.count == 0 {
		return Grain{}, false
	}
	g := t.items[t.head]
	if !t.Ready(g) {
		return Grain{}, false
	}
	return g, true
}

// Pop removes and returns the oldest grain if it is ready.
func (t *Table) Pop() (Grain, bool) {
	g, ok := t.Peek()
	if !ok {
		return Grain{}, false
	}
	t.items[t.head] = Grain{}
	t.head = (t.head + 1) % len(t.items)
	t.count--
	return g, true
}

// At returns the i-th oldest pending grain.
func (t *Table) At(i int) (Grain, bool) {
	if i < 0 || i >= t.count {
		return Grain{}, false
	}
	return t.items[t.slot(i)], true
}

// Len returns the number of pending grains.
func (t *Table) Len() int { return t.count }

// Cap returns the table capacity.
func (t *Table) Cap() int { return len(t.items) }

// PreDelay returns the number of samples a grain waits before it is ready.
func (t *Table) PreDelay() int { return t.preDelay }

// Dropped returns the number of grains rejected because the table was full.
func (t *Table) Dropped() uint64 { return t.dropped }

// Reset discards every pending grain and the drop counter.
func (t *Table) Reset() {
	clear(t.items)
	t.head = 0
	t.count = 0
	t.dropped = 0
}

func (t *Table) slot(i int) int {
	return (t.head + i) % len(t.items)
}
