package control

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-granular/internal/testutil"
)

type constModulator struct {
	v        float64
	advances int
}

func (c *constModulator) Advance(in []float64, sampleRate float64) { c.advances++ }
func (c *constModulator) Output() float64 { return c.v }

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(48000)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func frozenLFO(t *testing.T, value float64) *LFO {
	t.Helper()
	l, err := NewLFO()
	if err != nil {
		t.Fatal(err)
	}
	l.Freeze(value)
	return l
}

func TestNewManagerValidation(t *testing.T) {
	for _, sr := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewManager(sr); err == nil {
			t.Fatalf("expected error for sample rate %v", sr)
		}
	}
}

func TestGransizeScenario(t *testing.T) {
	tests := []struct {
		name   string
		max    float64
		output float64
		want   float64
	}{
		{"lfo at rest", 10000, 0, 2000},
		{"lfo at peak", 10000, 1, 4000},
		{"lfo at trough", 10000, -1, 0},
		{"clamped to max", 3000, 1, 3000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newManager(t)
			p, err := m.RegisterParameter("gransize", 2000, 0, tc.max)
			if err != nil {
				t.Fatal(err)
			}
			if err := m.RegisterModulator("lfo1", frozenLFO(t, tc.output)); err != nil {
				t.Fatal(err)
			}
			if err := m.Attach("gransize", 0, "lfo1"); err != nil {
				t.Fatal(err)
			}
			if err := m.SetAmount("gransize", 0, 2000); err != nil {
				t.Fatal(err)
			}

			m.Perform(make([]float64, 64))

			v, err := m.Evaluate("gransize")
			if err != nil {
				t.Fatal(err)
			}
			testutil.RequireNearlyEqual(t, "evaluate", v, tc.want, 1e-12)
			testutil.RequireNearlyEqual(t, "value", p.Value(), tc.want, 1e-12)
		})
	}
}

func TestEvaluateIsClampedSum(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("x", 0.5, -1, 1)

	mods := []*constModulator{{v: 0.25}, {v: -0.5}, {v: 0.75}}
	names := []string{"a", "b", "c"}
	for i, mod := range mods {
		if err := m.RegisterModulator(names[i], mod); err != nil {
			t.Fatal(err)
		}
	}

	amounts := [][NumSlots]float64{
		{1, 1, 1},
		{0, 0, 0},
		{2, -1, 0.5},
		{10, 0, 0},
		{-10, 0, 0},
	}
	for i := range NumSlots {
		if err := m.Attach("x", i, names[i]); err != nil {
			t.Fatal(err)
		}
	}

	for _, a := range amounts {
		for i := range NumSlots {
			if err := m.SetAmount("x", i, a[i]); err != nil {
				t.Fatal(err)
			}
		}
		want := 0.5
		for i := range NumSlots {
			want += a[i] * mods[i].v
		}
		want = math.Max(-1, math.Min(1, want))

		m.Perform(nil)
		testutil.RequireNearlyEqual(t, "value", p.Value(), want, 1e-12)
	}
}

func TestPerformAdvancesBeforeEvaluating(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("x", 0, -10, 10)
	mod := &constModulator{}
	_ = m.RegisterModulator("m", mod)
	_ = m.Attach("x", 0, "m")

	l, _ := NewLFO(WithWaveform(Saw), WithLFORate(750))
	_ = m.RegisterModulator("saw", l)
	_ = m.Attach("x", 1, "saw")

	// 32 samples at 48 kHz move a 750 Hz saw by half a cycle.
	m.Perform(make([]float64, 32))
	testutil.RequireNearlyEqual(t, "value", p.Value(), l.Output(), 1e-12)
	testutil.RequireNearlyEqual(t, "saw", l.Output(), 0, 1e-12)
	if mod.advances != 1 {
		t.Fatalf("advances = %d, want 1", mod.advances)
	}
}

func TestRegisterErrors(t *testing.T) {
	m := newManager(t)
	if _, err := m.RegisterParameter("a", 0, 0, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := m.RegisterParameter("a", 0, 0, 1); !errors.Is(err, ErrDuplicateParameter) {
		t.Fatalf("got %v want ErrDuplicateParameter", err)
	}
	if _, err := m.RegisterParameter("b", 0, 1, 0); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("got %v want ErrInvalidRange", err)
	}
	if _, err := m.RegisterParameter("", 0, 0, 1); err == nil || errors.Is(err, ErrInvalidRange) {
		t.Fatalf("empty name: got %v, want a naming error", err)
	}

	mod := &constModulator{}
	if err := m.RegisterModulator("m", mod); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterModulator("m", mod); !errors.Is(err, ErrDuplicateModulator) {
		t.Fatalf("got %v want ErrDuplicateModulator", err)
	}
	if err := m.RegisterModulator("n", nil); err == nil {
		t.Fatal("expected error for nil modulator")
	}
}

func TestUnknownReferences(t *testing.T) {
	m := newManager(t)
	_, _ = m.RegisterParameter("p", 0, 0, 1)
	_ = m.RegisterModulator("m", &constModulator{})

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"parameter lookup", func() error { _, err := m.Parameter("nope"); return err }(), ErrUnknownParameter},
		{"modulator lookup", func() error { _, err := m.Modulator("nope"); return err }(), ErrUnknownModulator},
		{"attach unknown parameter", m.Attach("nope", 0, "m"), ErrUnknownParameter},
		{"attach unknown modulator", m.Attach("p", 0, "nope"), ErrUnknownModulator},
		{"attach slot low", m.Attach("p", -1, "m"), ErrSlotRange},
		{"attach slot high", m.Attach("p", NumSlots, "m"), ErrSlotRange},
		{"detach slot range", m.Detach("p", NumSlots), ErrSlotRange},
		{"amount slot range", m.SetAmount("p", 7, 1), ErrSlotRange},
		{"offset unknown", m.SetOffset("nope", 1), ErrUnknownParameter},
		{"reset unknown", m.Reset("nope"), ErrUnknownParameter},
	}
	for _, tc := range tests {
		if !errors.Is(tc.err, tc.want) {
			t.Errorf("%s: got %v want %v", tc.name, tc.err, tc.want)
		}
	}

	info, err := m.Info("p")
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Modulators) != 0 {
		t.Fatalf("failed calls must not attach anything: %+v", info.Modulators)
	}
}

func TestAttachDetachAreReportedNoOps(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("p", 1, 0, 10)
	_ = m.RegisterModulator("one", &constModulator{v: 1})
	_ = m.RegisterModulator("two", &constModulator{v: 2})

	if err := m.Detach("p", 0); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("got %v want ErrSlotEmpty", err)
	}
	before, _ := m.Info("p")

	if err := m.Attach("p", 0, "one"); err != nil {
		t.Fatal(err)
	}
	if err := m.Attach("p", 0, "two"); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("got %v want ErrSlotOccupied", err)
	}

	info, _ := m.Info("p")
	if len(info.Modulators) != 1 || info.Modulators[0].Name != "one" {
		t.Fatalf("occupied slot changed: %+v", info.Modulators)
	}
	m.Perform(nil)
	testutil.RequireNearlyEqual(t, "value", p.Value(), 2, 1e-12)

	if err := m.Detach("p", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Detach("p", 0); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("got %v want ErrSlotEmpty", err)
	}
	after, _ := m.Info("p")
	if len(after.Modulators) != len(before.Modulators) || after.Offset != before.Offset {
		t.Fatalf("detach round trip changed state: %+v vs %+v", after, before)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("p", 3, 0, 10)
	q, _ := m.RegisterParameter("q", 4, 0, 10)
	_ = m.RegisterModulator("m", &constModulator{v: 1})

	_ = m.SetOffset("p", 7)
	_ = m.Attach("p", 1, "m")
	_ = m.SetAmount("p", 1, 2)
	_ = m.SetOffset("q", 9)
	m.Perform(nil)
	testutil.RequireNearlyEqual(t, "p", p.Value(), 9, 1e-12)

	if err := m.Reset("p"); err != nil {
		t.Fatal(err)
	}
	info, _ := m.Info("p")
	if info.Offset != 3 || info.Value != 3 || len(info.Modulators) != 0 {
		t.Fatalf("reset info = %+v", info)
	}
	testutil.RequireNearlyEqual(t, "q untouched", q.Value(), 9, 1e-12)

	// Amounts return to 1 on reset.
	_ = m.Attach("p", 1, "m")
	m.Perform(nil)
	testutil.RequireNearlyEqual(t, "p", p.Value(), 4, 1e-12)

	m.ResetAll()
	testutil.RequireNearlyEqual(t, "p", p.Value(), 3, 1e-12)
	testutil.RequireNearlyEqual(t, "q", q.Value(), 4, 1e-12)
}

func TestSnapshotKeepsRegistrationOrder(t *testing.T) {
	m := newManager(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := m.RegisterParameter(name, 0, 0, 1); err != nil {
			t.Fatal(err)
		}
	}
	_ = m.RegisterModulator("lfo", &constModulator{})
	_ = m.Attach("alpha", 2, "lfo")
	_ = m.SetAmount("alpha", 2, 0.25)

	snap := m.Snapshot()
	if len(snap) != 3 || snap[0].Name != "zeta" || snap[1].Name != "alpha" || snap[2].Name != "mid" {
		t.Fatalf("snapshot order = %+v", snap)
	}
	mods := snap[1].Modulators
	if len(mods) != 1 || mods[0] != (ModulatorInfo{Slot: 2, Name: "lfo", Amount: 0.25}) {
		t.Fatalf("modulators = %+v", mods)
	}
	if got := m.Modulators(); len(got) != 1 || got[0] != "lfo" {
		t.Fatalf("Modulators() = %v", got)
	}
}

func TestPerformKeepsValuesWhileControlHoldsLock(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("p", 1, 0, 10)

	m.mu.Lock()
	p.offset = 5
	m.Perform(nil)
	m.mu.Unlock()

	if p.Value() != 1 {
		t.Fatalf("value = %v, want stale 1", p.Value())
	}
	if m.Contended() != 1 {
		t.Fatalf("contended = %d, want 1", m.Contended())
	}

	m.Perform(nil)
	if p.Value() != 5 {
		t.Fatalf("value = %v, want 5", p.Value())
	}
}

func TestConcurrentControlAndPerform(t *testing.T) {
	m := newManager(t)
	p, _ := m.RegisterParameter("p", 0, -100, 100)
	lfo, _ := NewLFO(WithLFORate(5))
	_ = m.RegisterModulator("lfo", lfo)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			_ = m.SetOffset("p", float64(i%50))
			_ = m.Attach("p", i%NumSlots, "lfo")
			_ = m.SetAmount("p", i%NumSlots, 3)
			_ = m.Detach("p", (i+1)%NumSlots)
			_ = lfo.SetRate(float64(i % 7))
		}
	}()

	block := make([]float64, 64)
	for range 500 {
		m.Perform(block)
		testutil.RequireFinite(t, []float64{p.Value()})
	}
	wg.Wait()
}

func TestEvaluateDuringControlUpdates(t *testing.T) {
	m := newManager(t)
	_, _ = m.RegisterParameter("p", 0, -1000, 1000)
	lfo, _ := NewLFO()
	lfo.Freeze(0.5)
	_ = m.RegisterModulator("lfo", lfo)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 500 {
			_ = m.SetOffset("p", float64(i%100))
			_ = m.Attach("p", 0, "lfo")
			_ = m.SetAmount("p", 0, 2)
			_ = m.Detach("p", 0)
		}
	}()

	for range 500 {
		v, err := m.Evaluate("p")
		if err != nil {
			t.Fatal(err)
		}
		if v < 0 || v > 100 {
			t.Fatalf("Evaluate() = %v outside [0, 100]", v)
		}
	}
	wg.Wait()

	if _, err := m.Evaluate("nope"); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("got %v want ErrUnknownParameter", err)
	}
}

func TestPerformDoesNotAllocate(t *testing.T) {
	testutil.SkipAllocsUnderRace(t)

	m := newManager(t)
	_, _ = m.RegisterParameter("a", 0, 0, 1)
	_, _ = m.RegisterParameter("b", 0, 0, 1)
	lfo, _ := NewLFO(WithWaveform(Random))
	energy, _ := NewEnergyDetector(10)
	_ = m.RegisterModulator("lfo", lfo)
	_ = m.RegisterModulator("energy", energy)
	_ = m.Attach("a", 0, "lfo")
	_ = m.Attach("b", 0, "energy")

	block := testutil.DeterministicNoise(3, 0.5, 64)
	allocs := testing.AllocsPerRun(100, func() {
		m.Perform(block)
	})
	if allocs != 0 {
		t.Fatalf("Perform allocated %v times per run", allocs)
	}
}
