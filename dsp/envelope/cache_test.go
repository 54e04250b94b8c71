package envelope

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-granular/dsp/window"
	"github.com/cwbudde/algo-granular/internal/testutil"
)

func newCache(t *testing.T, capacity, maxDuration int, opts ...Option) *Cache {
	t.Helper()
	c, err := NewCache(capacity, maxDuration, opts...)
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	return c
}

func TestNewCacheValidation(t *testing.T) {
	if _, err := NewCache(0, 16); err == nil {
		t.Fatal("expected error for capacity 0")
	}
	if _, err := NewCache(4, 0); err == nil {
		t.Fatal("expected error for max duration 0")
	}
}

func TestCheckOrCreateBuildsExactLength(t *testing.T) {
	c := newCache(t, 4, 512)

	env, err := c.CheckOrCreate(window.TypeHann, 300)
	if err != nil {
		t.Fatal(err)
	}
	if env.Duration != 300 || len(env.Samples) != 300 || env.Shape != window.TypeHann {
		t.Fatalf("envelope = %v/%d/%d", env.Shape, env.Duration, len(env.Samples))
	}

	testutil.RequireSliceNearlyEqual(t, env.Samples, window.Generate(window.TypeHann, 300), 0)
}

func TestCacheHitReturnsSameCurve(t *testing.T) {
	c := newCache(t, 4, 512)

	a, err := c.CheckOrCreate(window.TypeTriangle, 128)
	if err != nil {
		t.Fatal(err)
	}
	snapshot := append([]float64(nil), a.Samples...)

	b, err := c.CheckOrCreate(window.TypeTriangle, 128)
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Fatal("cache hit must return the same envelope")
	}
	testutil.RequireSliceNearlyEqual(t, b.Samples, snapshot, 0)

	if c.Misses() != 1 || c.Hits() != 1 {
		t.Fatalf("hits/misses = %d/%d, want 1/1", c.Hits(), c.Misses())
	}
}

func TestCacheKeysOnShapeAndDuration(t *testing.T) {
	c := newCache(t, 4, 512)

	a, _ := c.CheckOrCreate(window.TypeHann, 64)
	b, _ := c.CheckOrCreate(window.TypeHann, 65)
	d, _ := c.CheckOrCreate(window.TypeTukey, 64)

	if a == b || a == d || b == d {
		t.Fatal("distinct keys must map to distinct entries")
	}
	if c.Len() != 3 || c.Misses() != 3 {
		t.Fatalf("len/misses = %d/%d, want 3/3", c.Len(), c.Misses())
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(t, 2, 64)

	_, _ = c.CheckOrCreate(window.TypeHann, 10) // A
	_, _ = c.CheckOrCreate(window.TypeHann, 20) // B
	_, _ = c.CheckOrCreate(window.TypeHann, 10) // touch A
	_, _ = c.CheckOrCreate(window.TypeHann, 30) // evicts B

	if _, ok := c.Lookup(window.TypeHann, 20); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if _, ok := c.Lookup(window.TypeHann, 10); !ok {
		t.Fatal("recently used entry should survive")
	}
	if _, ok := c.Lookup(window.TypeHann, 30); !ok {
		t.Fatal("new entry should be cached")
	}
	if c.Evictions() != 1 {
		t.Fatalf("evictions = %d, want 1", c.Evictions())
	}
	if c.Len() != c.Cap() {
		t.Fatalf("len = %d, want %d", c.Len(), c.Cap())
	}
}

func TestCheckOrCreateRejectsInvalidInput(t *testing.T) {
	c := newCache(t, 2, 64)

	for _, d := range []int{0, -1, 65} {
		if _, err := c.CheckOrCreate(window.TypeHann, d); !errors.Is(err, ErrDuration) {
			t.Fatalf("duration %d: got %v want ErrDuration", d, err)
		}
	}
	if _, err := c.CheckOrCreate(window.Type(-1), 8); !errors.Is(err, ErrShape) {
		t.Fatalf("got %v want ErrShape", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed lookups must not fill the cache, len = %d", c.Len())
	}
}

func TestWithParamsOverridesShape(t *testing.T) {
	c := newCache(t, 2, 128, WithParams(window.TypeTukey, window.Params{Alpha: 0.1}))

	env, err := c.CheckOrCreate(window.TypeTukey, 100)
	if err != nil {
		t.Fatal(err)
	}
	want := window.Generate(window.TypeTukey, 100, window.WithAlpha(0.1))
	testutil.RequireSliceNearlyEqual(t, env.Samples, want, 0)
}

func TestCheckOrCreateDoesNotAllocate(t *testing.T) {
	testutil.SkipAllocsUnderRace(t)

	c := newCache(t, 2, 1024)
	durations := []int{100, 200, 300}
	i := 0

	allocs := testing.AllocsPerRun(50, func() {
		_, _ = c.CheckOrCreate(window.TypeHann, durations[i%len(durations)])
		i++
	})
	if allocs != 0 {
		t.Fatalf("CheckOrCreate allocated %v times per run", allocs)
	}
}

func TestReset(t *testing.T) {
	c := newCache(t, 2, 64)
	_, _ = c.CheckOrCreate(window.TypeHann, 10)
	c.Reset()

	if c.Len() != 0 || c.Hits() != 0 || c.Misses() != 0 {
		t.Fatalf("reset left len/hits/misses = %d/%d/%d", c.Len(), c.Hits(), c.Misses())
	}
}
