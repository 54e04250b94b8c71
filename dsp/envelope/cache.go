// Package envelope caches grain amplitude envelopes keyed by shape and
// duration.
//
// All curve storage is allocated by NewCache; lookups, misses and evictions
// reuse it, so CheckOrCreate is safe to call from an audio callback.
package envelope

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-granular/dsp/window"
)

var (
	// ErrDuration is returned for a duration outside [1, MaxDuration()].
	ErrDuration = errors.New("envelope: duration out of range")
	// ErrShape is returned for an unknown envelope shape.
	ErrShape = errors.New("envelope: unknown shape")
)

// Envelope is an amplitude curve of exactly Duration samples.
// Samples must be treated as read-only.
type Envelope struct {
	Shape    window.Type
	Duration int
	Samples  []float64
}

type entry struct {
	env     Envelope
	storage []float64
	lastUse uint64
	used    bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithParams overrides the curve parameters of one shape.
func WithParams(t window.Type, p window.Params) Option {
	return func(c *Cache) {
		if t.Valid() {
			c.params[t] = p
		}
	}
}

// Cache is a fixed-capacity least-recently-used envelope store.
//
// An *Envelope returned by CheckOrCreate stays valid until a later miss
// evicts its slot. It is not safe for concurrent use.
type Cache struct {
	entries     []entry
	maxDuration int
	params      map[window.Type]window.Params
	clock       uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCache returns a cache of capacity curves, each up to maxDuration samples.
func NewCache(capacity, maxDuration int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("envelope cache capacity must be > 0: %d", capacity)
	}
	if maxDuration <= 0 {
		return nil, fmt.Errorf("envelope max duration must be > 0: %d", maxDuration)
	}

	c := &Cache{
		entries:     make([]entry, capacity),
		maxDuration: maxDuration,
		params:      make(map[window.Type]window.Params),
	}
	for _, t := range window.Types() {
		c.params[t] = window.DefaultParams(t)
	}
	for i := range c.entries {
		c.entries[i].storage = make([]float64, maxDuration)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// CheckOrCreate returns the cached envelope for (shape, duration), building
// it in the least recently used slot on a miss.
func (c *Cache) CheckOrCreate(shape window.Type, duration int) (*Envelope, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrShape, int(shape))
	}
	if duration <= 0 || duration > c.maxDuration {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrDuration, duration, c.maxDuration)
	}

	c.clock++

	victim := 0
	for i := range c.entries {
		e := &c.entries[i]
		if e.used && e.env.Shape == shape && e.env.Duration == duration {
			e.lastUse = c.clock
			c.hits++
			return &e.env, nil
		}
		if !e.used {
			if c.entries[victim].used {
				victim = i
			}
			continue
		}
		if c.entries[victim].used && e.lastUse < c.entries[victim].lastUse {
			victim = i
		}
	}

	c.misses++
	e := &c.entries[victim]
	if e.used {
		c.evictions++
	}

	curve := e.storage[:duration]
	window.FillParams(shape, curve, c.params[shape])

	e.env = Envelope{Shape: shape, Duration: duration, Samples: curve}
	e.lastUse = c.clock
	e.used = true

	return &e.env, nil
}

// Lookup returns a cached envelope without creating one or touching its
// recency.
func (c *Cache) Lookup(shape window.Type, duration int) (*Envelope, bool) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.used && e.env.Shape == shape && e.env.Duration == duration {
			return &e.env, true
		}
	}
	return nil, false
}

// Len returns the number of cached curves.
func (c *Cache) Len() int {
	n := 0
	for i := range c.entries {
		if c.entries[i].used {
			n++
		}
	}
	return n
}

// Cap returns the number of curve slots.
func (c *Cache) Cap() int { return len(c.entries) }

// MaxDuration returns the longest curve the cache can hold.
func (c *Cache) MaxDuration() int { return c.maxDuration }

// Hits returns the number of lookups served from the cache.
func (c *Cache) Hits() uint64 { return c.hits }

// Misses returns the number of curves synthesized.
func (c *Cache) Misses() uint64 { return c.misses }

// Evictions returns the number of curves replaced by a newer one.
func (c *Cache) Evictions() uint64 { return c.evictions }

// Reset drops every cached curve and clears the counters.
func (c *Cache) Reset() {
	for i := range c.entries {
		e := &c.entries[i]
		e.env = Envelope{}
		e.used = false
		e.lastUse = 0
	}
	c.clock = 0
	c.hits = 0
	c.misses = 0
	c.evictions = 0
}
