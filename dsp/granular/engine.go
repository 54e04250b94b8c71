package granular

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-granular/dsp/control"
	"github.com/cwbudde/algo-granular/dsp/core"
	"github.com/cwbudde/algo-granular/dsp/delay"
	"github.com/cwbudde/algo-granular/dsp/envelope"
	"github.com/cwbudde/algo-granular/dsp/grain"
	"github.com/cwbudde/algo-granular/dsp/synth"
	"github.com/cwbudde/algo-granular/dsp/window"
)

// Modulator names of the default bank.
const (
	ModLFO1   = "lfo1"
	ModLFO2   = "lfo2"
	ModPitch  = "pitch"
	ModEnergy = "energy"
)

const (
	grainTap = 0

	defaultLFO1RateHz     = 0.5
	defaultLFO2RateHz     = 0.1
	defaultEnergySmoothMs = 50.0
)

// Stats is a snapshot of the engine counters.
type Stats struct {
	Blocks         uint64
	Fetched        uint64
	Synthesized    uint64
	TableDrops     uint64
	PoolDrops      uint64
	EnvelopeHits   uint64
	EnvelopeMisses uint64
	Contended      uint64
	ContractFaults uint64
	PendingGrains  int
	ActiveGrains   int
}

type engineCounters struct {
	blocks         atomic.Uint64
	tableDrops     atomic.Uint64
	poolDrops      atomic.Uint64
	envelopeHits   atomic.Uint64
	envelopeMisses atomic.Uint64
	faults         atomic.Uint64
	pending        atomic.Int64
	active         atomic.Int64
}

// Engine is a real-time granular delay.
//
// Process, Reset, SetRepeat, Grains and AppendGrains belong to the audio
// goroutine. Everything else may be called concurrently with Process.
type Engine struct {
	cfg core.ProcessorConfig

	line     *delay.Line
	table    *grain.Table
	cache    *envelope.Cache
	synth    *synth.Synth
	controls *control.Manager
	sched    *Scheduler

	lfos   map[string]*control.LFO
	pitch  *control.PitchDetector
	energy *control.EnergyDetector

	counters engineCounters
}

// New builds an engine and pre-allocates every pool.
func New(opts ...core.ProcessorOption) (*Engine, error) {
	cfg := core.ApplyProcessorOptions(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("granular: %w", err)
	}

	line, err := delay.New(cfg.BufferSize, cfg.ReadTaps)
	if err != nil {
		return nil, err
	}
	table, err := grain.NewTable(cfg.TableSize, cfg.PreDelay)
	if err != nil {
		return nil, err
	}
	cache, err := envelope.NewCache(cfg.EnvelopeCacheSize, cfg.MaxGrainSize)
	if err != nil {
		return nil, err
	}
	syn, err := synth.New(cfg.Voices, cfg.MaxGrainSize)
	if err != nil {
		return nil, err
	}
	mgr, err := control.NewManager(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		line:     line,
		table:    table,
		cache:    cache,
		synth:    syn,
		controls: mgr,
		lfos:     make(map[string]*control.LFO),
	}
	if err := e.registerModulators(); err != nil {
		return nil, err
	}

	sched, err := NewScheduler(mgr, cfg, e.pitch, e.energy)
	if err != nil {
		return nil, err
	}
	e.sched = sched
	return e, nil
}

func (e *Engine) registerModulators() error {
	lfo1, err := control.NewLFO(control.WithLFORate(defaultLFO1RateHz), control.WithLFOSeed(e.cfg.Seed))
	if err != nil {
		return err
	}
	lfo2, err := control.NewLFO(
		control.WithLFORate(defaultLFO2RateHz),
		control.WithWaveform(control.Triangle),
		control.WithLFOSeed(e.cfg.Seed+1),
	)
	if err != nil {
		return err
	}
	pitch, err := control.NewPitchDetector()
	if err != nil {
		return err
	}
	energy, err := control.NewEnergyDetector(defaultEnergySmoothMs)
	if err != nil {
		return err
	}

	e.lfos[ModLFO1] = lfo1
	e.lfos[ModLFO2] = lfo2
	e.pitch = pitch
	e.energy = energy

	for _, m := range []struct {
		name string
		mod  control.Modulator
	}{
		{ModLFO1, lfo1},
		{ModLFO2, lfo2},
		{ModPitch, pitch},
		{ModEnergy, energy},
	} {
		if err := e.controls.RegisterModulator(m.name, m.mod); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the construction record.
func (e *Engine) Config() core.ProcessorConfig { return e.cfg }

// Process consumes one input block and writes one output block of the same
// length. in and out may be the same slice.
func (e *Engine) Process(in, out []float64) error {
	if len(in) != len(out) {
		return fmt.Errorf("%w: in %d, out %d", ErrBlockMismatch, len(in), len(out))
	}
	n := len(in)
	if n == 0 {
		return nil
	}

	e.controls.Perform(in)
	e.line.WriteBlock(in)

	fetched := 0
	if e.sched.Perform(n) {
		if g, ok := e.sched.NextGrain(e.line.Ring(), e.line.WritePosition()); ok && e.table.Add(g) {
			fetched = 1
		}
	}

	e.table.UpdateLifetime(n)

	synthesized := 0
	if g, ok := e.table.Pop(); ok && e.activate(g) {
		synthesized = 1
	}

	e.sched.UpdateCounter(fetched, synthesized)
	e.synth.WriteOutput(out)

	e.counters.blocks.Add(1)
	e.publish()
	return nil
}

func (e *Engine) activate(g grain.Grain) bool {
	env, err := e.cache.CheckOrCreate(g.Shape, g.Duration)
	if err != nil {
		e.counters.faults.Add(1)
		return false
	}
	err = e.synth.Activate(e.line, grainTap, g, env)
	switch {
	case err == nil:
		return true
	case errors.Is(err, synth.ErrPoolFull):
	default:
		e.counters.faults.Add(1)
	}
	return false
}

func (e *Engine) publish() {
	e.counters.tableDrops.Store(e.table.Dropped())
	e.counters.poolDrops.Store(e.synth.Dropped())
	e.counters.envelopeHits.Store(e.cache.Hits())
	e.counters.envelopeMisses.Store(e.cache.Misses())
	e.counters.pending.Store(int64(e.table.Len()))
	e.counters.active.Store(int64(e.synth.Active()))
}

// Stats returns the engine counters as of the latest Process.
func (e *Engine) Stats() Stats {
	c := e.sched.Counters()
	return Stats{
		Blocks:         e.counters.blocks.Load(),
		Fetched:        c.Fetched,
		Synthesized:    c.Synthesized,
		TableDrops:     e.counters.tableDrops.Load(),
		PoolDrops:      e.counters.poolDrops.Load(),
		EnvelopeHits:   e.counters.envelopeHits.Load(),
		EnvelopeMisses: e.counters.envelopeMisses.Load(),
		Contended:      e.controls.Contended(),
		ContractFaults: e.counters.faults.Load(),
		PendingGrains:  int(e.counters.pending.Load()),
		ActiveGrains:   int(e.counters.active.Load()),
	}
}

// Reset silences the engine: the recorded audio, pending and playing grains,
// cached envelopes, detectors and the fetch countdown. Parameters and
// scheduler settings are kept.
func (e *Engine) Reset() {
	e.line.Reset()
	e.table.Reset()
	e.synth.Reset()
	e.cache.Reset()
	e.pitch.Reset()
	e.energy.Reset()
	e.sched.Reset()

	e.counters.blocks.Store(0)
	e.counters.faults.Store(0)
	e.publish()
}

// Controls returns the parameter registry and modulator bank.
func (e *Engine) Controls() *control.Manager { return e.controls }

// Scheduler returns the grain scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// LFO returns one of the bank's oscillators.
func (e *Engine) LFO(name string) (*control.LFO, error) {
	l, ok := e.lfos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an LFO", control.ErrUnknownModulator, name)
	}
	return l, nil
}

// Parameter returns the named parameter.
func (e *Engine) Parameter(name string) (*control.Parameter, error) {
	return e.controls.Parameter(name)
}

// Attach connects modulator to slot of param.
func (e *Engine) Attach(param string, slot int, modulator string) error {
	return e.controls.Attach(param, slot, modulator)
}

// Detach disconnects the modulator in slot of param.
func (e *Engine) Detach(param string, slot int) error {
	return e.controls.Detach(param, slot)
}

// SetAmount scales the contribution of slot of param.
func (e *Engine) SetAmount(param string, slot int, amount float64) error {
	return e.controls.SetAmount(param, slot, amount)
}

// SetOffset sets the base value of param.
func (e *Engine) SetOffset(param string, offset float64) error {
	return e.controls.SetOffset(param, offset)
}

// ResetParameter restores the default of param and detaches its modulators.
func (e *Engine) ResetParameter(param string) error {
	return e.controls.Reset(param)
}

// ResetAll resets every parameter.
func (e *Engine) ResetAll() {
	e.controls.ResetAll()
}

// SetShape selects the envelope of newly fetched grains.
func (e *Engine) SetShape(t window.Type) error {
	return e.sched.SetShape(t)
}

// SetInterOnset sets the range of the gap between grain fetches.
func (e *Engine) SetInterOnset(minSamples, maxSamples int) error {
	return e.sched.SetInterOnset(minSamples, maxSamples)
}
