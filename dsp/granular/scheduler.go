package granular

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-granular/dsp/control"
	"github.com/cwbudde/algo-granular/dsp/core"
	"github.com/cwbudde/algo-granular/dsp/delay"
	"github.com/cwbudde/algo-granular/dsp/grain"
	"github.com/cwbudde/algo-granular/dsp/window"
)

// Parameter names registered by the scheduler.
const (
	ParamGrainSize = "gransize"
	ParamSpeed     = "speed"
	ParamGain      = "gain"
)

const (
	defaultGrainSize        = 2000
	defaultMinInterOnset    = 2048
	defaultMaxInterOnset    = 4096
	minSpeed                = 0.25
	maxSpeed                = 4.0
	maxGain                 = 4.0
	maxEnergyRatio          = 4.0
	energyDetectionFloor    = 1e-6
	pitchDetectionFloorHz   = 1.0
	hermiteReadMarginFrames = 2
)

type schedulerSettings struct {
	minInterOnset int
	maxInterOnset int
	shape         window.Type

	pitchTarget   float64
	pitchEnabled  bool
	energyTarget  float64
	energyEnabled bool
}

// Counters is the scheduler telemetry.
type Counters struct {
	// Fetched and Synthesized count grains over the engine lifetime.
	Fetched     uint64
	Synthesized uint64
	// LastFetched and LastSynthesized describe the latest block.
	LastFetched     int
	LastSynthesized int
	// PitchRatio and EnergyRatio are the factors applied to the latest
	// fetched grain.
	PitchRatio  float64
	EnergyRatio float64
}

// Scheduler decides when to sample a grain and how to shape it.
//
// Setters may be called from any goroutine. Perform, NextGrain and
// UpdateCounter belong to the audio goroutine.
type Scheduler struct {
	mu       sync.Mutex
	settings atomic.Pointer[schedulerSettings]

	grainSize *control.Parameter
	speed     *control.Parameter
	gain      *control.Parameter

	pitch  control.Modulator
	energy control.Modulator

	rng       *rand.Rand
	countdown int
	dofetch   bool

	fetched         atomic.Uint64
	synthesized     atomic.Uint64
	lastFetched     atomic.Int64
	lastSynthesized atomic.Int64
	pitchRatio      atomic.Uint64
	energyRatio     atomic.Uint64
}

// NewScheduler registers the grain parameters on mgr. pitch and energy may
// be nil, which disables the matching targets.
func NewScheduler(mgr *control.Manager, cfg core.ProcessorConfig, pitch, energy control.Modulator) (*Scheduler, error) {
	if mgr == nil {
		return nil, fmt.Errorf("scheduler needs a control manager")
	}
	if cfg.MaxGrainSize <= 0 {
		return nil, fmt.Errorf("scheduler max grain size must be > 0: %d", cfg.MaxGrainSize)
	}

	size, err := mgr.RegisterParameter(ParamGrainSize, float64(min(defaultGrainSize, cfg.MaxGrainSize)), 0, float64(cfg.MaxGrainSize))
	if err != nil {
		return nil, err
	}
	speed, err := mgr.RegisterParameter(ParamSpeed, 1, minSpeed, maxSpeed)
	if err != nil {
		return nil, err
	}
	gain, err := mgr.RegisterParameter(ParamGain, 1, 0, maxGain)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		grainSize: size,
		speed:     speed,
		gain:      gain,
		pitch:     pitch,
		energy:    energy,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
	}
	s.settings.Store(&schedulerSettings{
		minInterOnset: defaultMinInterOnset,
		maxInterOnset: defaultMaxInterOnset,
		shape:         window.TypeHann,
	})
	s.pitchRatio.Store(math.Float64bits(1))
	s.energyRatio.Store(math.Float64bits(1))
	s.countdown = s.draw(s.settings.Load())
	return s, nil
}

func (s *Scheduler) update(fn func(*schedulerSettings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := *s.settings.Load()
	fn(&next)
	s.settings.Store(&next)
}

// SetInterOnset sets the range, in samples, from which the gap between
// successive grain fetches is drawn.
func (s *Scheduler) SetInterOnset(minSamples, maxSamples int) error {
	if minSamples < 1 || minSamples > maxSamples {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidInterOnset, minSamples, maxSamples)
	}
	s.update(func(st *schedulerSettings) {
		st.minInterOnset = minSamples
		st.maxInterOnset = maxSamples
	})
	return nil
}

// InterOnset returns the current inter-onset range.
func (s *Scheduler) InterOnset() (minSamples, maxSamples int) {
	st := s.settings.Load()
	return st.minInterOnset, st.maxInterOnset
}

// SetShape selects the envelope of newly fetched grains.
func (s *Scheduler) SetShape(t window.Type) error {
	if !t.Valid() {
		return fmt.Errorf("scheduler shape out of range: %d", int(t))
	}
	s.update(func(st *schedulerSettings) { st.shape = t })
	return nil
}

// Shape returns the envelope of newly fetched grains.
func (s *Scheduler) Shape() window.Type { return s.settings.Load().shape }

// SetPitchTarget makes fetched grains play at hz relative to the detected
// input pitch when enabled.
func (s *Scheduler) SetPitchTarget(hz float64, enabled bool) error {
	if hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("pitch target must be >= 0 and finite: %f", hz)
	}
	s.update(func(st *schedulerSettings) {
		st.pitchTarget = hz
		st.pitchEnabled = enabled
	})
	return nil
}

// PitchTarget returns the pitch target and whether it is applied.
func (s *Scheduler) PitchTarget() (float64, bool) {
	st := s.settings.Load()
	return st.pitchTarget, st.pitchEnabled
}

// SetEnergyTarget scales fetched grains toward rms relative to the detected
// input level when enabled.
func (s *Scheduler) SetEnergyTarget(rms float64, enabled bool) error {
	if rms < 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
		return fmt.Errorf("energy target must be >= 0 and finite: %f", rms)
	}
	s.update(func(st *schedulerSettings) {
		st.energyTarget = rms
		st.energyEnabled = enabled
	})
	return nil
}

// EnergyTarget returns the energy target and whether it is applied.
func (s *Scheduler) EnergyTarget() (float64, bool) {
	st := s.settings.Load()
	return st.energyTarget, st.energyEnabled
}

// Perform counts n samples off the inter-onset countdown and reports
// whether a grain is due in this block. Overshoot carries into the next
// interval.
func (s *Scheduler) Perform(n int) bool {
	s.countdown -= n
	if s.countdown > 0 {
		s.dofetch = false
		return false
	}

	st := s.settings.Load()
	s.dofetch = true
	s.countdown += s.draw(st)
	if s.countdown <= 0 {
		s.countdown = s.draw(st)
	}
	return true
}

// Due reports the decision of the latest Perform.
func (s *Scheduler) Due() bool { return s.dofetch }

// Countdown returns the samples left until the next fetch.
func (s *Scheduler) Countdown() int { return s.countdown }

func (s *Scheduler) draw(st *schedulerSettings) int {
	return st.minInterOnset + s.rng.Intn(st.maxInterOnset-st.minInterOnset+1)
}

// NextGrain builds the grain to fetch from a line whose write head is at
// writePos. It reports false when the grain size is zero.
func (s *Scheduler) NextGrain(ring delay.Index, writePos int) (grain.Grain, bool) {
	size := s.grainSize.Int()
	if size <= 0 {
		return grain.Grain{}, false
	}
	st := s.settings.Load()

	pitchRatio := 1.0
	if st.pitchEnabled && s.pitch != nil && st.pitchTarget > 0 {
		if detected := s.pitch.Output(); detected > pitchDetectionFloorHz {
			pitchRatio = st.pitchTarget / detected
		}
	}
	energyRatio := 1.0
	if st.energyEnabled && s.energy != nil {
		if detected := s.energy.Output(); detected > energyDetectionFloor {
			energyRatio = core.Clamp(st.energyTarget/detected, 0, maxEnergyRatio)
		}
	}
	s.pitchRatio.Store(math.Float64bits(pitchRatio))
	s.energyRatio.Store(math.Float64bits(energyRatio))

	g := grain.Grain{
		Duration: size,
		Shape:    st.shape,
		Speed:    core.Clamp(s.speed.Value()*pitchRatio, minSpeed, maxSpeed),
		Gain:     s.gain.Value() * energyRatio,
	}

	// Faster grains read further back so they never pass the write head.
	span := size
	if g.Speed > 1 {
		span = int(math.Ceil(float64(size-1)*g.Speed)) + hermiteReadMarginFrames
		if limit := ring.Size(); span > limit {
			g.Speed = max(1, float64(limit-hermiteReadMarginFrames)/float64(size-1))
			span = limit
		}
	}
	g.Position = ring.Wrap(writePos - span)
	return g, true
}

// UpdateCounter records the grains fetched and synthesized in a block.
func (s *Scheduler) UpdateCounter(fetched, synthesized int) {
	s.lastFetched.Store(int64(fetched))
	s.lastSynthesized.Store(int64(synthesized))
	if fetched > 0 {
		s.fetched.Add(uint64(fetched))
	}
	if synthesized > 0 {
		s.synthesized.Add(uint64(synthesized))
	}
}

// Counters returns the scheduler telemetry.
func (s *Scheduler) Counters() Counters {
	return Counters{
		Fetched:         s.fetched.Load(),
		Synthesized:     s.synthesized.Load(),
		LastFetched:     int(s.lastFetched.Load()),
		LastSynthesized: int(s.lastSynthesized.Load()),
		PitchRatio:      math.Float64frombits(s.pitchRatio.Load()),
		EnergyRatio:     math.Float64frombits(s.energyRatio.Load()),
	}
}

// Reset reseeds the countdown and clears the telemetry. Settings and
// parameters are kept.
func (s *Scheduler) Reset() {
	s.countdown = s.draw(s.settings.Load())
	s.dofetch = false
	s.fetched.Store(0)
	s.synthesized.Store(0)
	s.lastFetched.Store(0)
	s.lastSynthesized.Store(0)
	s.pitchRatio.Store(math.Float64bits(1))
	s.energyRatio.Store(math.Float64bits(1))
}
