package core

import "fmt"

// ProcessorConfig is the immutable construction record of a granular engine.
// It is built once from options and never changes while the engine runs.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int

	// BufferSize is the capacity of the recording ring in samples.
	BufferSize int
	// ReadTaps is the number of independent read cursors on the ring.
	ReadTaps int
	// TableSize bounds the number of pending grains.
	TableSize int
	// Voices bounds the number of concurrently playing grains.
	Voices int
	// EnvelopeCacheSize bounds the number of cached envelope curves.
	EnvelopeCacheSize int
	// MaxGrainSize is the longest grain in samples; every pool slot and
	// envelope slot is pre-sized to it.
	MaxGrainSize int
	// PreDelay is the number of samples a fetched grain waits in the table
	// before it becomes eligible for synthesis. Zero means immediately.
	PreDelay int
	// Seed drives the inter-onset randomization.
	Seed int64
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns sensible defaults for live granular processing.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate:        48000,
		BlockSize:         64,
		BufferSize:        1 << 17,
		ReadTaps:          4,
		TableSize:         32,
		Voices:            16,
		EnvelopeCacheSize: 8,
		MaxGrainSize:      16384,
		PreDelay:          0,
		Seed:              1,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the nominal processing block size.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithBufferSize sets the recording ring capacity in samples.
func WithBufferSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if size > 0 {
			cfg.BufferSize = size
		}
	}
}

// WithReadTaps sets the number of read cursors on the recording ring.
func WithReadTaps(taps int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if taps > 0 {
			cfg.ReadTaps = taps
		}
	}
}

// WithTableSize sets the pending grain table capacity.
func WithTableSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if size > 0 {
			cfg.TableSize = size
		}
	}
}

// WithVoices sets the synthesizer pool size.
func WithVoices(voices int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if voices > 0 {
			cfg.Voices = voices
		}
	}
}

// WithEnvelopeCacheSize sets the number of cached envelope curves.
func WithEnvelopeCacheSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if size > 0 {
			cfg.EnvelopeCacheSize = size
		}
	}
}

// WithMaxGrainSize sets the longest supported grain in samples.
func WithMaxGrainSize(size int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if size > 0 {
			cfg.MaxGrainSize = size
		}
	}
}

// WithPreDelay sets how long fetched grains wait before synthesis.
func WithPreDelay(samples int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if samples >= 0 {
			cfg.PreDelay = samples
		}
	}
}

// WithSeed sets the scheduler random seed.
func WithSeed(seed int64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		cfg.Seed = seed
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Validate checks the cross-field constraints of a configuration.
func (c ProcessorConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0: %f", c.SampleRate)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block size must be > 0: %d", c.BlockSize)
	}
	if c.MaxGrainSize <= 0 {
		return fmt.Errorf("max grain size must be > 0: %d", c.MaxGrainSize)
	}
	// A grain plus one block must fit in the ring so the read region is not
	// overwritten while the grain is sampled.
	if c.BufferSize < c.MaxGrainSize+c.BlockSize {
		return fmt.Errorf("buffer size %d must hold max grain size %d plus one block %d",
			c.BufferSize, c.MaxGrainSize, c.BlockSize)
	}
	if c.ReadTaps <= 0 || c.TableSize <= 0 || c.Voices <= 0 || c.EnvelopeCacheSize <= 0 {
		return fmt.Errorf("taps, table size, voices and cache size must be > 0: %d %d %d %d",
			c.ReadTaps, c.TableSize, c.Voices, c.EnvelopeCacheSize)
	}
	if c.PreDelay < 0 {
		return fmt.Errorf("pre-delay must be >= 0: %d", c.PreDelay)
	}
	return nil
}
