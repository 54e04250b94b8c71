package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	return DC(1.0, n)
}

// Ramp returns start, start+1, ... as float64 values, which makes ring
// positions easy to identify in recorded audio.
func Ramp(start float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

// Blocks splits signal into consecutive blocks of blockSize samples.
// The final block may be shorter. The blocks alias signal.
func Blocks(signal []float64, blockSize int) [][]float64 {
	if blockSize <= 0 {
		return nil
	}
	blocks := make([][]float64, 0, (len(signal)+blockSize-1)/blockSize)
	for start := 0; start < len(signal); start += blockSize {
		end := start + blockSize
		if end > len(signal) {
			end = len(signal)
		}
		blocks = append(blocks, signal[start:end])
	}
	return blocks
}
