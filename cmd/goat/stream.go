package main

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-granular/dsp/granular"
	"github.com/cwbudde/algo-granular/stats/level"
)

// stream pulls blocks through the engine on demand and encodes them as
// mono float32 little-endian frames. Read runs on the audio goroutine.
type stream struct {
	e   *granular.Engine
	src source
	buf []float64
	pos int

	mu    sync.Mutex
	meter level.Meter
	err   atomic.Pointer[error]
}

func newStream(e *granular.Engine, src source, blockSize int) *stream {
	return &stream{
		e:   e,
		src: src,
		buf: make([]float64, blockSize),
		pos: blockSize,
	}
}

// Read fills p with whole frames. A processing error turns the rest of the
// stream into silence and is reported by Err.
func (s *stream) Read(p []byte) (int, error) {
	n := 0
	for len(p)-n >= 4 {
		if s.pos == len(s.buf) {
			s.next()
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(float32(s.buf[s.pos])))
		s.pos++
		n += 4
	}
	return n, nil
}

func (s *stream) next() {
	s.pos = 0
	if s.err.Load() != nil {
		clear(s.buf)
		return
	}
	s.src.Fill(s.buf)
	if err := s.e.Process(s.buf, s.buf); err != nil {
		s.err.CompareAndSwap(nil, &err)
		clear(s.buf)
	}
	s.mu.Lock()
	s.meter.Update(s.buf)
	s.mu.Unlock()
}

// Level returns the output level of every block processed so far.
func (s *stream) Level() level.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meter.Result()
}

// Err returns the first processing error, if any.
func (s *stream) Err() error {
	if err := s.err.Load(); err != nil {
		return *err
	}
	return nil
}

// render processes frames samples of src offline in blocks of blockSize.
func render(e *granular.Engine, src source, blockSize, frames int) ([]float64, error) {
	out := make([]float64, frames)
	for start := 0; start < frames; start += blockSize {
		block := out[start:min(start+blockSize, frames)]
		src.Fill(block)
		if err := e.Process(block, block); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func writeRaw(path string, samples []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	var frame [4]byte
	for _, v := range samples {
		binary.LittleEndian.PutUint32(frame[:], math.Float32bits(float32(v)))
		if _, err := w.Write(frame[:]); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
