package main

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/algo-granular/dsp/granular"
	"github.com/cwbudde/algo-granular/stats/level"
)

func testOptions() options {
	return options{
		sampleRate: 48000,
		blockSize:  64,
		bufferSize: 1 << 14,
		voices:     8,
		maxGrain:   4096,
		seed:       1,
		source:     "sine",
		freq:       440,
	}
}

func TestParseBinding(t *testing.T) {
	b, err := parseBinding("3:74=gransize:64:8000")
	if err != nil {
		t.Fatal(err)
	}
	if b.Channel != 3 || b.Controller != 74 || b.Parameter != "gransize" || b.Lo != 64 || b.Hi != 8000 {
		t.Fatalf("got %+v", b)
	}

	bad := []string{
		"",
		"3:74",
		"74=gransize:0:1",
		"16:1=gransize:0:1",
		"0:128=gransize:0:1",
		"0:1=gransize:0",
		"0:1=:0:1",
		"0:1=gransize:x:1",
	}
	for _, v := range bad {
		if _, err := parseBinding(v); err == nil {
			t.Errorf("parseBinding(%q) succeeded", v)
		}
	}
}

func TestBindingListFlag(t *testing.T) {
	var l bindingList
	if err := l.Set("0:1=gransize:0:100"); err != nil {
		t.Fatal(err)
	}
	if err := l.Set("1:2=speed:0.5:2"); err != nil {
		t.Fatal(err)
	}
	if got, want := l.String(), "0:1=gransize:0:100,1:2=speed:0.5:2"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestMIDIFlagsNeedPlay(t *testing.T) {
	tests := []struct {
		name    string
		play    bool
		port    string
		cc      string
		wantErr bool
	}{
		{name: "offline", wantErr: false},
		{name: "offline with port", port: "launch", wantErr: true},
		{name: "offline with binding", cc: "0:1=gransize:0:1", wantErr: true},
		{name: "play with both", play: true, port: "launch", cc: "0:1=gransize:0:1", wantErr: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := testOptions()
			o.play = tc.play
			o.midiPort = tc.port
			if tc.cc != "" {
				if err := o.bindings.Set(tc.cc); err != nil {
					t.Fatal(err)
				}
			}
			if err := o.validate(); (err != nil) != tc.wantErr {
				t.Fatalf("validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				if err := run(o); err == nil {
					t.Fatal("run accepted MIDI flags without -play")
				}
			}
		})
	}
}

func TestSources(t *testing.T) {
	for _, name := range []string{"sine", "noise", "pulse"} {
		t.Run(name, func(t *testing.T) {
			src, err := newSource(name, 480, 48000, 7)
			if err != nil {
				t.Fatal(err)
			}
			buf := make([]float64, 200)
			src.Fill(buf)
			peak := 0.0
			for _, v := range buf {
				if math.IsNaN(v) || math.Abs(v) > 1 {
					t.Fatalf("sample %v out of range", v)
				}
				peak = max(peak, math.Abs(v))
			}
			if peak == 0 {
				t.Fatal("source is silent")
			}
		})
	}

	if _, err := newSource("square", 480, 48000, 1); err == nil {
		t.Fatal("unknown source accepted")
	}
	if _, err := newSource("sine", 30000, 48000, 1); err == nil {
		t.Fatal("frequency above Nyquist accepted")
	}
}

func TestPulsePeriod(t *testing.T) {
	src, _ := newSource("pulse", 4800, 48000, 1)
	buf := make([]float64, 25)
	src.Fill(buf)
	for i, v := range buf {
		want := 0.0
		if i%10 == 0 {
			want = 1
		}
		if v != want {
			t.Fatalf("buf[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestStreamMatchesRender(t *testing.T) {
	o := testOptions()

	e1, err := newEngine(o)
	if err != nil {
		t.Fatal(err)
	}
	src1, _ := newSource(o.source, o.freq, 48000, o.seed)
	want, err := render(e1, src1, o.blockSize, 1024)
	if err != nil {
		t.Fatal(err)
	}

	e2, _ := newEngine(o)
	src2, _ := newSource(o.source, o.freq, 48000, o.seed)
	s := newStream(e2, src2, o.blockSize)

	// Odd chunk sizes cross block boundaries and drop the partial frame.
	raw := make([]byte, 0, 4096)
	chunk := make([]byte, 37*4+3)
	for len(raw) < 4096 {
		n, err := s.Read(chunk[:min(len(chunk), 4096-len(raw)+3)])
		if err != nil {
			t.Fatal(err)
		}
		if n%4 != 0 {
			t.Fatalf("Read returned partial frame: %d", n)
		}
		raw = append(raw, chunk[:n]...)
	}
	if got := s.Level().Length; got != 1024 {
		t.Fatalf("metered %d frames, want 1024", got)
	}
	for i := range 1024 {
		got := math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		if got != float32(want[i]) {
			t.Fatalf("frame %d: got %v want %v", i, got, float32(want[i]))
		}
	}
	if s.Err() != nil {
		t.Fatal(s.Err())
	}
}

func TestWriteRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.f32")
	if err := writeRaw(path, []float64{0, 0.5, -1}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 12 {
		t.Fatalf("len = %d", len(data))
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(data[4:])); v != 0.5 {
		t.Fatalf("second frame = %v", v)
	}
}

func TestNewEngineAppliesPreset(t *testing.T) {
	o := testOptions()
	path := filepath.Join(t.TempDir(), "p.yaml")
	data := "name: test\nparameters:\n  gransize:\n    offset: 300\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	o.presetPath = path

	e, err := newEngine(o)
	if err != nil {
		t.Fatal(err)
	}
	info, err := e.Controls().Info(granular.ParamGrainSize)
	if err != nil {
		t.Fatal(err)
	}
	if info.Offset != 300 || len(info.Modulators) != 0 {
		t.Fatalf("gransize = %+v", info)
	}

	o.presetPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := newEngine(o); err == nil {
		t.Fatal("missing preset accepted")
	}
}

func TestReport(t *testing.T) {
	o := testOptions()
	e, err := newEngine(o)
	if err != nil {
		t.Fatal(err)
	}
	src, _ := newSource("noise", 100, 48000, 1)
	out, err := render(e, src, o.blockSize, 48000)
	if err != nil {
		t.Fatal(err)
	}

	var m level.Meter
	m.Update(out)
	r := report(e, m.Result(), time.Second)
	for _, want := range []string{"engine", "parameters", "gransize", "lfo1", "fetched", "dBFS", "realtime"} {
		if !strings.Contains(r, want) {
			t.Errorf("report lacks %q:\n%s", want, r)
		}
	}
}
