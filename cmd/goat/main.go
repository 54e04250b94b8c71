// Command goat runs the granular delay engine on a test signal.
//
// Usage:
//
//	goat [flags]
//
// By default it renders the signal offline and prints engine statistics.
// With -play the output is streamed to the default audio device, and with
// -midi control changes from an input port drive parameter offsets.
//
// Examples:
//
//	goat -duration 5
//	goat -preset patch.yaml -source noise -o out.f32
//	goat -play -midi launch -cc 0:74=gransize:64:8000
//	goat -dump-preset > patch.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/cwbudde/algo-granular/dsp/core"
	"github.com/cwbudde/algo-granular/dsp/granular"
	"github.com/cwbudde/algo-granular/midicc"
	"github.com/cwbudde/algo-granular/preset"
	"github.com/cwbudde/algo-granular/stats/level"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type options struct {
	sampleRate int
	blockSize  int
	bufferSize int
	voices     int
	maxGrain   int
	preDelay   int
	seed       int64
	presetPath string
	dumpPreset bool
	source     string
	freq       float64
	duration   float64
	outPath    string
	play       bool
	midiPort   string
	bindings   bindingList
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("goat: ")

	var o options
	flag.IntVar(&o.sampleRate, "rate", 48000, "sample rate in Hz")
	flag.IntVar(&o.blockSize, "block", 64, "processing block size in samples")
	flag.IntVar(&o.bufferSize, "buffer", 1<<17, "recording ring capacity in samples")
	flag.IntVar(&o.voices, "voices", 16, "concurrently playing grains")
	flag.IntVar(&o.maxGrain, "max-grain", 16384, "longest grain in samples")
	flag.IntVar(&o.preDelay, "predelay", 0, "samples a fetched grain waits before playback")
	flag.Int64Var(&o.seed, "seed", 1, "inter-onset random seed")
	flag.StringVar(&o.presetPath, "preset", "", "YAML preset file (default: built-in patch)")
	flag.BoolVar(&o.dumpPreset, "dump-preset", false, "print the active preset as YAML and exit")
	flag.StringVar(&o.source, "source", "sine", "test signal: sine, noise or pulse")
	flag.Float64Var(&o.freq, "freq", 220, "test signal frequency in Hz")
	flag.Float64Var(&o.duration, "duration", 2, "offline render length in seconds")
	flag.StringVar(&o.outPath, "o", "", "write offline output as raw float32 little-endian")
	flag.BoolVar(&o.play, "play", false, "stream to the default audio device until interrupted")
	flag.StringVar(&o.midiPort, "midi", "", "MIDI input port name (substring match) for -cc bindings, requires -play")
	flag.Var(&o.bindings, "cc", "controller binding ch:cc=param:lo:hi (repeatable, requires -play)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: goat [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the granular delay engine on a generated test signal.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  goat -duration 5\n")
		fmt.Fprintf(os.Stderr, "  goat -preset patch.yaml -source noise -o out.f32\n")
		fmt.Fprintf(os.Stderr, "  goat -play -midi launch -cc 0:74=gransize:64:8000\n")
	}
	flag.Parse()

	if err := run(o); err != nil {
		log.Fatal(err)
	}
}

func (o options) validate() error {
	if o.play {
		return nil
	}
	if o.midiPort != "" || len(o.bindings) > 0 {
		return errors.New("-midi and -cc need -play")
	}
	return nil
}

func run(o options) error {
	if err := o.validate(); err != nil {
		return err
	}
	e, err := newEngine(o)
	if err != nil {
		return err
	}

	if o.dumpPreset {
		data, err := preset.Marshal(preset.Capture(e))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	src, err := newSource(o.source, o.freq, float64(o.sampleRate), o.seed)
	if err != nil {
		return err
	}

	if o.play {
		return play(e, src, o)
	}

	start := time.Now()
	out, err := render(e, src, o.blockSize, int(o.duration*float64(o.sampleRate)))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if o.outPath != "" {
		if err := writeRaw(o.outPath, out); err != nil {
			return err
		}
	}
	var m level.Meter
	m.Update(out)
	fmt.Println(report(e, m.Result(), elapsed))
	return nil
}

func newEngine(o options) (*granular.Engine, error) {
	e, err := granular.New(
		core.WithSampleRate(float64(o.sampleRate)),
		core.WithBlockSize(o.blockSize),
		core.WithBufferSize(o.bufferSize),
		core.WithVoices(o.voices),
		core.WithMaxGrainSize(o.maxGrain),
		core.WithPreDelay(o.preDelay),
		core.WithSeed(o.seed),
	)
	if err != nil {
		return nil, err
	}

	p := preset.Default()
	if o.presetPath != "" {
		data, err := os.ReadFile(o.presetPath)
		if err != nil {
			return nil, err
		}
		if p, err = preset.Parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", o.presetPath, err)
		}
	}
	if err := p.Apply(e); err != nil {
		return nil, err
	}
	e.Reset()
	return e, nil
}

func play(e *granular.Engine, src source, o options) error {
	s := newStream(e, src, o.blockSize)
	p, err := newPlayer(o.sampleRate, s)
	if err != nil {
		return err
	}
	defer p.Close()

	if o.midiPort != "" {
		stop, err := listen(e, o)
		if err != nil {
			return err
		}
		defer stop()
	}

	p.Play()
	log.Printf("playing %s at %d Hz, ctrl-c to stop", o.source, o.sampleRate)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-sig:
			fmt.Println(report(e, s.Level(), 0))
			return s.Err()
		case <-tick.C:
			if err := s.Err(); err != nil {
				return err
			}
		}
	}
}

// listen opens the first input port whose name contains o.midiPort and
// routes its control changes through the -cc bindings.
func listen(e *granular.Engine, o options) (func(), error) {
	m := midicc.New(e)
	bindings := o.bindings
	if len(bindings) == 0 {
		bindings = bindingList{{Channel: 0, Controller: 1, Parameter: granular.ParamGrainSize, Lo: 0, Hi: float64(o.maxGrain)}}
	}
	for _, b := range bindings {
		if err := m.Bind(b.Channel, b.Controller, b.Parameter, b.Lo, b.Hi); err != nil {
			return nil, err
		}
	}

	ports := midi.GetInPorts()
	idx := slices.IndexFunc(ports, func(in drivers.In) bool {
		return strings.Contains(strings.ToLower(in.String()), strings.ToLower(o.midiPort))
	})
	if idx < 0 {
		midi.CloseDriver()
		return nil, fmt.Errorf("no MIDI input port matching %q", o.midiPort)
	}
	in := ports[idx]

	stop, err := midi.ListenTo(in, m.Listener(func(err error) { log.Print(err) }))
	if err != nil {
		midi.CloseDriver()
		return nil, err
	}
	log.Printf("listening on %s", in.String())
	return func() {
		stop()
		midi.CloseDriver()
	}, nil
}
