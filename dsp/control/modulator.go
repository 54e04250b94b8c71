package control

// Modulator produces one scalar per audio block.
//
// Advance is called once per block from the audio goroutine with the
// block's input samples; Output returns the value computed by the latest
// Advance. Implementations must not allocate in Advance.
type Modulator interface {
	Advance(in []float64, sampleRate float64)
	Output() float64
}
