// Package control holds named, modulatable parameters and the modulators
// that drive them.
//
// A Manager owns an ordered registry of parameters and a bank of named
// modulators. Once per audio block Perform advances every modulator and then
// evaluates every parameter as
//
//	clamp(offset + Σ amount_i × output_i, min, max)
//
// over NumSlots modulation slots. Control operations may run on another
// goroutine; Perform never waits for them.
package control
