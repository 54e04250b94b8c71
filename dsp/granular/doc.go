// Package granular composes the delay line, grain table, envelope cache,
// synthesizer and control manager into a real-time granular delay.
//
// The host calls Engine.Process once per audio block. Each block runs, in
// order: modulators and parameters, recording, the fetch decision, grain
// aging, at most one activation and the overlap-add output. Process never
// allocates and never fails because of a full table, pool or cache; those
// events are counted in Stats.
//
// The control surface (Parameter, Attach, Detach, SetAmount, SetOffset,
// ResetParameter and the Scheduler setters) may be used from another
// goroutine while Process runs.
package granular
