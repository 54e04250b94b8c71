// Package interp provides the fractional-read interpolators used by the
// recording ring when grains are played back at a speed other than 1.
//
//   - [Linear2]:  2-point linear interpolation (default)
//   - [Hermite4]: 4-point cubic Hermite
//
// The [Mode] enum selects the interpolator at construction time of a
// [delay.Line].
package interp
