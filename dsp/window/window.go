package window

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
	"github.com/meko-christian/algo-approx"
)

// Type identifies an envelope shape.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeHamming
	TypeBlackman
	TypeTriangle
	TypeTrapezoid
	TypeTukey
	TypeGauss
	TypeWelch
	TypeCosine
	TypeExpodec
	TypeRExpodec

	typeCount
)

var names = [typeCount]string{
	TypeRectangular: "rectangular",
	TypeHann:        "hann",
	TypeHamming:     "hamming",
	TypeBlackman:    "blackman",
	TypeTriangle:    "triangle",
	TypeTrapezoid:   "trapezoid",
	TypeTukey:       "tukey",
	TypeGauss:       "gauss",
	TypeWelch:       "welch",
	TypeCosine:      "cosine",
	TypeExpodec:     "expodec",
	TypeRExpodec:    "rexpodec",
}

var (
	hannCoeffs     = []float64{0.5, -0.5}
	hammingCoeffs  = []float64{0.54, -0.46}
	blackmanCoeffs = []float64{0.42, -0.5, 0.08}
)

// String returns the lower-case shape name.
func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return fmt.Sprintf("window(%d)", int(t))
	}
	return names[t]
}

// Valid reports whether t is a known shape.
func (t Type) Valid() bool {
	return t >= 0 && t < typeCount
}

// Types returns every known shape in declaration order.
func Types() []Type {
	out := make([]Type, typeCount)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// Parse maps a shape name (case-insensitive) to its Type.
func Parse(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errUnknownType, name)
}

// Params holds the shape parameters used by FillParams. It is a plain value
// so filling a curve never allocates.
type Params struct {
	// Alpha is the shape parameter: taper fraction for Tukey and Trapezoid,
	// width for Gauss, decay rate for Expodec and RExpodec.
	Alpha float64
	// Periodic selects the periodic form instead of the symmetric one.
	Periodic bool
}

// DefaultParams returns the shape parameters used when none are given.
func DefaultParams(t Type) Params {
	switch t {
	case TypeTukey, TypeTrapezoid:
		return Params{Alpha: 0.5}
	case TypeGauss:
		return Params{Alpha: 2.5}
	case TypeExpodec, TypeRExpodec:
		return Params{Alpha: 5}
	default:
		return Params{Alpha: 1}
	}
}

// Option configures window generation.
type Option func(*Params)

// WithAlpha configures the shape parameter.
func WithAlpha(v float64) Option {
	return func(p *Params) {
		if v >= 0 {
			p.Alpha = v
		}
	}
}

// WithPeriodic configures the periodic form instead of the symmetric one.
func WithPeriodic() Option {
	return func(p *Params) {
		p.Periodic = true
	}
}

// Generate returns a new curve of the given length.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}

	p := DefaultParams(t)
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}

	out := make([]float64, length)
	FillParams(t, out, p)
	return out
}

// FillParams writes the curve of shape t into dst, using len(dst) as the
// curve length. It does not allocate.
func FillParams(t Type, dst []float64, p Params) {
	n := len(dst)
	if n == 0 {
		return
	}
	for i := range dst {
		dst[i] = evalWindow(t, samplePosition(i, n, p.Periodic), p.Alpha)
	}
}

// Apply multiplies buf in-place by the selected window.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 {
		return
	}

	coeffs := Generate(t, len(buf), opts...)
	vecmath.MulBlockInPlace(buf, coeffs)
}

// ApplyCoefficientsInPlace multiplies samples with coefficients in place.
func ApplyCoefficientsInPlace(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return errMismatchedLength
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

// ApplyCoefficients writes samples*coeffs into dst.
func ApplyCoefficients(dst, samples, coeffs []float64) error {
	if len(samples) != len(coeffs) || len(dst) != len(samples) {
		return errMismatchedLength
	}

	vecmath.MulBlock(dst, samples, coeffs)

	return nil
}

func evalWindow(t Type, x, alpha float64) float64 {
	if x < 0 {
		x = 0
	}

	if x > 1 {
		x = 1
	}

	switch t {
	case TypeRectangular:
		return 1
	case TypeHann:
		return cosineFromCoeffs(x, hannCoeffs)
	case TypeHamming:
		return cosineFromCoeffs(x, hammingCoeffs)
	case TypeBlackman:
		return cosineFromCoeffs(x, blackmanCoeffs)
	case TypeTriangle:
		return 1 - math.Abs(2*x-1)
	case TypeTrapezoid:
		return trapezoidAt(x, alpha)
	case TypeTukey:
		return tukeyAt(x, alpha)
	case TypeGauss:
		v := (2*x - 1) * alpha
		return math.Exp(-math.Ln2 * v * v)
	case TypeWelch:
		d := x - 0.5
		return 1 - 4*d*d
	case TypeCosine:
		return math.Sin(math.Pi * x)
	case TypeExpodec:
		return expodecAt(x, alpha)
	case TypeRExpodec:
		return expodecAt(1-x, alpha)
	default:
		return 1
	}
}

func cosineFromCoeffs(x float64, coeffs []float64) float64 {
	phase := 2 * math.Pi * x

	sum := 0.0
	for k, c := range coeffs {
		sum += c * math.Cos(float64(k)*phase)
	}

	return sum
}

func samplePosition(n, size int, periodic bool) float64 {
	if size <= 1 {
		return 0.5
	}

	den := float64(size - 1)
	if periodic {
		den = float64(size)
	}

	return float64(n) / den
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return cosineFromCoeffs(x, hannCoeffs)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}

// trapezoidAt ramps linearly over alpha/2 of the length on each side.
func trapezoidAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha > 1 {
		alpha = 1
	}

	a := alpha / 2
	switch {
	case x < a:
		return x / a
	case x <= 1-a:
		return 1
	default:
		return (1 - x) / a
	}
}

// expodecAt decays from 1 at x=0 to exactly 0 at x=1.
func expodecAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1 - x
	}

	floor := approx.FastExp(-alpha)
	v := (approx.FastExp(-alpha*x) - floor) / (1 - floor)
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
