// Package fixed provides the Q16.16 fixed-point scalar format used
// throughout the accelerator model, along with the Point and Plane
// value types built on it.
//
// Values are carried in 64 bits so that intermediate products have double
// the precision of the 32-bit storage format. Conversion back to the
// storage format saturates rather than wraps.
package fixed

import (
	"math"
	"math/bits"
)

// FracBits is the number of fractional bits in the Q16.16 format.
const FracBits = 16

// One is the fixed-point representation of 1.0.
const One Fixed = 1 << FracBits

// Storage-format limits. A stored scalar occupies 32 bits; working values
// in flight through the arithmetic units may exceed this range and are
// saturated on conversion.
const (
	Max32 Fixed = math.MaxInt32
	Min32 Fixed = math.MinInt32

	// HalfRange32 is half the magnitude of the 32-bit storage range. The
	// plane deriver rescales its outputs below this bound so downstream
	// squared-distance math cannot overflow.
	HalfRange32 Fixed = 1 << 30
)

// Fixed is a Q16.16 fixed-point scalar carried in 64 bits.
type Fixed int64

// FromFloat converts a float64 to fixed point, rounding to nearest.
func FromFloat(f float64) Fixed {
	return Fixed(math.Round(f * float64(One)))
}

// FromInt converts an integer to fixed point.
func FromInt(i int) Fixed {
	return Fixed(i) << FracBits
}

// FromBits32 widens a 32-bit stored scalar to a working value.
func FromBits32(w int32) Fixed {
	return Fixed(w)
}

// Float converts a fixed-point value to float64.
func (x Fixed) Float() float64 {
	return float64(x) / float64(One)
}

// Bits32 narrows a working value to the 32-bit storage format,
// saturating on overflow.
func (x Fixed) Bits32() int32 {
	return int32(Sat32(x))
}

// Abs returns the magnitude of x.
func (x Fixed) Abs() Fixed {
	if x < 0 {
		return -x
	}
	return x
}

// Sat32 clamps a working value to the 32-bit storage range.
func Sat32(x Fixed) Fixed {
	if x > Max32 {
		return Max32
	}
	if x < Min32 {
		return Min32
	}
	return x
}

// Mul multiplies two fixed-point values. The product is formed at 128
// bits and saturates at the 64-bit working range instead of wrapping.
func Mul(a, b Fixed) Fixed {
	neg := (a < 0) != (b < 0)
	ua := uint64(a)
	if a < 0 {
		ua = uint64(-a)
	}
	ub := uint64(b)
	if b < 0 {
		ub = uint64(-b)
	}
	hi, lo := bits.Mul64(ua, ub)
	// The shifted magnitude hi<<48 | lo>>16 only fits in a uint64 while
	// hi stays below 2^16; anything larger is already past the working
	// range.
	if hi>>FracBits != 0 {
		return satMag(neg, math.MaxUint64)
	}
	return satMag(neg, hi<<(64-FracBits)|lo>>FracBits)
}

// MulAdd computes a*b + c, the fused operation of the multiply-add units,
// with saturating accumulation.
func MulAdd(a, b, c Fixed) Fixed {
	return addSat(Mul(a, b), c)
}

// satMag converts a magnitude back to a signed working value, clamping at
// the 64-bit extremes.
func satMag(neg bool, mag uint64) Fixed {
	if neg {
		if mag >= 1<<63 {
			return math.MinInt64
		}
		return -Fixed(mag)
	}
	if mag > math.MaxInt64 {
		return math.MaxInt64
	}
	return Fixed(mag)
}

// addSat adds two working values, saturating instead of wrapping.
func addSat(a, b Fixed) Fixed {
	s := a + b
	if a > 0 && b > 0 && s < 0 {
		return math.MaxInt64
	}
	if a < 0 && b < 0 && s >= 0 {
		return math.MinInt64
	}
	return s
}

// Point is a fixed-point 3-vector.
type Point struct {
	X, Y, Z Fixed
}

// PointFromFloats builds a Point from float64 coordinates.
func PointFromFloats(x, y, z float64) Point {
	return Point{X: FromFloat(x), Y: FromFloat(y), Z: FromFloat(z)}
}

// Floats returns the point's coordinates as float64s.
func (p Point) Floats() (x, y, z float64) {
	return p.X.Float(), p.Y.Float(), p.Z.Float()
}

// Plane is a candidate plane in normal/offset form: Normal·P = Offset for
// every point P on the plane.
type Plane struct {
	Normal Point
	Offset Fixed
}

// IsZeroNormal reports whether the plane's normal is the zero vector,
// the degenerate-derivation signature.
func (pl Plane) IsZeroNormal() bool {
	return pl.Normal.X == 0 && pl.Normal.Y == 0 && pl.Normal.Z == 0
}
