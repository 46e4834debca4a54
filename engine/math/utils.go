package math

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// RandF returns a random float in [low, high).
func RandF(r *rand.Rand, low, high float32) float32 {
	return low + r.Float32()*(high-low)
}

// RandUnitVec3 returns a random direction of length 1. Candidates outside
// the unit ball are rejected so the directions are uniformly distributed.
func RandUnitVec3(r *rand.Rand) Vec3 {
	for {
		v := Vec3{RandF(r, -1, 1), RandF(r, -1, 1), RandF(r, -1, 1)}
		l2 := v.LengthSquared()
		if l2 > 1.0 || l2 < K_FLOAT_EPSILON {
			continue
		}
		return v.Normalized()
	}
}
