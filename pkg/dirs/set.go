// Package dirs provides direction sets on the unit sphere: the acquisition
// directions of a diffusion-weighted scan and the dense, quasi-uniform sets
// used to sample a reconstructed spherical function.
package dirs

import (
	"fmt"
	"math"
)

// DefaultCount is the number of directions in the default high-resolution
// constraint set returned by Default.
const DefaultCount = 300

// Direction is a unit vector in Cartesian coordinates.
type Direction struct {
	X, Y, Z float64
}

// FromAzEl returns the unit vector for an azimuth (angle in the xy-plane from
// +x) and an elevation (angle from the +z axis), both in radians.
func FromAzEl(az, el float64) Direction {
	sinEl := math.Sin(el)
	return Direction{
		X: sinEl * math.Cos(az),
		Y: sinEl * math.Sin(az),
		Z: math.Cos(el),
	}
}

// AzEl returns the azimuth and elevation of d. The elevation is measured from
// the +z axis and lies in [0, π].
func (d Direction) AzEl() (az, el float64) {
	az = math.Atan2(d.Y, d.X)
	el = math.Acos(math.Max(-1, math.Min(1, d.Z)))
	return az, el
}

// Norm returns the Euclidean length of d.
func (d Direction) Norm() float64 {
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Normalize returns d scaled to unit length. The zero vector is returned
// unchanged.
func (d Direction) Normalize() Direction {
	n := d.Norm()
	if n == 0 {
		return d
	}
	return Direction{d.X / n, d.Y / n, d.Z / n}
}

// Dot returns the inner product of d and o.
func (d Direction) Dot(o Direction) float64 {
	return d.X*o.X + d.Y*o.Y + d.Z*o.Z
}

// Cross returns the cross product d × o.
func (d Direction) Cross(o Direction) Direction {
	return Direction{
		X: d.Y*o.Z - d.Z*o.Y,
		Y: d.Z*o.X - d.X*o.Z,
		Z: d.X*o.Y - d.Y*o.X,
	}
}

// Scale returns d multiplied by s.
func (d Direction) Scale(s float64) Direction {
	return Direction{d.X * s, d.Y * s, d.Z * s}
}

// Add returns d + o.
func (d Direction) Add(o Direction) Direction {
	return Direction{d.X + o.X, d.Y + o.Y, d.Z + o.Z}
}

// Neg returns the antipode of d.
func (d Direction) Neg() Direction {
	return Direction{-d.X, -d.Y, -d.Z}
}

// Angle returns the axial angle between d and o in radians, treating
// antipodal vectors as the same orientation. The result lies in [0, π/2].
func (d Direction) Angle(o Direction) float64 {
	c := math.Abs(d.Normalize().Dot(o.Normalize()))
	return math.Acos(math.Min(1, c))
}

// Set is an ordered collection of unit vectors. Sets are shared read-only
// once built; nothing in this module mutates a Set it did not create.
type Set []Direction

// Len returns the number of directions.
func (s Set) Len() int { return len(s) }

// AzEl returns the azimuth and elevation of every direction, in order.
func (s Set) AzEl() (az, el []float64) {
	az = make([]float64, len(s))
	el = make([]float64, len(s))
	for i, d := range s {
		az[i], el[i] = d.AzEl()
	}
	return az, el
}

// FromAzElPairs builds a Set from parallel azimuth and elevation slices.
func FromAzElPairs(az, el []float64) (Set, error) {
	if len(az) != len(el) {
		return nil, fmt.Errorf("azimuth and elevation lengths differ: %d vs %d", len(az), len(el))
	}
	s := make(Set, len(az))
	for i := range az {
		s[i] = FromAzEl(az[i], el[i])
	}
	return s, nil
}

// Validate checks that the set is non-empty and that every entry is a finite,
// unit-length vector.
func (s Set) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("direction set is empty")
	}
	for i, d := range s {
		if math.IsNaN(d.X) || math.IsNaN(d.Y) || math.IsNaN(d.Z) ||
			math.IsInf(d.X, 0) || math.IsInf(d.Y, 0) || math.IsInf(d.Z, 0) {
			return fmt.Errorf("direction %d is not finite", i)
		}
		if math.Abs(d.Norm()-1) > 1e-6 {
			return fmt.Errorf("direction %d has length %g, expected 1", i, d.Norm())
		}
	}
	return nil
}

// Fibonacci returns n directions spread quasi-uniformly over the upper
// hemisphere (z > 0) on a golden-angle spiral. Because every function
// reconstructed here is antipodally symmetric, a hemisphere covers the whole
// sphere. The result is deterministic.
func Fibonacci(n int) Set {
	if n <= 0 {
		return nil
	}
	golden := math.Pi * (3 - math.Sqrt(5))
	s := make(Set, n)
	for i := 0; i < n; i++ {
		z := 1 - (float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - z*z)
		phi := golden * float64(i)
		s[i] = Direction{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
	}
	return s
}

// Default returns the fixed high-resolution constraint set.
func Default() Set {
	return Fibonacci(DefaultCount)
}
