// Package sh implements the real, even-degree spherical harmonic (SH) basis
// used to represent fibre orientation distributions, its axisymmetric (zonal,
// ZSH) specialisation used for response functions, and the rotational
// harmonic (RH) form under which spherical convolution becomes a per-degree
// scaling.
//
// Coefficients are stored flat, degree by degree, with orders -l..l inside
// each even degree l. The basis carries no Condon-Shortley phase; orders
// m > 0 use cos(mφ), m < 0 use sin(|m|φ), and both carry a √2 factor so the
// real basis is orthonormal over the sphere.
package sh

import (
	"fmt"
	"math"
)

// NforL returns the number of SH coefficients for an even maximum degree.
func NforL(lmax int) int {
	return (lmax + 1) * (lmax + 2) / 2
}

// LforN returns the largest even lmax whose coefficient count fits in n,
// or -1 when n is zero.
func LforN(n int) int {
	if n < 1 {
		return -1
	}
	l := 0
	for NforL(l+2) <= n {
		l += 2
	}
	return l
}

// Index returns the flat position of coefficient (l, m).
func Index(l, m int) int {
	return l*(l+1)/2 + m
}

// DegreeOf returns the degree l of the coefficient stored at flat index i.
func DegreeOf(i int) int {
	l := 0
	for NforL(l) <= i {
		l += 2
	}
	return l
}

// ZNforL returns the number of zonal coefficients for an even maximum degree.
func ZNforL(lmax int) int {
	return lmax/2 + 1
}

// ZLforN returns the maximum degree represented by n zonal coefficients,
// or -1 when n is zero.
func ZLforN(n int) int {
	if n < 1 {
		return -1
	}
	return 2 * (n - 1)
}

// CheckLmax returns an error unless lmax is even and non-negative.
func CheckLmax(lmax int) error {
	if lmax < 0 {
		return fmt.Errorf("lmax must be non-negative, got %d", lmax)
	}
	if lmax%2 != 0 {
		return fmt.Errorf("lmax must be even, got %d", lmax)
	}
	return nil
}

// legendreIndex addresses the packed table filled by legendre, which holds
// every degree (odd ones included, as the recurrence needs them) and
// orders 0..l.
func legendreIndex(l, m int) int {
	return l*(l+1)/2 + m
}

// legendreSize returns the table length needed by legendre for lmax.
func legendreSize(lmax int) int {
	return (lmax + 1) * (lmax + 2) / 2
}

// legendre fills p with the orthonormalised associated Legendre functions
// sqrt((2l+1)/(4π) (l-m)!/(l+m)!) P_l^m(x) for 0 ≤ m ≤ l ≤ lmax, without the
// Condon-Shortley phase.
func legendre(p []float64, lmax int, x float64) {
	s := math.Sqrt(math.Max(0, 1-x*x))
	pmm := 1 / math.Sqrt(4*math.Pi)
	for m := 0; m <= lmax; m++ {
		if m > 0 {
			pmm *= s * math.Sqrt(float64(2*m+1)/float64(2*m))
		}
		p[legendreIndex(m, m)] = pmm
		if m == lmax {
			break
		}
		p[legendreIndex(m+1, m)] = x * math.Sqrt(float64(2*m+3)) * pmm
		fm := float64(m)
		for l := m + 2; l <= lmax; l++ {
			fl := float64(l)
			a := math.Sqrt((4*fl*fl - 1) / (fl*fl - fm*fm))
			b := math.Sqrt(((fl-1)*(fl-1) - fm*fm) / (4*(fl-1)*(fl-1) - 1))
			p[legendreIndex(l, m)] = a * (x*p[legendreIndex(l-1, m)] - b*p[legendreIndex(l-2, m)])
		}
	}
}

// ZonalAtPole returns the value of the m = 0 basis function of degree l at
// elevation zero.
func ZonalAtPole(l int) float64 {
	return math.Sqrt(float64(2*l+1) / (4 * math.Pi))
}
