package sh

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"dwicsd/pkg/dirs"
)

// ToRH converts zonal coefficients of an axisymmetric kernel into rotational
// harmonics by dividing each degree by the zonal basis value at the pole.
func ToRH(zsh []float64) []float64 {
	rh := make([]float64, len(zsh))
	for i, v := range zsh {
		rh[i] = v / ZonalAtPole(2*i)
	}
	return rh
}

// FromRH is the inverse of ToRH.
func FromRH(rh []float64) []float64 {
	zsh := make([]float64, len(rh))
	for i, v := range rh {
		zsh[i] = v * ZonalAtPole(2*i)
	}
	return zsh
}

// Convolve applies the axisymmetric kernel rh to coeffs in place: every
// coefficient of degree l is scaled by rh[l/2]. Degrees above the kernel's
// band limit, 2·(len(rh)-1), are zeroed. Coefficients of different (l, m)
// are never mixed.
func Convolve(coeffs, rh []float64) []float64 {
	lmax := LforN(len(coeffs))
	for l := 0; l <= lmax; l += 2 {
		block := coeffs[Index(l, -l) : Index(l, l)+1]
		if l/2 < len(rh) {
			floats.Scale(rh[l/2], block)
		} else {
			for i := range block {
				block[i] = 0
			}
		}
	}
	return coeffs
}

// ConvolveTo writes the convolution of coeffs with rh into dst, allocating
// when dst is nil, and returns it. coeffs is left untouched.
func ConvolveTo(dst, coeffs, rh []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(coeffs))
	}
	copy(dst, coeffs)
	return Convolve(dst[:len(coeffs)], rh)
}

// Power returns, per even degree, the power Σ_m c_lm² / (4π) of coeffs.
func Power(coeffs []float64) []float64 {
	lmax := LforN(len(coeffs))
	if lmax < 0 {
		return nil
	}
	p := make([]float64, ZNforL(lmax))
	for l := 0; l <= lmax; l += 2 {
		block := coeffs[Index(l, -l) : Index(l, l)+1]
		p[l/2] = floats.Dot(block, block) / (4 * math.Pi)
	}
	return p
}

// Value evaluates the SH series coeffs at direction d.
func Value(coeffs []float64, d dirs.Direction) float64 {
	lmax := LforN(len(coeffs))
	if lmax < 0 {
		return 0
	}
	n := NforL(lmax)
	row := make([]float64, n)
	fillRow(row, make([]float64, legendreSize(lmax)), lmax, d)
	return floats.Dot(row, coeffs[:n])
}
