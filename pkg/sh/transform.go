package sh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"dwicsd/pkg/dirs"
)

// Matrix builds the N × NforL(lmax) design matrix whose entry (i, Index(l,m))
// is the SH basis function (l, m) evaluated at direction i. Multiplying it by
// a coefficient vector gives amplitudes at the directions.
//
// The builder does not check the rank of the result; a degenerate or
// too-small direction set simply yields a rank-deficient matrix.
func Matrix(set dirs.Set, lmax int) (*mat.Dense, error) {
	if err := checkInputs(set, lmax); err != nil {
		return nil, err
	}
	n := NforL(lmax)
	a := mat.NewDense(len(set), n, nil)
	p := make([]float64, legendreSize(lmax))
	for i, d := range set {
		fillRow(a.RawRowView(i), p, lmax, d)
	}
	return a, nil
}

// fillRow writes the SH basis values at d into row, using p as Legendre
// scratch space.
func fillRow(row, p []float64, lmax int, d dirs.Direction) {
	az, el := d.AzEl()
	legendre(p, lmax, math.Cos(el))
	for l := 0; l <= lmax; l += 2 {
		row[Index(l, 0)] = p[legendreIndex(l, 0)]
	}
	for m := 1; m <= lmax; m++ {
		s, c := math.Sincos(float64(m) * az)
		s *= math.Sqrt2
		c *= math.Sqrt2
		l0 := m
		if l0%2 != 0 {
			l0++
		}
		for l := l0; l <= lmax; l += 2 {
			v := p[legendreIndex(l, m)]
			row[Index(l, m)] = v * c
			row[Index(l, -m)] = v * s
		}
	}
}

// ZMatrix builds the N × ZNforL(lmax) design matrix of the axisymmetric
// (m = 0) basis functions.
func ZMatrix(set dirs.Set, lmax int) (*mat.Dense, error) {
	if err := checkInputs(set, lmax); err != nil {
		return nil, err
	}
	a := mat.NewDense(len(set), ZNforL(lmax), nil)
	p := make([]float64, legendreSize(lmax))
	for i, d := range set {
		legendre(p, lmax, d.Normalize().Z)
		for l := 0; l <= lmax; l += 2 {
			a.Set(i, l/2, p[legendreIndex(l, 0)])
		}
	}
	return a, nil
}

// ZDerivMatrix builds the matrix of first derivatives of the m = 0 basis
// functions with respect to elevation, one row per direction.
func ZDerivMatrix(set dirs.Set, lmax int) (*mat.Dense, error) {
	if err := checkInputs(set, lmax); err != nil {
		return nil, err
	}
	a := mat.NewDense(len(set), ZNforL(lmax), nil)
	p := make([]float64, legendreSize(lmax+1))
	for i, d := range set {
		legendre(p, lmax+1, d.Normalize().Z)
		for l := 2; l <= lmax; l += 2 {
			// dY_l0/dθ = -sqrt(l(l+1)) Ȳ_l1
			a.Set(i, l/2, -math.Sqrt(float64(l*(l+1)))*p[legendreIndex(l, 1)])
		}
	}
	return a, nil
}

func checkInputs(set dirs.Set, lmax int) error {
	if len(set) == 0 {
		return fmt.Errorf("direction set is empty")
	}
	return CheckLmax(lmax)
}

// Transform pairs an SH design matrix with its pseudo-inverse, mapping
// coefficients to amplitudes at a direction set and back.
type Transform struct {
	lmax int
	sht  *mat.Dense
	isht *mat.Dense
}

// NewTransform builds the SH matrix for set at lmax together with its
// Moore-Penrose pseudo-inverse. A rank-deficient design produces a
// pseudo-inverse with non-finite entries; callers that need a usable inverse
// check it with IsFinite.
func NewTransform(set dirs.Set, lmax int) (*Transform, error) {
	a, err := Matrix(set, lmax)
	if err != nil {
		return nil, err
	}
	return &Transform{
		lmax: lmax,
		sht:  a,
		isht: PseudoInverse(a),
	}, nil
}

// Lmax returns the maximum degree of the transform.
func (t *Transform) Lmax() int { return t.lmax }

// SHT returns the coefficients → amplitudes matrix.
func (t *Transform) SHT() *mat.Dense { return t.sht }

// ISHT returns the amplitudes → coefficients matrix.
func (t *Transform) ISHT() *mat.Dense { return t.isht }

// Amplitudes evaluates coeffs at the transform's directions.
func (t *Transform) Amplitudes(coeffs []float64) []float64 {
	rows, _ := t.sht.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(t.sht, mat.NewVecDense(len(coeffs), coeffs))
	return out.RawVector().Data
}

// Coefficients fits SH coefficients to amplitudes in the least-squares sense.
func (t *Transform) Coefficients(amps []float64) []float64 {
	rows, _ := t.isht.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(t.isht, mat.NewVecDense(len(amps), amps))
	return out.RawVector().Data
}

// PseudoInverse returns the Moore-Penrose pseudo-inverse of a. Singular
// values at or below the numerical rank tolerance, and the implicit zero
// singular values of a matrix with more columns than rows, are taken as exact
// zeros and not truncated away, so a rank-deficient input yields non-finite
// entries.
func PseudoInverse(a mat.Matrix) *mat.Dense {
	return DampedPseudoInverse(a, 0)
}

// DampedPseudoInverse returns (AᵀA + δI)⁻¹Aᵀ with δ = damping·σ_max², computed
// from the SVD of a. With damping > 0 the result is always finite.
func DampedPseudoInverse(a mat.Matrix, damping float64) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(c, r, nil)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		fillNaN(out)
		return out
	}
	if r < c && damping <= 0 {
		fillNaN(out)
		return out
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	smax := floats.Max(s)
	tol := float64(max(r, c)) * eps * smax
	delta := damping * smax * smax
	inv := make([]float64, len(s))
	for i, sv := range s {
		switch {
		case damping > 0:
			inv[i] = sv / (sv*sv + delta)
		case sv <= tol:
			inv[i] = math.Inf(1)
		default:
			inv[i] = 1 / sv
		}
	}

	// pinv = V diag(inv) Uᵀ
	vr, vc := v.Dims()
	for i := 0; i < vr; i++ {
		floats.Mul(v.RawRowView(i)[:vc], inv)
	}
	out.Mul(&v, u.T())
	return out
}

const eps = 0x1p-52

func fillNaN(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)[:c]
		for j := range row {
			row[j] = math.NaN()
		}
	}
}

// IsFinite reports whether every entry of m is finite.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
