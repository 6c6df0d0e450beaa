package sh

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"dwicsd/pkg/dirs"
)

func TestNforLRoundTrip(t *testing.T) {
	for l := 0; l <= 20; l += 2 {
		assert.Equal(t, l, LforN(NforL(l)), "lmax %d", l)
		assert.Equal(t, l, ZLforN(ZNforL(l)), "lmax %d", l)
	}
	assert.Equal(t, -1, LforN(0))
	assert.Equal(t, -1, ZLforN(0))
	assert.Equal(t, 0, LforN(5))
	assert.Equal(t, 2, LforN(14))
	assert.Equal(t, 45, NforL(8))
}

func TestIndexBijection(t *testing.T) {
	lmax := 10
	seen := make([]bool, NforL(lmax))
	for l := 0; l <= lmax; l += 2 {
		for m := -l; m <= l; m++ {
			i := Index(l, m)
			require.Less(t, i, len(seen))
			assert.False(t, seen[i], "index %d reused", i)
			seen[i] = true
			assert.Equal(t, l, DegreeOf(i))
		}
	}
	for i, ok := range seen {
		assert.True(t, ok, "index %d unused", i)
	}
}

func TestCheckLmax(t *testing.T) {
	assert.NoError(t, CheckLmax(0))
	assert.NoError(t, CheckLmax(8))
	assert.Error(t, CheckLmax(-2))
	assert.Error(t, CheckLmax(3))
}

func TestMatrixKnownValues(t *testing.T) {
	set := dirs.Set{
		{Z: 1},
		{X: 1},
		dirs.Direction{X: 1, Z: 1}.Normalize(),
	}
	a, err := Matrix(set, 2)
	require.NoError(t, err)
	r, c := a.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 6, c)

	y00 := 1 / math.Sqrt(4*math.Pi)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, y00, a.At(i, Index(0, 0)), 1e-12)
	}

	// Y_20 at the pole
	assert.InDelta(t, math.Sqrt(5/(4*math.Pi)), a.At(0, Index(2, 0)), 1e-12)
	// Y_22 ∝ x² - y² at +x
	assert.InDelta(t, 0.25*math.Sqrt(15/math.Pi), a.At(1, Index(2, 2)), 1e-12)
	assert.InDelta(t, 0, a.At(1, Index(2, -2)), 1e-12)
	// Y_21 ∝ xz
	assert.InDelta(t, 0.5*math.Sqrt(15/math.Pi)*0.5, a.At(2, Index(2, 1)), 1e-12)

	_, err = Matrix(set, 3)
	assert.Error(t, err)
	_, err = Matrix(nil, 2)
	assert.Error(t, err)
}

func TestTransformFullRank(t *testing.T) {
	for _, lmax := range []int{0, 2, 4, 6, 8} {
		set := dirs.Fibonacci(NforL(lmax) + 15)
		tr, err := NewTransform(set, lmax)
		require.NoError(t, err)
		require.True(t, IsFinite(tr.ISHT()), "lmax %d", lmax)

		var id mat.Dense
		id.Mul(tr.ISHT(), tr.SHT())
		n := NforL(lmax)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if i == j {
					want = 1
				}
				assert.InDelta(t, want, id.At(i, j), 1e-8)
			}
		}

		// Amplitudes → coefficients recovers the series exactly
		coeffs := make([]float64, n)
		for i := range coeffs {
			coeffs[i] = math.Sin(float64(i + 1))
		}
		back := tr.Coefficients(tr.Amplitudes(coeffs))
		assert.InDeltaSlice(t, coeffs, back, 1e-8)
		assert.Equal(t, lmax, tr.Lmax())
	}
}

func TestTransformRankDeficient(t *testing.T) {
	t.Run("TooFewDirections", func(t *testing.T) {
		tr, err := NewTransform(dirs.Fibonacci(20), 8)
		require.NoError(t, err)
		assert.False(t, IsFinite(tr.ISHT()))
	})

	t.Run("Equatorial", func(t *testing.T) {
		set := make(dirs.Set, 60)
		for i := range set {
			set[i] = dirs.FromAzEl(2*math.Pi*float64(i)/60, math.Pi/2)
		}
		tr, err := NewTransform(set, 4)
		require.NoError(t, err)
		assert.False(t, IsFinite(tr.ISHT()))

		a, err := Matrix(set, 4)
		require.NoError(t, err)
		assert.True(t, IsFinite(DampedPseudoInverse(a, 1e-3)))
	})
}

func TestDampedPseudoInverse(t *testing.T) {
	a, err := Matrix(dirs.Fibonacci(40), 4)
	require.NoError(t, err)

	plain := PseudoInverse(a)
	nearly := DampedPseudoInverse(a, 1e-12)
	assert.True(t, mat.EqualApprox(plain, nearly, 1e-6))

	// Matches the normal-equations form (AᵀA + δI)⁻¹Aᵀ
	damping := 0.05
	damped := DampedPseudoInverse(a, damping)

	var sv mat.SVD
	require.True(t, sv.Factorize(a, mat.SVDNone))
	smax := sv.Values(nil)[0]

	var ata mat.SymDense
	ata.SymOuterK(1, a.T())
	_, c := a.Dims()
	for i := 0; i < c; i++ {
		ata.SetSym(i, i, ata.At(i, i)+damping*smax*smax)
	}
	var chol mat.Cholesky
	require.True(t, chol.Factorize(&ata))
	var want mat.Dense
	require.NoError(t, chol.SolveTo(&want, a.T()))
	assert.True(t, mat.EqualApprox(&want, damped, 1e-8))
}

func TestZMatrixMatchesZonalColumns(t *testing.T) {
	set := dirs.Fibonacci(30)
	full, err := Matrix(set, 6)
	require.NoError(t, err)
	z, err := ZMatrix(set, 6)
	require.NoError(t, err)
	for i := range set {
		for l := 0; l <= 6; l += 2 {
			assert.InDelta(t, full.At(i, Index(l, 0)), z.At(i, l/2), 1e-12)
		}
	}
}

func TestZDerivMatrix(t *testing.T) {
	const h = 1e-6
	lmax := 8
	for _, el := range []float64{0.2, 0.9, 1.4, 2.5} {
		set := dirs.Set{dirs.FromAzEl(0.3, el)}
		deriv, err := ZDerivMatrix(set, lmax)
		require.NoError(t, err)

		plus, _ := ZMatrix(dirs.Set{dirs.FromAzEl(0.3, el+h)}, lmax)
		minus, _ := ZMatrix(dirs.Set{dirs.FromAzEl(0.3, el-h)}, lmax)
		for j := 0; j < ZNforL(lmax); j++ {
			fd := (plus.At(0, j) - minus.At(0, j)) / (2 * h)
			assert.InDelta(t, fd, deriv.At(0, j), 1e-5, "el %g degree %d", el, 2*j)
		}
	}
}

func TestRHRoundTrip(t *testing.T) {
	zsh := []float64{1.2, -0.5, 0.25, -0.1}
	assert.InDeltaSlice(t, zsh, FromRH(ToRH(zsh)), 1e-12)
	assert.InDelta(t, 1.2*math.Sqrt(4*math.Pi), ToRH(zsh)[0], 1e-12)
}

func TestConvolveIsPerDegreeScaling(t *testing.T) {
	lmax := 6
	coeffs := make([]float64, NforL(lmax))
	for i := range coeffs {
		coeffs[i] = float64(i) - 7.5
	}

	ones := ConvolveTo(nil, coeffs, []float64{1, 1, 1, 1})
	assert.Equal(t, coeffs, ones)

	zeros := ConvolveTo(nil, coeffs, []float64{0, 0, 0, 0})
	for _, v := range zeros {
		assert.Equal(t, 0.0, v)
	}

	rh := []float64{2, 3, 5, 7}
	out := ConvolveTo(nil, coeffs, rh)
	for i := range coeffs {
		assert.Equal(t, coeffs[i]*rh[DegreeOf(i)/2], out[i])
	}

	// Degrees beyond the kernel are zeroed; the input is untouched
	short := ConvolveTo(nil, coeffs, []float64{1, 1})
	for i := range coeffs {
		if DegreeOf(i) > 2 {
			assert.Equal(t, 0.0, short[i])
		} else {
			assert.Equal(t, coeffs[i], short[i])
		}
	}
	assert.Equal(t, -7.5, coeffs[0])
}

func TestConvolveDeltaGivesKernel(t *testing.T) {
	lmax := 8
	pole, err := Matrix(dirs.Set{{Z: 1}}, lmax)
	require.NoError(t, err)
	delta := mat.Row(nil, 0, pole)

	zsh := []float64{0.9, -0.4, 0.15, -0.05, 0.01}
	out := Convolve(delta, ToRH(zsh))
	for l := 0; l <= lmax; l += 2 {
		for m := -l; m <= l; m++ {
			want := 0.0
			if m == 0 {
				want = zsh[l/2]
			}
			assert.InDelta(t, want, out[Index(l, m)], 1e-12)
		}
	}
}

func TestValueAndPower(t *testing.T) {
	set := dirs.Fibonacci(25)
	a, err := Matrix(set, 4)
	require.NoError(t, err)
	coeffs := make([]float64, NforL(4))
	for i := range coeffs {
		coeffs[i] = math.Cos(float64(3 * i))
	}
	for i, d := range set {
		want := mat.Dot(a.RowView(i), mat.NewVecDense(len(coeffs), coeffs))
		assert.InDelta(t, want, Value(coeffs, d), 1e-12)
	}

	p := Power([]float64{1, 0, 0, 0, 0, 0})
	require.Len(t, p, 2)
	assert.InDelta(t, 1/(4*math.Pi), p[0], 1e-12)
	assert.Equal(t, 0.0, p[1])
	assert.Nil(t, Power(nil))
}

// deltaAt returns the lmax-truncated SH series of a spike along d.
func deltaAt(t *testing.T, d dirs.Direction, lmax int) []float64 {
	a, err := Matrix(dirs.Set{d}, lmax)
	require.NoError(t, err)
	return mat.Row(nil, 0, a)
}

func TestPeakFinder(t *testing.T) {
	pf, err := NewPeakFinder(dirs.Fibonacci(1000), 8, 6)
	require.NoError(t, err)

	t.Run("SingleFibre", func(t *testing.T) {
		d := dirs.FromAzEl(0.7, 0.9)
		peaks := pf.Find(deltaAt(t, d, 8), 3, 0)
		require.NotEmpty(t, peaks)
		assert.Less(t, peaks[0].Direction.Angle(d), 0.5*math.Pi/180)
		assert.InDelta(t, Value(deltaAt(t, d, 8), d), peaks[0].Amplitude, 1e-6)
	})

	t.Run("Crossing", func(t *testing.T) {
		d1 := dirs.FromAzEl(0.2, 0.5)
		d2 := dirs.FromAzEl(0.2, 0.5+math.Pi/2)
		a := deltaAt(t, d1, 8)
		b := deltaAt(t, d2, 8)
		for i := range a {
			a[i] = a[i] + 0.6*b[i]
		}
		peaks := pf.Find(a, 2, 0)
		require.Len(t, peaks, 2)
		assert.Less(t, peaks[0].Direction.Angle(d1), 2*math.Pi/180)
		assert.Less(t, peaks[1].Direction.Angle(d2), 2*math.Pi/180)
		assert.Greater(t, peaks[0].Amplitude, peaks[1].Amplitude)
	})

	_, err = NewPeakFinder(dirs.Fibonacci(10), 8, 0)
	assert.Error(t, err)
}
