// Package csd implements constrained spherical deconvolution: the estimation
// of a non-negative fibre orientation distribution (FOD), as a real SH
// series, from the diffusion-weighted signal of one voxel and a known
// axisymmetric single-fibre response.
//
// A Shared value holds every matrix that depends only on the response, the
// acquisition directions and the options. It is built once, never modified
// and read concurrently by any number of CSD solvers, one per worker.
package csd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"dwicsd/pkg/dirs"
	"dwicsd/pkg/response"
	"dwicsd/pkg/sh"
)

const (
	// negLambdaScale and normLambdaScale fix the relative strength of the
	// penalty terms against the data term.
	negLambdaScale  = 50.0
	normLambdaScale = 2e-4
)

// Shared holds the precomputed, read-only matrices of the deconvolution.
type Shared struct {
	lmax     int
	dataLmax int
	initLmax int
	niter    int

	rh        []float64
	threshold float64
	hrDirs    dirs.Set
	numDirs   int

	// inverse maps a signal to the initial estimate of the first
	// NforL(initLmax) coefficients.
	inverse *mat.Dense

	// forward predicts the signal from NforL(lmax) coefficients. Columns of
	// degree above dataLmax are zero: those coefficients are not fitted to
	// the data and are held only by the penalty terms.
	forward *mat.Dense

	// constraint evaluates the FOD at the high-resolution directions, scaled
	// by the non-negativity weight.
	constraint *mat.Dense

	// mtm is forwardᵀ·forward plus the minimum-norm term.
	mtm *mat.SymDense
}

// NewShared validates the inputs and builds the deconvolution matrices for a
// single-shell response sampled at the acquisition directions set. Every
// failure is a *ConfigurationError.
func NewShared(resp *response.Response, set dirs.Set, opts Options) (*Shared, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, configErrorf("", "response is missing")
	}
	if resp.NumShells() != 1 {
		return nil, configErrorf("", "response has %d shells, expected 1 for a single-shell acquisition", resp.NumShells())
	}
	if err := set.Validate(); err != nil {
		return nil, configErrorf("", "acquisition directions: %v", err)
	}

	hrDirs := opts.HRDirections
	if hrDirs == nil {
		hrDirs = dirs.Default()
	}
	if err := hrDirs.Validate(); err != nil {
		return nil, configErrorf("", "constraint directions: %v", err)
	}

	zsh := resp.Shell(0)
	if zsh[0] <= 0 {
		return nil, configErrorf("", "response DC term must be positive, got %g", zsh[0])
	}
	rh := sh.ToRH(zsh)

	s := &Shared{
		lmax:    opts.Lmax,
		niter:   opts.NIter,
		rh:      rh,
		hrDirs:  hrDirs,
		numDirs: len(set),
	}
	s.dataLmax = min(opts.Lmax, resp.Lmax())
	s.initLmax = min(opts.InitLmax, s.dataLmax)

	if err := s.initInverse(set, opts); err != nil {
		return nil, err
	}
	if err := s.initForward(set); err != nil {
		return nil, err
	}
	if err := s.initConstraint(zsh[0], opts); err != nil {
		return nil, err
	}
	if err := s.initNormal(opts); err != nil {
		return nil, err
	}
	return s, nil
}

func validateOptions(opts Options) error {
	if err := sh.CheckLmax(opts.Lmax); err != nil {
		return configErrorf("", "%v", err)
	}
	if err := sh.CheckLmax(opts.InitLmax); err != nil {
		return configErrorf("", "initialisation %v", err)
	}
	if opts.NIter < 1 {
		return configErrorf("", "iteration limit must be positive, got %d", opts.NIter)
	}
	if opts.NegLambda < 0 {
		return configErrorf("", "negativity weight must be non-negative, got %g", opts.NegLambda)
	}
	if opts.NormLambda < 0 {
		return configErrorf("", "minimum-norm weight must be non-negative, got %g", opts.NormLambda)
	}
	if opts.InitDamping < 0 {
		return configErrorf("", "initialisation damping must be non-negative, got %g", opts.InitDamping)
	}
	return nil
}

// tooHigh is the usual cause of a non-finite transform.
func tooHigh(lmax, n int) string {
	return fmt.Sprintf("non-finite values; lmax %d is probably too high for %d directions", lmax, n)
}

// initInverse builds the damped inverse model used for the starting
// estimate, with each row scaled by filter/RH for its degree.
func (s *Shared) initInverse(set dirs.Set, opts Options) error {
	a, err := sh.Matrix(set, s.initLmax)
	if err != nil {
		return configErrorf("inverse", "%v", err)
	}
	inv := sh.DampedPseudoInverse(a, opts.InitDamping)

	rows, _ := inv.Dims()
	for i := 0; i < rows; i++ {
		l := sh.DegreeOf(i)
		scale := 0.0
		if l/2 < len(opts.InitFilter) && opts.InitFilter[l/2] != 0 {
			scale = opts.InitFilter[l/2] / s.rh[l/2]
		}
		row := inv.RawRowView(i)
		for j := range row {
			row[j] *= scale
		}
	}
	if !sh.IsFinite(inv) {
		return configErrorf("inverse", "%s", tooHigh(s.initLmax, len(set)))
	}
	s.inverse = inv
	return nil
}

// initForward builds the forward model at dataLmax, scales each column by
// the response RH of its degree and zero-pads it to the full width.
func (s *Shared) initForward(set dirs.Set) error {
	t, err := sh.NewTransform(set, s.dataLmax)
	if err != nil {
		return configErrorf("forward", "%v", err)
	}
	if !sh.IsFinite(t.ISHT()) {
		return configErrorf("forward", "%s", tooHigh(s.dataLmax, len(set)))
	}

	nData := sh.NforL(s.dataLmax)
	m := mat.NewDense(len(set), sh.NforL(s.lmax), nil)
	for i := 0; i < len(set); i++ {
		src := t.SHT().RawRowView(i)
		dst := m.RawRowView(i)
		for j := 0; j < nData; j++ {
			dst[j] = src[j] * s.rh[sh.DegreeOf(j)/2]
		}
	}
	if !sh.IsFinite(m) {
		return configErrorf("forward", "%s", tooHigh(s.dataLmax, len(set)))
	}
	s.forward = m
	return nil
}

// initConstraint builds the high-resolution constraint matrix and scales it,
// along with the threshold, by one constant.
func (s *Shared) initConstraint(dc float64, opts Options) error {
	h, err := sh.Matrix(s.hrDirs, s.lmax)
	if err != nil {
		return configErrorf("constraint", "%v", err)
	}
	scale := opts.NegLambda * negLambdaScale * dc / float64(len(s.hrDirs))
	h.Scale(scale, h)
	if !sh.IsFinite(h) {
		return configErrorf("constraint", "%s", tooHigh(s.lmax, len(s.hrDirs)))
	}
	s.constraint = h
	s.threshold = opts.Threshold * scale
	return nil
}

// initNormal forms MᵀM, adds the minimum-norm term and checks that the
// result is positive definite so the unconstrained solve is well posed.
func (s *Shared) initNormal(opts Options) error {
	n := sh.NforL(s.lmax)
	mtm := mat.NewSymDense(n, nil)
	mtm.SymOuterK(1, s.forward.T())
	if opts.NormLambda > 0 {
		d := opts.NormLambda * normLambdaScale * mtm.At(0, 0)
		for i := 0; i < n; i++ {
			mtm.SetSym(i, i, mtm.At(i, i)+d)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(mtm); !ok {
		if s.lmax > s.dataLmax && opts.NormLambda == 0 {
			return configErrorf("normal", "singular: degrees above %d are not fitted to data and need a positive minimum-norm weight", s.dataLmax)
		}
		return configErrorf("normal", "not positive definite; lmax %d is probably too high for %d directions", s.dataLmax, s.numDirs)
	}
	s.mtm = mtm
	return nil
}

// Lmax returns the maximum degree of the estimated FOD.
func (s *Shared) Lmax() int { return s.lmax }

// DataLmax returns the highest degree fitted to the data.
func (s *Shared) DataLmax() int { return s.dataLmax }

// InitLmax returns the degree of the initial estimate.
func (s *Shared) InitLmax() int { return s.initLmax }

// NIter returns the iteration cap.
func (s *Shared) NIter() int { return s.niter }

// NumCoefficients returns the length of the FOD coefficient vector.
func (s *Shared) NumCoefficients() int { return sh.NforL(s.lmax) }

// NumDirections returns the expected signal length.
func (s *Shared) NumDirections() int { return s.numDirs }

// NumConstraints returns the number of high-resolution directions.
func (s *Shared) NumConstraints() int { return len(s.hrDirs) }

// HRDirections returns the constraint directions.
func (s *Shared) HRDirections() dirs.Set { return s.hrDirs }

// RH returns the rotational harmonics of the response.
func (s *Shared) RH() []float64 {
	out := make([]float64, len(s.rh))
	copy(out, s.rh)
	return out
}

// Threshold returns the constraint threshold in the scaled units of the
// constraint matrix.
func (s *Shared) Threshold() float64 { return s.threshold }

// Forward returns the zero-padded forward model.
func (s *Shared) Forward() mat.Matrix { return s.forward }

// Inverse returns the damped inverse model.
func (s *Shared) Inverse() mat.Matrix { return s.inverse }

// Constraint returns the scaled constraint matrix.
func (s *Shared) Constraint() mat.Matrix { return s.constraint }

// Normal returns MᵀM including the minimum-norm term.
func (s *Shared) Normal() mat.Symmetric { return s.mtm }
