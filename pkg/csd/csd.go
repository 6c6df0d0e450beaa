package csd

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// CSD is the per-voxel solver. It owns its working storage and is reused
// across voxels by calling Set for each new signal. A CSD must be driven by
// one goroutine at a time; create one per worker.
type CSD struct {
	shared *Shared

	// f is the current coefficient estimate.
	f *mat.VecDense
	// mtb is Mᵀ·signal, fixed for the current voxel.
	mtb *mat.VecDense
	// hrAmps holds the scaled amplitudes at the constraint directions.
	hrAmps *mat.VecDense

	active      []int
	previous    []int
	hasPrevious bool
	iterations  int

	work    *mat.SymDense
	rowBuf  []float64
	chol    mat.Cholesky
	signalV *mat.VecDense
}

// New returns a solver bound to shared.
func New(shared *Shared) *CSD {
	n := shared.NumCoefficients()
	return &CSD{
		shared:  shared,
		f:       mat.NewVecDense(n, nil),
		mtb:     mat.NewVecDense(n, nil),
		hrAmps:  mat.NewVecDense(shared.NumConstraints(), nil),
		active:  make([]int, 0, shared.NumConstraints()),
		work:    mat.NewSymDense(n, nil),
		signalV: mat.NewVecDense(shared.NumDirections(), nil),
	}
}

// Set loads a new voxel: the estimate is initialised from the damped inverse
// model (coefficients beyond its degree start at zero), the active-set
// history is cleared and Mᵀ·signal is computed once for the iterations that
// follow.
func (c *CSD) Set(signal []float64) error {
	s := c.shared
	if len(signal) != s.numDirs {
		return fmt.Errorf("csd: signal has %d values, expected %d", len(signal), s.numDirs)
	}
	for i, v := range signal {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NumericalError{Reason: fmt.Sprintf("signal value %d is not finite", i)}
		}
	}
	copy(c.signalV.RawVector().Data, signal)

	nInit, _ := s.inverse.Dims()
	c.f.Zero()
	start := c.f.SliceVec(0, nInit).(*mat.VecDense)
	start.MulVec(s.inverse, c.signalV)

	c.mtb.MulVec(s.forward.T(), c.signalV)

	c.active = c.active[:0]
	c.previous = c.previous[:0]
	c.hasPrevious = false
	c.iterations = 0
	return nil
}

// Iterate performs one active-set step and reports whether the solve has
// converged, which is when the set of constraint directions with amplitude
// below the threshold is exactly the set found by the previous call. The
// first call after Set therefore never reports convergence.
//
// When the set has changed, the penalised normal matrix is rebuilt from
// scratch, factorised and solved for a new estimate. A factorisation or
// solve that does not yield finite coefficients returns a *NumericalError.
func (c *CSD) Iterate() (bool, error) {
	s := c.shared
	c.iterations++

	c.hrAmps.MulVec(s.constraint, c.f)
	c.active = c.active[:0]
	amps := c.hrAmps.RawVector().Data
	for i, a := range amps {
		if a < s.threshold {
			c.active = append(c.active, i)
		}
	}

	if c.hasPrevious && equalIndices(c.active, c.previous) {
		return true, nil
	}

	c.work.CopySym(s.mtm)
	if k := len(c.active); k > 0 {
		_, n := s.constraint.Dims()
		if cap(c.rowBuf) < k*n {
			c.rowBuf = make([]float64, k*n)
		}
		rows := mat.NewDense(k, n, c.rowBuf[:k*n])
		for j, idx := range c.active {
			copy(rows.RawRowView(j), s.constraint.RawRowView(idx))
		}
		c.work.SymRankK(c.work, 1, rows.T())
	}

	if ok := c.chol.Factorize(c.work); !ok {
		return false, &NumericalError{Iteration: c.iterations, Reason: "normal matrix is not positive definite"}
	}
	if err := c.chol.SolveVecTo(c.f, c.mtb); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return false, &NumericalError{Iteration: c.iterations, Reason: err.Error()}
		}
	}
	for _, v := range c.f.RawVector().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, &NumericalError{Iteration: c.iterations, Reason: "solution is not finite"}
		}
	}

	c.previous = append(c.previous[:0], c.active...)
	c.hasPrevious = true
	return false, nil
}

func equalIndices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Coefficients returns a copy of the current estimate.
func (c *CSD) Coefficients() []float64 {
	out := make([]float64, c.f.Len())
	copy(out, c.f.RawVector().Data)
	return out
}

// ActiveSet returns a copy of the constraint directions found active by the
// last Iterate call.
func (c *CSD) ActiveSet() []int {
	out := make([]int, len(c.active))
	copy(out, c.active)
	return out
}

// Iterations returns the number of Iterate calls since the last Set.
func (c *CSD) Iterations() int { return c.iterations }

// Result is the outcome of a complete solve for one voxel.
type Result struct {
	Coefficients []float64
	// Iterations is the number of solving iterations performed before
	// convergence was detected, or NIter when the cap was reached.
	Iterations int
	Converged  bool
}

// Run solves one voxel: Set followed by Iterate until convergence or the
// iteration cap. Reaching the cap is not an error; the last estimate is
// returned with Converged false and Iterations equal to the cap.
func (c *CSD) Run(signal []float64) (Result, error) {
	if err := c.Set(signal); err != nil {
		return Result{}, err
	}
	niter := c.shared.niter
	n := 0
	converged := false
	for ; n < niter; n++ {
		done, err := c.Iterate()
		if err != nil {
			return Result{Iterations: n}, err
		}
		if done {
			converged = true
			break
		}
	}
	return Result{
		Coefficients: c.Coefficients(),
		Iterations:   n,
		Converged:    converged,
	}, nil
}
