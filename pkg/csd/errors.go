package csd

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to classify a failure.
var (
	// ErrConfiguration marks a problem found while building Shared. It is
	// fatal to a whole run and reported before any voxel is processed.
	ErrConfiguration = errors.New("csd: invalid configuration")

	// ErrNumerical marks a failed solve for a single voxel. The voxel is
	// flagged and the sweep carries on.
	ErrNumerical = errors.New("csd: numerical failure")
)

// ConfigurationError describes why Shared could not be built. Matrix names
// the precomputed matrix at fault, or is empty for plain option errors.
type ConfigurationError struct {
	Matrix string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Matrix == "" {
		return fmt.Sprintf("%v: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%v: %s matrix: %s", ErrConfiguration, e.Matrix, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

func configErrorf(matrix, format string, args ...any) error {
	return &ConfigurationError{Matrix: matrix, Reason: fmt.Sprintf(format, args...)}
}

// NumericalError reports a per-voxel solve that did not produce finite
// output. Iteration is the 1-based iterate call that failed, or 0 when the
// input signal itself was unusable.
type NumericalError struct {
	Iteration int
	Reason    string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("%v at iteration %d: %s", ErrNumerical, e.Iteration, e.Reason)
}

func (e *NumericalError) Unwrap() error { return ErrNumerical }
