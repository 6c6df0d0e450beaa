package csd

import "dwicsd/pkg/dirs"

// Options holds the hyperparameters of the deconvolution.
type Options struct {
	// Lmax is the maximum even SH degree of the estimated FOD.
	Lmax int

	// NegLambda weights the non-negativity penalty.
	NegLambda float64

	// NormLambda weights the minimum-norm regularisation added to the
	// diagonal of the normal matrix. Zero disables it.
	NormLambda float64

	// Threshold is the FOD amplitude below which a high-resolution direction
	// joins the active set.
	Threshold float64

	// NIter caps the number of active-set iterations per voxel.
	NIter int

	// InitLmax is the maximum degree of the unconstrained initial estimate.
	InitLmax int

	// InitFilter weights each even degree (index l/2) of the initial
	// estimate. Degrees past its end are dropped.
	InitFilter []float64

	// InitDamping is the relative Tikhonov damping of the initial inverse
	// model, as a fraction of the largest squared singular value.
	InitDamping float64

	// HRDirections overrides the high-resolution constraint directions.
	// Nil selects dirs.Default().
	HRDirections dirs.Set
}

// DefaultOptions returns the standard settings.
func DefaultOptions() Options {
	return Options{
		Lmax:        8,
		NegLambda:   1.0,
		NormLambda:  1.0,
		Threshold:   0.0,
		NIter:       50,
		InitLmax:    4,
		InitFilter:  []float64{1, 1, 1, 0, 0},
		InitDamping: 1e-4,
	}
}
