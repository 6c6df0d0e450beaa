package models

import "fmt"

// SignalVolume holds diffusion-weighted signals for a 3D grid of voxels.
// Each voxel carries NumDirections samples, one per acquisition direction.
type SignalVolume struct {
	// Data holds the signals voxel by voxel in x-fastest order, so voxel
	// (x, y, z) starts at ((z*Height+y)*Width+x)*NumDirections
	Data []float64

	// Width, Height, Depth are the grid dimensions in voxels
	Width, Height, Depth int

	// NumDirections is the signal length per voxel
	NumDirections int

	// Mask selects the voxels to process. Nil means every voxel.
	Mask []bool

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}
}

// NumVoxels returns Width*Height*Depth.
func (v *SignalVolume) NumVoxels() int { return v.Width * v.Height * v.Depth }

// Signal returns the samples of voxel i as a sub-slice of Data.
func (v *SignalVolume) Signal(i int) []float64 {
	return v.Data[i*v.NumDirections : (i+1)*v.NumDirections]
}

// InMask reports whether voxel i is to be processed.
func (v *SignalVolume) InMask(i int) bool { return v.Mask == nil || v.Mask[i] }

// Validate checks that the data and mask lengths agree with the dimensions.
func (v *SignalVolume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if v.NumDirections <= 0 {
		return fmt.Errorf("invalid signal length %d", v.NumDirections)
	}
	if len(v.Data) != v.NumVoxels()*v.NumDirections {
		return fmt.Errorf("volume holds %d values, expected %d", len(v.Data), v.NumVoxels()*v.NumDirections)
	}
	if v.Mask != nil && len(v.Mask) != v.NumVoxels() {
		return fmt.Errorf("mask has %d entries, expected %d", len(v.Mask), v.NumVoxels())
	}
	return nil
}

// FODVolume holds the SH coefficients estimated for each voxel.
type FODVolume struct {
	// Data holds NumCoefficients values per voxel, laid out like SignalVolume
	Data []float64

	Width, Height, Depth int

	NumCoefficients int
	Lmax            int

	// Iterations is the number of solver iterations used per voxel
	Iterations []int

	// Converged marks voxels whose active set settled before the cap
	Converged []bool

	// Failed marks voxels whose solve raised a numerical error. Their
	// coefficients are left at zero.
	Failed []bool

	// Processed marks voxels inside the mask
	Processed []bool
}

// NewFODVolume allocates an empty FOD volume for the given grid.
func NewFODVolume(width, height, depth, lmax, numCoefficients int) *FODVolume {
	n := width * height * depth
	return &FODVolume{
		Data:            make([]float64, n*numCoefficients),
		Width:           width,
		Height:          height,
		Depth:           depth,
		NumCoefficients: numCoefficients,
		Lmax:            lmax,
		Iterations:      make([]int, n),
		Converged:       make([]bool, n),
		Failed:          make([]bool, n),
		Processed:       make([]bool, n),
	}
}

// NumVoxels returns Width*Height*Depth.
func (v *FODVolume) NumVoxels() int { return v.Width * v.Height * v.Depth }

// Coefficients returns the SH coefficients of voxel i as a sub-slice of Data.
func (v *FODVolume) Coefficients(i int) []float64 {
	return v.Data[i*v.NumCoefficients : (i+1)*v.NumCoefficients]
}

// VoxelIndex converts grid coordinates to a linear voxel index.
func VoxelIndex(x, y, z, width, height int) int {
	return (z*height+y)*width + x
}
