package visualization

import (
	"fmt"
	"path/filepath"

	"dwicsd/internal/models"
	"dwicsd/pkg/sh"
)

// DCMap returns the l=0 coefficient of every voxel, which is proportional to
// the integral of the FOD. Unprocessed and failed voxels are zero.
func DCMap(fod *models.FODVolume) []float64 {
	out := make([]float64, fod.NumVoxels())
	for i := range out {
		if fod.Processed[i] && !fod.Failed[i] {
			out[i] = fod.Coefficients(i)[0]
		}
	}
	return out
}

// IterationMap returns the solver iteration count of every voxel.
func IterationMap(fod *models.FODVolume) []float64 {
	out := make([]float64, fod.NumVoxels())
	for i, n := range fod.Iterations {
		out[i] = float64(n)
	}
	return out
}

// PeakAmplitudeMap returns the amplitude of the largest FOD peak in every
// voxel, found with pf. Voxels without a positive peak are zero.
func PeakAmplitudeMap(fod *models.FODVolume, pf *sh.PeakFinder) []float64 {
	out := make([]float64, fod.NumVoxels())
	for i := range out {
		if !fod.Processed[i] || fod.Failed[i] {
			continue
		}
		if peaks := pf.Find(fod.Coefficients(i), 1, 0); len(peaks) > 0 {
			out[i] = peaks[0].Amplitude
		}
	}
	return out
}

// SaveMaps writes z-axis slice sequences of the DC, peak amplitude and
// iteration maps into subdirectories of outputDir. A nil pf skips the peak
// map.
func SaveMaps(fod *models.FODVolume, pf *sh.PeakFinder, outputDir string) error {
	type scalarMap struct {
		name string
		data []float64
	}
	maps := []scalarMap{
		{"dc", DCMap(fod)},
		{"iterations", IterationMap(fod)},
	}
	if pf != nil {
		maps = append(maps, scalarMap{"peak", PeakAmplitudeMap(fod, pf)})
	}

	for _, m := range maps {
		viewer := NewViewer(m.data, fod.Width, fod.Height, fod.Depth)
		if err := viewer.SaveSliceSequence("z", filepath.Join(outputDir, m.name)); err != nil {
			return fmt.Errorf("failed to save %s map: %w", m.name, err)
		}
	}
	return nil
}
