package sh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"dwicsd/pkg/dirs"
)

// Peak is a local maximum of an SH series.
type Peak struct {
	Direction dirs.Direction
	Amplitude float64
}

const (
	refineStep     = 2 * math.Pi / 180
	refineMinStep  = 1e-4
	refineMaxMoves = 1000
	// Peaks closer than this after refinement are the same lobe.
	peakSeparation = 5 * math.Pi / 180
)

// PeakFinder locates the lobes of SH series: amplitudes are sampled on a
// dense direction set, local maxima over each sample's nearest neighbours are
// taken as seeds and refined by hill climbing on the continuous function.
// A PeakFinder is read-only after construction and may be shared between
// goroutines.
type PeakFinder struct {
	lmax       int
	set        dirs.Set
	sht        *mat.Dense
	neighbours [][]int
}

// NewPeakFinder prepares a finder for series up to lmax sampled on set, using
// k neighbours per sample to decide local maxima.
func NewPeakFinder(set dirs.Set, lmax, k int) (*PeakFinder, error) {
	if k < 1 {
		return nil, fmt.Errorf("neighbour count must be positive, got %d", k)
	}
	a, err := Matrix(set, lmax)
	if err != nil {
		return nil, err
	}
	return &PeakFinder{
		lmax:       lmax,
		set:        set,
		sht:        a,
		neighbours: dirs.NewIndex(set).Neighbours(k),
	}, nil
}

// Find returns up to n peaks of coeffs whose amplitude exceeds threshold,
// strongest first. Directions are reported in the upper hemisphere.
func (pf *PeakFinder) Find(coeffs []float64, n int, threshold float64) []Peak {
	_, cols := pf.sht.Dims()
	c := make([]float64, cols)
	copy(c, coeffs)

	amps := make([]float64, len(pf.set))
	for i := range amps {
		amps[i] = floats.Dot(pf.sht.RawRowView(i)[:cols], c)
	}

	var peaks []Peak
	for i, a := range amps {
		if a <= threshold || !pf.isLocalMax(amps, i) {
			continue
		}
		p := refine(c, pf.set[i], a)
		if !isDuplicate(peaks, p) {
			peaks = append(peaks, p)
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Amplitude > peaks[j].Amplitude })
	if n > 0 && len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}

func (pf *PeakFinder) isLocalMax(amps []float64, i int) bool {
	for _, j := range pf.neighbours[i] {
		if amps[j] > amps[i] {
			return false
		}
	}
	return true
}

func isDuplicate(peaks []Peak, p Peak) bool {
	for _, q := range peaks {
		if q.Direction.Angle(p.Direction) < peakSeparation {
			return true
		}
	}
	return false
}

// refine climbs from d towards the nearest local maximum of coeffs.
func refine(coeffs []float64, d dirs.Direction, amp float64) Peak {
	step := refineStep
	for moves := 0; step > refineMinStep && moves < refineMaxMoves; moves++ {
		e1, e2 := tangentBasis(d)
		moved := false
		for _, t := range [4]dirs.Direction{e1, e1.Neg(), e2, e2.Neg()} {
			cand := d.Add(t.Scale(math.Tan(step))).Normalize()
			if v := Value(coeffs, cand); v > amp {
				d, amp, moved = cand, v, true
				break
			}
		}
		if !moved {
			step /= 2
		}
	}
	if d.Z < 0 {
		d = d.Neg()
	}
	return Peak{Direction: d, Amplitude: amp}
}

// tangentBasis returns two orthonormal vectors perpendicular to d.
func tangentBasis(d dirs.Direction) (dirs.Direction, dirs.Direction) {
	ref := dirs.Direction{X: 1}
	if math.Abs(d.X) > 0.9 {
		ref = dirs.Direction{Y: 1}
	}
	e1 := ref.Cross(d).Normalize()
	return e1, d.Cross(e1).Normalize()
}
