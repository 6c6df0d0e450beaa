// Package reconstruction drives constrained spherical deconvolution over a
// whole volume. Voxels are independent, so the sweep is split into chunks
// that are handed to a pool of workers, each owning its own solver and all
// reading the same precomputed deconvolution matrices.
package reconstruction

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"gonum.org/v1/gonum/stat"

	"dwicsd/internal/logging"
	"dwicsd/internal/models"
	"dwicsd/pkg/csd"
)

// Metrics summarises a completed sweep.
type Metrics struct {
	// Voxels is the number of voxels inside the mask
	Voxels int

	// Converged counts voxels whose active set settled before the cap
	Converged int

	// Exhausted counts voxels that reached the iteration cap. Their last
	// estimate is kept.
	Exhausted int

	// Failed counts voxels whose solve raised a numerical error
	Failed int

	// MeanIterations and StdIterations describe the iteration counts of
	// the voxels that did not fail
	MeanIterations float64
	StdIterations  float64

	// MeanDC is the mean l=0 coefficient over the voxels that did not fail
	MeanDC float64

	// Elapsed is the wall-clock time of the sweep
	Elapsed time.Duration
}

// Params holds the sweep configuration.
type Params struct {
	// NumCores is the number of workers. Values below 1 select all CPUs.
	NumCores int

	// ChunkSize is the number of consecutive voxels per job. Values below
	// 1 select 256.
	ChunkSize int

	// Verbose prints step banners and progress
	Verbose bool
}

// Reconstructor estimates an FOD for every voxel of a signal volume.
type Reconstructor struct {
	params *Params
	shared *csd.Shared

	fod     *models.FODVolume
	metrics Metrics
}

// NewReconstructor creates a reconstructor bound to the precomputed
// deconvolution state. shared is only read, so one value may back several
// reconstructors.
func NewReconstructor(params *Params, shared *csd.Shared) *Reconstructor {
	p := *params
	if p.NumCores < 1 {
		p.NumCores = runtime.NumCPU()
	}
	if p.ChunkSize < 1 {
		p.ChunkSize = 256
	}
	return &Reconstructor{params: &p, shared: shared}
}

// Process runs the deconvolution over every voxel in the mask of volume.
// Voxels whose solve fails numerically are flagged in the output and do not
// stop the sweep; any other error aborts it.
func (r *Reconstructor) Process(volume *models.SignalVolume) error {
	if err := volume.Validate(); err != nil {
		return fmt.Errorf("invalid signal volume: %w", err)
	}
	if volume.NumDirections != r.shared.NumDirections() {
		return fmt.Errorf("signal volume has %d directions per voxel, deconvolution expects %d",
			volume.NumDirections, r.shared.NumDirections())
	}

	r.fod = models.NewFODVolume(volume.Width, volume.Height, volume.Depth,
		r.shared.Lmax(), r.shared.NumCoefficients())
	r.metrics = Metrics{}

	if r.params.Verbose {
		fmt.Printf("Deconvolving %dx%dx%d voxels at lmax %d using %d workers...\n",
			volume.Width, volume.Height, volume.Depth, r.shared.Lmax(), r.params.NumCores)
	}
	start := time.Now()
	if err := r.processVoxelsInParallel(volume); err != nil {
		return fmt.Errorf("failed to process voxels: %w", err)
	}
	r.metrics.Elapsed = time.Since(start)

	r.calculateMetrics()
	logging.Perff("Sweep took %.2f s; %s\n", r.metrics.Elapsed.Seconds(), logging.MemString())
	return nil
}

type chunk struct {
	start, end int
}

type chunkResult struct {
	chunk
	err error
}

// processVoxelsInParallel fans chunks of voxels out to the workers. Each
// worker writes only the voxels of its own chunks, so the output needs no
// locking.
func (r *Reconstructor) processVoxelsInParallel(volume *models.SignalVolume) error {
	n := volume.NumVoxels()
	size := r.params.ChunkSize

	jobs := make(chan chunk)
	resultChan := make(chan chunkResult)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(jobs)
		for s := 0; s < n; s += size {
			select {
			case jobs <- chunk{start: s, end: min(s+size, n)}:
			case <-done:
				return
			}
		}
	}()

	for w := 0; w < r.params.NumCores; w++ {
		go func() {
			solver := csd.New(r.shared)
			for c := range jobs {
				err := r.processChunk(solver, volume, c)
				select {
				case resultChan <- chunkResult{chunk: c, err: err}:
				case <-done:
					return
				}
			}
		}()
	}

	totalTasks := (n + size - 1) / size
	for completed := 0; completed < totalTasks; completed++ {
		res := <-resultChan
		if res.err != nil {
			return fmt.Errorf("voxels %d-%d: %w", res.start, res.end-1, res.err)
		}
		if r.params.Verbose {
			progress := float64(completed+1) / float64(totalTasks) * 100
			fmt.Printf("\rProcessing voxels: %.1f%% complete", progress)
		}
	}
	if r.params.Verbose {
		fmt.Println()
	}
	return nil
}

func (r *Reconstructor) processChunk(solver *csd.CSD, volume *models.SignalVolume, c chunk) error {
	for i := c.start; i < c.end; i++ {
		if !volume.InMask(i) {
			continue
		}
		r.fod.Processed[i] = true

		res, err := solver.Run(volume.Signal(i))
		if err != nil {
			if !errors.Is(err, csd.ErrNumerical) {
				return err
			}
			r.fod.Failed[i] = true
			r.fod.Iterations[i] = res.Iterations
			logging.Debugf("voxel %d: %v\n", i, err)
			continue
		}
		copy(r.fod.Coefficients(i), res.Coefficients)
		r.fod.Iterations[i] = res.Iterations
		r.fod.Converged[i] = res.Converged
	}
	return nil
}

func (r *Reconstructor) calculateMetrics() {
	var iterations, dc []float64
	for i := 0; i < r.fod.NumVoxels(); i++ {
		if !r.fod.Processed[i] {
			continue
		}
		r.metrics.Voxels++
		switch {
		case r.fod.Failed[i]:
			r.metrics.Failed++
			continue
		case r.fod.Converged[i]:
			r.metrics.Converged++
		default:
			r.metrics.Exhausted++
		}
		iterations = append(iterations, float64(r.fod.Iterations[i]))
		dc = append(dc, r.fod.Coefficients(i)[0])
	}
	if len(iterations) > 0 {
		r.metrics.MeanIterations, r.metrics.StdIterations = stat.MeanStdDev(iterations, nil)
		if len(iterations) == 1 {
			r.metrics.StdIterations = 0
		}
		r.metrics.MeanDC = stat.Mean(dc, nil)
	}
}

// GetMetrics returns the summary of the last sweep.
func (r *Reconstructor) GetMetrics() Metrics {
	return r.metrics
}

// GetFODVolume returns the output of the last sweep, or nil before Process
// has been called.
func (r *Reconstructor) GetFODVolume() *models.FODVolume {
	return r.fod
}
