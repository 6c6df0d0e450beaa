package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"dwicsd/internal/logging"
	"dwicsd/pkg/config"
	"dwicsd/pkg/csd"
	"dwicsd/pkg/dirs"
	"dwicsd/pkg/reconstruction"
	"dwicsd/pkg/response"
	"dwicsd/pkg/sh"
	"dwicsd/pkg/visualization"
)

func main() {
	configPath := flag.String("config", "dwicsd.yaml", "YAML configuration file (defaults are used if it does not exist)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file to -config and exit")
	signalsPath := flag.String("signals", "", "Text file of diffusion-weighted signals, one voxel per line")
	dirsPath := flag.String("dirs", "", "Text file of acquisition directions (az el or x y z per line)")
	responsePath := flag.String("response", "", "Text file of the single-fibre response (zonal SH coefficients)")
	maskPath := flag.String("mask", "", "Optional text file of 0/1 entries, one per voxel")
	outputPath := flag.String("output", "fod.txt", "Output file for the FOD SH coefficients")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (overrides the configuration)")
	lmax := flag.Int("lmax", -1, "Maximum SH degree of the FOD (overrides the configuration)")
	saveMaps := flag.Bool("save-maps", false, "Save DC, peak amplitude and iteration maps as JPEG slices")
	debug := flag.Bool("debug", false, "Print per-voxel diagnostics")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	if *signalsPath == "" || *dirsPath == "" || *responsePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *lmax >= 0 {
		cfg.CSD.Lmax = *lmax
	}
	if *saveMaps {
		cfg.Output.SaveMaps = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	switch {
	case *debug:
		logging.Mode = logging.Debug
	case cfg.Output.Performance:
		logging.Mode = logging.Performance
	}

	fmt.Println("================================")
	fmt.Println("CONSTRAINED SPHERICAL DECONVOLUTION OF DIFFUSION MRI")
	fmt.Println("================================")

	fmt.Println("Step 1: Loading inputs...")
	acq, err := dirs.Load(*dirsPath)
	if err != nil {
		log.Fatalf("Failed to load acquisition directions: %v", err)
	}
	resp, err := response.Load(*responsePath)
	if err != nil {
		log.Fatalf("Failed to load response: %v", err)
	}
	volume, err := reconstruction.ReadSignalVolume(*signalsPath)
	if err != nil {
		log.Fatalf("Failed to load signals: %v", err)
	}
	if *maskPath != "" {
		volume.Mask, err = reconstruction.ReadMask(*maskPath, volume.NumVoxels())
		if err != nil {
			log.Fatalf("Failed to load mask: %v", err)
		}
	}
	fmt.Printf("Loaded %d voxels of %d samples, %d directions, response lmax %d\n",
		volume.NumVoxels(), volume.NumDirections, len(acq), resp.Lmax())

	fmt.Println("Step 2: Precomputing deconvolution matrices...")
	opts, err := cfg.CSDOptions()
	if err != nil {
		log.Fatalf("Invalid deconvolution options: %v", err)
	}
	shared, err := csd.NewShared(resp, acq, opts)
	if err != nil {
		log.Fatalf("Failed to set up deconvolution: %v", err)
	}
	if shared.DataLmax() < shared.Lmax() {
		fmt.Printf("Warning: degrees above %d are not supported by the response and are regularised only\n",
			shared.DataLmax())
	}

	fmt.Println("Step 3: Deconvolving voxels...")
	params := &reconstruction.Params{
		NumCores:  cfg.Processing.NumCores,
		ChunkSize: cfg.Processing.ChunkSize,
		Verbose:   cfg.Output.Verbose,
	}
	reconstructor := reconstruction.NewReconstructor(params, shared)
	startTime := time.Now()
	if err := reconstructor.Process(volume); err != nil {
		log.Fatalf("Deconvolution failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fod := reconstructor.GetFODVolume()
	if err := reconstruction.WriteFODVolume(*outputPath, fod); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}

	metrics := reconstructor.GetMetrics()
	fmt.Printf("\nDeconvolution completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("FOD coefficients saved to: %s\n\n", *outputPath)
	fmt.Printf("Voxels processed: %d\n", metrics.Voxels)
	fmt.Printf("- converged: %d\n", metrics.Converged)
	fmt.Printf("- reached the %d iteration cap: %d\n", shared.NIter(), metrics.Exhausted)
	fmt.Printf("- failed: %d\n", metrics.Failed)
	fmt.Printf("Iterations: %.2f ± %.2f\n", metrics.MeanIterations, metrics.StdIterations)
	fmt.Printf("Mean DC coefficient: %.6g\n", metrics.MeanDC)

	if cfg.Output.SaveMaps {
		fmt.Println("\nStep 4: Saving FOD maps...")
		pf, err := sh.NewPeakFinder(dirs.Fibonacci(1000), shared.Lmax(), 6)
		if err != nil {
			log.Fatalf("Failed to set up peak finder: %v", err)
		}
		if err := visualization.SaveMaps(fod, pf, cfg.Output.MapsDir); err != nil {
			log.Printf("Warning: Failed to save maps: %v", err)
		} else {
			fmt.Printf("Maps saved to: %s\n", cfg.Output.MapsDir)
		}
	}
}
