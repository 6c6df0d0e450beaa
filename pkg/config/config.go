// Package config provides configuration loading and management for dwicsd.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dwicsd/pkg/csd"
	"dwicsd/pkg/dirs"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// ChunkSize is the number of voxels handed to a worker at a time
		ChunkSize int `yaml:"chunkSize"`
	} `yaml:"processing"`

	// Deconvolution parameters
	CSD struct {
		Lmax        int       `yaml:"lmax"`
		NegLambda   float64   `yaml:"negLambda"`
		NormLambda  float64   `yaml:"normLambda"`
		Threshold   float64   `yaml:"threshold"`
		NIter       int       `yaml:"niter"`
		InitLmax    int       `yaml:"initLmax"`
		InitFilter  []float64 `yaml:"initFilter"`
		InitDamping float64   `yaml:"initDamping"`

		// Directions is an optional file of high-resolution constraint
		// directions. Empty selects the built-in set.
		Directions string `yaml:"directions"`
	} `yaml:"csd"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Performance prints timing and memory figures
		Performance bool `yaml:"performance"`

		// SaveMaps writes JPEG slices of the scalar FOD maps
		SaveMaps bool `yaml:"saveMaps"`

		// MapsDir is the directory the map slices are written to
		MapsDir string `yaml:"mapsDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.ChunkSize = 256

	opts := csd.DefaultOptions()
	cfg.CSD.Lmax = opts.Lmax
	cfg.CSD.NegLambda = opts.NegLambda
	cfg.CSD.NormLambda = opts.NormLambda
	cfg.CSD.Threshold = opts.Threshold
	cfg.CSD.NIter = opts.NIter
	cfg.CSD.InitLmax = opts.InitLmax
	cfg.CSD.InitFilter = opts.InitFilter
	cfg.CSD.InitDamping = opts.InitDamping

	cfg.Output.Verbose = true
	cfg.Output.Performance = false
	cfg.Output.SaveMaps = false
	cfg.Output.MapsDir = "fod_maps"

	return cfg
}

// Validate checks the values that are not checked when the deconvolution
// is set up.
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Processing.ChunkSize < 1 {
		return fmt.Errorf("chunkSize must be at least 1, got %d", c.Processing.ChunkSize)
	}
	if c.Output.SaveMaps && c.Output.MapsDir == "" {
		return fmt.Errorf("mapsDir must be set when saveMaps is enabled")
	}
	return nil
}

// CSDOptions converts the csd section to solver options, loading the
// constraint directions file when one is named.
func (c *Config) CSDOptions() (csd.Options, error) {
	opts := csd.Options{
		Lmax:        c.CSD.Lmax,
		NegLambda:   c.CSD.NegLambda,
		NormLambda:  c.CSD.NormLambda,
		Threshold:   c.CSD.Threshold,
		NIter:       c.CSD.NIter,
		InitLmax:    c.CSD.InitLmax,
		InitFilter:  append([]float64(nil), c.CSD.InitFilter...),
		InitDamping: c.CSD.InitDamping,
	}
	if c.CSD.Directions != "" {
		set, err := dirs.Load(c.CSD.Directions)
		if err != nil {
			return opts, fmt.Errorf("error loading constraint directions: %w", err)
		}
		opts.HRDirections = set
	}
	return opts, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
