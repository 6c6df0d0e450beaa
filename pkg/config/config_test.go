package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dwicsd/pkg/csd"
	"dwicsd/pkg/dirs"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("expected default configuration for a missing file")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration is invalid: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.CSD.Lmax = 6
	cfg.CSD.NegLambda = 2.5
	cfg.CSD.InitFilter = []float64{1, 0.5}
	cfg.Output.SaveMaps = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig() failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("loaded configuration differs from saved one:\n%+v\n%+v", cfg, loaded)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "csd:\n  lmax: 10\n  niter: 20\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.CSD.Lmax != 10 || cfg.CSD.NIter != 20 {
		t.Errorf("file values not applied: lmax %d, niter %d", cfg.CSD.Lmax, cfg.CSD.NIter)
	}
	if cfg.CSD.NegLambda != csd.DefaultOptions().NegLambda {
		t.Errorf("unset value lost its default: negLambda %g", cfg.CSD.NegLambda)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("csd: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.NumCores = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero cores")
	}

	cfg = DefaultConfig()
	cfg.Processing.ChunkSize = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero chunk size")
	}

	cfg = DefaultConfig()
	cfg.Output.SaveMaps = true
	cfg.Output.MapsDir = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for missing maps directory")
	}
}

func TestCSDOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.CSDOptions()
	if err != nil {
		t.Fatalf("CSDOptions() failed: %v", err)
	}
	if !reflect.DeepEqual(opts, csd.DefaultOptions()) {
		t.Errorf("default configuration should map to default options:\n%+v", opts)
	}

	path := filepath.Join(t.TempDir(), "hr.txt")
	if err := dirs.Save(path, dirs.Fibonacci(40)); err != nil {
		t.Fatal(err)
	}
	cfg.CSD.Directions = path
	opts, err = cfg.CSDOptions()
	if err != nil {
		t.Fatalf("CSDOptions() failed: %v", err)
	}
	if len(opts.HRDirections) != 40 {
		t.Errorf("expected 40 constraint directions, got %d", len(opts.HRDirections))
	}

	cfg.CSD.Directions = filepath.Join(t.TempDir(), "missing.txt")
	if _, err := cfg.CSDOptions(); err == nil {
		t.Errorf("expected error for missing directions file")
	}
}
