// Package config loads the YAML run plan shared by the commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"go-filters/pkg/filter"
)

const (
	BackendSequential = "sequential"
	BackendParallel   = "parallel"
)

type Config struct {
	Inputs      []string       `yaml:"inputs"`
	InputDir    string         `yaml:"input_dir"`
	OutputDir   string         `yaml:"output_dir"`
	LogDir      string         `yaml:"log_dir"`
	Backends    []string       `yaml:"backends"`
	Workers     int            `yaml:"workers"`
	RowsPerTask int            `yaml:"rows_per_task"`
	Boundary    string         `yaml:"boundary"`
	Repeat      int            `yaml:"repeat"`
	Filters     []FilterConfig `yaml:"filters"`
	Redis       RedisConfig    `yaml:"redis"`
}

type FilterConfig struct {
	Name    string    `yaml:"name"`
	Size    int       `yaml:"size,omitempty"`
	Sigma   float64   `yaml:"sigma,omitempty"`
	Window  int       `yaml:"window,omitempty"`
	Weights []float64 `yaml:"weights,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TileSize int    `yaml:"tile_size"`
}

// Default mirrors the reference harness: Sobel, a 5×5 σ=1 Gaussian and a
// 5×5 median, each run sequentially and in parallel.
func Default() *Config {
	return &Config{
		InputDir:    ".",
		OutputDir:   "output",
		LogDir:      "logs",
		Backends:    []string{BackendSequential, BackendParallel},
		Workers:     runtime.NumCPU(),
		RowsPerTask: filter.DefaultRowsPerTask,
		Boundary:    filter.Zero.String(),
		Repeat:      1,
		Filters: []FilterConfig{
			{Name: string(filter.OpSobel)},
			{Name: string(filter.OpGaussian), Size: 5, Sigma: 1},
			{Name: string(filter.OpMedian), Window: 5},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Prefix:   "flt",
			TileSize: 256,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values; a filters list in the file replaces the default one.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.Inputs) == 0 && c.InputDir == "" {
		errs = append(errs, errors.New("no inputs or input_dir"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is empty"))
	}
	if len(c.Backends) == 0 {
		errs = append(errs, errors.New("no backends"))
	}
	for _, b := range c.Backends {
		if b != BackendSequential && b != BackendParallel {
			errs = append(errs, fmt.Errorf("unknown backend %q", b))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d is negative", c.Workers))
	}
	if c.RowsPerTask < 0 {
		errs = append(errs, fmt.Errorf("rows_per_task %d is negative", c.RowsPerTask))
	}
	if c.Repeat < 1 {
		errs = append(errs, fmt.Errorf("repeat %d must be at least 1", c.Repeat))
	}
	if _, err := filter.ParseBoundary(c.Boundary); err != nil {
		errs = append(errs, err)
	}
	if len(c.Filters) == 0 {
		errs = append(errs, errors.New("no filters"))
	}
	for i, f := range c.Filters {
		if _, err := f.Spec(); err != nil {
			errs = append(errs, fmt.Errorf("filters[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// BoundaryMode parses Boundary.
func (c *Config) BoundaryMode() (filter.Boundary, error) {
	return filter.ParseBoundary(c.Boundary)
}

// Executor returns the filter backend named by backend.
func (c *Config) Executor(backend string) (filter.Executor, error) {
	switch backend {
	case BackendSequential:
		return filter.Sequential{}, nil
	case BackendParallel:
		return filter.Parallel{Workers: c.Workers, RowsPerTask: c.RowsPerTask}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

// Spec builds and validates the filter described by f.
func (f FilterConfig) Spec() (filter.Spec, error) {
	var s filter.Spec
	switch filter.Op(f.Name) {
	case filter.OpGaussian:
		return filter.GaussianSpec(f.Size, f.Sigma)
	case filter.OpConvolve:
		k, err := filter.NewKernel(f.Size, f.Weights)
		if err != nil {
			return s, err
		}
		s = filter.ConvolveSpec(k)
	case filter.OpSobel:
		s = filter.SobelSpec()
	case filter.OpMedian:
		s = filter.MedianSpec(f.Window)
	default:
		return s, fmt.Errorf("unknown filter %q: %w", f.Name, filter.ErrInvalidParameter)
	}
	return s, s.Validate()
}
