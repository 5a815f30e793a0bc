package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"go-filters/pkg/config"
	"go-filters/pkg/filter"
	"go-filters/pkg/imageio"
	"go-filters/pkg/stats"
)

const reportPrefix = "filters_"

// run filters every input with every configured filter and backend, checks
// that all backends agree, saves one output per (input, filter) and writes
// the timing table to out and the report to cfg.LogDir.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, out io.Writer) error {
	startTime := time.Now()
	log := logger.With().Str("component", "processor").Logger()

	inputs := cfg.Inputs
	if len(inputs) == 0 {
		var err error
		if inputs, err = imageio.FindImages(cfg.InputDir); err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no images found in %s", cfg.InputDir)
	}

	boundary, err := cfg.BoundaryMode()
	if err != nil {
		return err
	}
	specs := make([]filter.Spec, 0, len(cfg.Filters))
	for _, fc := range cfg.Filters {
		s, err := fc.Spec()
		if err != nil {
			return err
		}
		specs = append(specs, s)
	}
	labels := outputLabels(specs)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	log.Info().
		Int("images", len(inputs)).
		Int("filters", len(specs)).
		Strs("backends", cfg.Backends).
		Stringer("boundary", boundary).
		Msg("starting")

	var records []stats.Record
	for _, input := range inputs {
		img, err := imageio.Load(input)
		if err != nil {
			return err
		}
		for i, spec := range specs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := spec.Check(img); err != nil {
				log.Warn().Err(err).Str("image", input).Stringer("filter", spec).Msg("skipping filter")
				continue
			}
			recs, err := runFilter(cfg, img, input, spec, labels[i], boundary, startTime)
			if err != nil {
				return err
			}
			records = append(records, recs...)
		}
	}

	if err := stats.WriteTable(out, records); err != nil {
		return err
	}
	path, err := stats.WriteReportFile(cfg.LogDir, reportPrefix, records)
	if err != nil {
		return err
	}

	log.Info().
		Str("report", path).
		Dur("elapsed", time.Since(startTime)).
		Msg("processing complete")
	return nil
}

// outputLabels names each filter's output file. Filters that would share a
// label, such as two convolve kernels of one size, get their position
// appended.
func outputLabels(specs []filter.Spec) []string {
	counts := make(map[string]int, len(specs))
	for _, s := range specs {
		counts[s.Label()]++
	}
	labels := make([]string, len(specs))
	for i, s := range specs {
		labels[i] = s.Label()
		if counts[labels[i]] > 1 {
			labels[i] = fmt.Sprintf("%s-%d", labels[i], i+1)
		}
	}
	return labels
}

func runFilter(cfg *config.Config, img *filter.Image, input string, spec filter.Spec, label string, boundary filter.Boundary, ts time.Time) ([]stats.Record, error) {
	var (
		records   []stats.Record
		reference *filter.Image
		refName   string
	)
	for _, backend := range cfg.Backends {
		exec, err := cfg.Executor(backend)
		if err != nil {
			return nil, err
		}
		rec := stats.Record{
			Filter:     spec.String(),
			Variant:    backend,
			Image:      filepath.Base(input),
			Width:      img.Width,
			Height:     img.Height,
			KernelSize: spec.Size(),
			Timestamp:  ts,
		}
		if p, ok := exec.(filter.Parallel); ok {
			rec.Workers = p.Workers
		}

		var result *filter.Image
		for i := 0; i < cfg.Repeat; i++ {
			err := rec.Measure(func() error {
				var err error
				result, err = filter.Apply(img, spec, filter.WithBoundary(boundary), filter.WithExecutor(exec))
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", spec, input, err)
			}
		}

		if reference == nil {
			reference, refName = result, backend
		} else if !reference.Equal(result) {
			return nil, fmt.Errorf("%s on %s: %s output differs from %s", spec, input, backend, refName)
		}
		records = append(records, rec)
	}

	if reference != nil {
		if err := imageio.Save(imageio.OutputPath(cfg.OutputDir, input, label), reference); err != nil {
			return nil, err
		}
	}
	return records, nil
}
