package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-filters/pkg/config"
	"go-filters/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	inputs     []string
	inputDir   string
	outputDir  string
	logDir     string
	backends   []string
	workers    int
	repeat     int
	boundary   string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "processor [images...]",
		Short: "Run the image filters locally and report timings",
		Long: `processor runs every configured filter over every input image with the
sequential and parallel backends, saves the filtered images and writes a
timing report.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.inputs = append(f.inputs, args...)
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}

			level, err := logging.ParseLevel(f.logLevel)
			if err != nil {
				return err
			}
			logger := logging.NewConsole(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML run plan")
	fl.StringSliceVarP(&f.inputs, "input", "i", nil, "input image (repeatable)")
	fl.StringVar(&f.inputDir, "input-dir", "", "directory searched for input images")
	fl.StringVarP(&f.outputDir, "output", "o", "", "output directory")
	fl.StringVar(&f.logDir, "log-dir", "", "directory for timing reports")
	fl.StringSliceVar(&f.backends, "backend", nil, "backends to run: sequential, parallel")
	fl.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = GOMAXPROCS)")
	fl.IntVarP(&f.repeat, "repeat", "n", 0, "timed repetitions per run")
	fl.StringVar(&f.boundary, "boundary", "", "boundary mode: zero, replicate, reflect, wrap")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level")

	return cmd
}

// resolveConfig layers explicitly set flags over the config file, or over the
// defaults when no file is given.
func resolveConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if len(f.inputs) > 0 {
		cfg.Inputs = f.inputs
	}
	if changed("input-dir") {
		cfg.InputDir = f.inputDir
	}
	if changed("output") {
		cfg.OutputDir = f.outputDir
	}
	if changed("log-dir") {
		cfg.LogDir = f.logDir
	}
	if changed("backend") {
		cfg.Backends = f.backends
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("repeat") {
		cfg.Repeat = f.repeat
	}
	if changed("boundary") {
		cfg.Boundary = f.boundary
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

