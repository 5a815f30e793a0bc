package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go-filters/pkg/assembler"
	"go-filters/pkg/common"
	"go-filters/pkg/config"
	"go-filters/pkg/coordinator"
	"go-filters/pkg/filter"
	"go-filters/pkg/imageio"
	"go-filters/pkg/logging"
	"go-filters/pkg/processor"
	"go-filters/pkg/queue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

const (
	modeCoordinator = "coordinator"
	modeWorker      = "worker"
	modeAssembler   = "assembler"
	modeAll         = "all"
)

type options struct {
	mode       string
	configPath string
	redis      config.RedisConfig
	inputDir   string
	outputDir  string
	filter     config.FilterConfig
	boundary   string
	workers    int
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Distributed tile filtering over Redis streams",
		Long: `service runs one or all roles of the distributed filter pipeline:
the coordinator cuts images into tiles and queues them, workers filter
tiles, and the assembler stitches results back together and saves them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.applyConfig(cmd); err != nil {
				return err
			}
			level, err := logging.ParseLevel(o.logLevel)
			if err != nil {
				return err
			}
			logger := logging.NewConsole(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, o, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&o.mode, "mode", "m", modeAll, "mode: coordinator, worker, assembler, or all")
	fl.StringVarP(&o.configPath, "config", "c", "", "YAML run plan; its first filter and redis section are used")
	fl.StringVar(&o.redis.Addr, "redis", "localhost:6379", "Redis address")
	fl.StringVar(&o.redis.Password, "redis-password", "", "Redis password")
	fl.IntVar(&o.redis.DB, "redis-db", 0, "Redis database")
	fl.StringVar(&o.redis.Prefix, "prefix", queue.DefaultPrefix, "key prefix for streams and image records")
	fl.IntVar(&o.redis.TileSize, "tile-size", common.TileSize, "tile edge length")
	fl.StringVarP(&o.inputDir, "input", "i", "/data/input", "input directory")
	fl.StringVarP(&o.outputDir, "output", "o", "/data/output", "output directory")
	fl.StringVarP(&o.filter.Name, "filter", "f", string(filter.OpGaussian), "filter: gaussian, convolve, sobel, median")
	fl.IntVar(&o.filter.Size, "size", 15, "kernel size for gaussian and convolve")
	fl.Float64Var(&o.filter.Sigma, "sigma", 3, "gaussian sigma")
	fl.IntVar(&o.filter.Window, "window", 5, "median window size")
	fl.Float64SliceVar(&o.filter.Weights, "weights", nil, "row-major convolve kernel weights")
	fl.StringVar(&o.boundary, "boundary", filter.Zero.String(), "boundary mode: zero, replicate, reflect, wrap")
	fl.IntVarP(&o.workers, "workers", "w", 10, "worker goroutines")
	fl.StringVar(&o.logLevel, "log-level", "info", "log level")

	return cmd
}

// applyConfig fills options that were not set on the command line from the
// config file.
func (o *options) applyConfig(cmd *cobra.Command) error {
	if o.configPath == "" {
		return nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	changed := cmd.Flags().Changed
	if !changed("redis") {
		o.redis.Addr = cfg.Redis.Addr
	}
	if !changed("redis-password") {
		o.redis.Password = cfg.Redis.Password
	}
	if !changed("redis-db") {
		o.redis.DB = cfg.Redis.DB
	}
	if !changed("prefix") && cfg.Redis.Prefix != "" {
		o.redis.Prefix = cfg.Redis.Prefix
	}
	if !changed("tile-size") && cfg.Redis.TileSize > 0 {
		o.redis.TileSize = cfg.Redis.TileSize
	}
	if !changed("input") && cfg.InputDir != "" {
		o.inputDir = cfg.InputDir
	}
	if !changed("output") {
		o.outputDir = cfg.OutputDir
	}
	if len(cfg.Filters) > 0 {
		f := cfg.Filters[0]
		if !changed("filter") {
			o.filter.Name = f.Name
		}
		if !changed("size") && f.Size > 0 {
			o.filter.Size = f.Size
		}
		if !changed("sigma") && f.Sigma > 0 {
			o.filter.Sigma = f.Sigma
		}
		if !changed("window") && f.Window > 0 {
			o.filter.Window = f.Window
		}
		if !changed("weights") && len(f.Weights) > 0 {
			o.filter.Weights = f.Weights
		}
	}
	if !changed("boundary") {
		o.boundary = cfg.Boundary
	}
	if !changed("workers") && cfg.Workers > 0 {
		o.workers = cfg.Workers
	}
	return nil
}

func serve(ctx context.Context, o options, logger zerolog.Logger) error {
	switch o.mode {
	case modeCoordinator, modeWorker, modeAssembler, modeAll:
	default:
		return fmt.Errorf("invalid mode %q: use %s, %s, %s or %s", o.mode, modeCoordinator, modeWorker, modeAssembler, modeAll)
	}
	spec, err := o.filter.Spec()
	if err != nil {
		return err
	}
	boundary, err := filter.ParseBoundary(o.boundary)
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	serviceID := fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
	log := logger.With().Str("service_id", serviceID).Logger()

	log.Info().
		Str("mode", o.mode).
		Str("redis", o.redis.Addr).
		Int("workers", o.workers).
		Stringer("filter", spec).
		Stringer("boundary", boundary).
		Msg("starting distributed filter service")

	redisClient, err := queue.NewRedisClient(ctx, queue.Options{
		Addr:     o.redis.Addr,
		Password: o.redis.Password,
		DB:       o.redis.DB,
		Prefix:   o.redis.Prefix,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()

	if err := redisClient.EnsureGroups(ctx); err != nil {
		return err
	}

	runCoordinator := func() error {
		images, err := imageio.FindImages(o.inputDir)
		if err != nil {
			return err
		}
		if len(images) == 0 {
			return fmt.Errorf("no images found in %s", o.inputDir)
		}
		if err := os.MkdirAll(o.outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		log.Info().Int("images", len(images)).Msg("queuing images")

		startTime := time.Now()
		coord := coordinator.NewCoordinator(redisClient, log, o.redis.TileSize)
		if err := coord.ProcessImages(ctx, images, o.outputDir, spec, boundary); err != nil {
			return err
		}
		log.Info().Dur("elapsed", time.Since(startTime)).Msg("all images queued")
		return nil
	}

	newAssembler := func() *assembler.Assembler {
		return assembler.NewAssembler(redisClient, serviceID, log, func(_ context.Context, info *common.ImageInfo, img *filter.Image) error {
			return imageio.Save(info.OutputPath, img)
		})
	}

	var wg sync.WaitGroup
	start := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	switch o.mode {
	case modeCoordinator:
		return runCoordinator()

	case modeWorker:
		start(processor.NewWorkerPool(redisClient, o.workers, serviceID, log).Start)

	case modeAssembler:
		start(newAssembler().Start)

	case modeAll:
		start(processor.NewWorkerPool(redisClient, o.workers, serviceID, log).Start)
		start(newAssembler().Start)
		if err := runCoordinator(); err != nil {
			log.Error().Err(err).Msg("coordinator failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	wg.Wait()
	log.Info().Msg("service shutdown complete")
	return nil
}
