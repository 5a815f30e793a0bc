package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"go-filters/pkg/common"
	"go-filters/pkg/filter"
	"go-filters/pkg/imageio"
	"go-filters/pkg/queue"
)

// DefaultLoaders bounds how many images ProcessImages decodes at once.
const DefaultLoaders = 4

type Coordinator struct {
	redisClient *queue.RedisClient
	logger      zerolog.Logger
	tileSize    int
	loaders     int
}

func NewCoordinator(redisClient *queue.RedisClient, logger zerolog.Logger, tileSize int) *Coordinator {
	if tileSize <= 0 {
		tileSize = common.TileSize
	}
	return &Coordinator{
		redisClient: redisClient,
		logger:      logger.With().Str("component", "coordinator").Logger(),
		tileSize:    tileSize,
		loaders:     DefaultLoaders,
	}
}

// Submit cuts img into tiles and queues one job per tile. The whole image is
// padded once with the boundary mode, so each tile's halo holds exactly the
// samples the filter would read on the full image.
func (c *Coordinator) Submit(ctx context.Context, imageID int, inputPath, outputPath string, img *filter.Image, spec filter.Spec, boundary filter.Boundary) (*common.ImageInfo, error) {
	startTime := time.Now()

	if err := spec.Check(img); err != nil {
		return nil, fmt.Errorf("image %d: %w", imageID, err)
	}
	padded, err := filter.Pad(img, spec.Radius(), boundary)
	if err != nil {
		return nil, err
	}

	info := &common.ImageInfo{
		ID:            imageID,
		InputPath:     inputPath,
		OutputPath:    outputPath,
		Width:         img.Width,
		Height:        img.Height,
		ExpectedTiles: common.TileCount(img.Width, img.Height, c.tileSize),
		Spec:          spec,
		Boundary:      boundary.String(),
		StartTime:     startTime,
	}
	if err := c.redisClient.StoreImageInfo(ctx, info); err != nil {
		return nil, fmt.Errorf("failed to store image info: %w", err)
	}

	c.logger.Info().
		Int("image", imageID).
		Int("width", img.Width).
		Int("height", img.Height).
		Int("tiles", info.ExpectedTiles).
		Stringer("filter", spec).
		Msg("partitioning image")

	if err := c.partitionAndQueue(ctx, imageID, padded, spec); err != nil {
		return nil, fmt.Errorf("failed to partition image: %w", err)
	}

	c.logger.Info().
		Int("image", imageID).
		Dur("elapsed", time.Since(startTime)).
		Msg("finished queuing tiles")
	return info, nil
}

func (c *Coordinator) partitionAndQueue(ctx context.Context, imageID int, padded *filter.Padded, spec filter.Spec) error {
	tileID := 0
	for y := 0; y < padded.Height; y += c.tileSize {
		tileHeight := min(c.tileSize, padded.Height-y)
		for x := 0; x < padded.Width; x += c.tileSize {
			tileWidth := min(c.tileSize, padded.Width-x)

			data, err := padded.Crop(x, y, tileWidth, tileHeight)
			if err != nil {
				return err
			}
			job := &common.JobMessage{
				Type: common.JobTile,
				ImageTile: &common.ImageTile{
					ImageID: imageID,
					TileID:  tileID,
					X:       x,
					Y:       y,
					Spec:    spec,
					Data:    data,
				},
			}
			if _, err := c.redisClient.AddJob(ctx, job); err != nil {
				return fmt.Errorf("failed to queue tile %d: %w", tileID, err)
			}
			tileID++
		}
	}
	return nil
}

// ProcessImages loads every path and submits it under its index as image ID.
// Outputs are named by imageio.OutputPath inside outputDir. Failures for
// individual images are collected and returned together.
func (c *Coordinator) ProcessImages(ctx context.Context, imagePaths []string, outputDir string, spec filter.Spec, boundary filter.Boundary) error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.loaders)
	for i, inputPath := range imagePaths {
		g.Go(func() error {
			if err := c.processImage(ctx, i, inputPath, outputDir, spec, boundary); err != nil {
				c.logger.Error().Err(err).Int("image", i).Str("path", inputPath).Msg("failed to submit image")
				mu.Lock()
				errs = append(errs, fmt.Errorf("image %d: %w", i, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("failed to process %d of %d images: %w", len(errs), len(imagePaths), errors.Join(errs...))
	}
	return nil
}

func (c *Coordinator) processImage(ctx context.Context, imageID int, inputPath, outputDir string, spec filter.Spec, boundary filter.Boundary) error {
	img, err := imageio.Load(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	outputPath := imageio.OutputPath(outputDir, inputPath, spec.Label())
	_, err = c.Submit(ctx, imageID, inputPath, outputPath, img, spec, boundary)
	return err
}
