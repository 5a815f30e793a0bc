package assembler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-filters/pkg/common"
	"go-filters/pkg/filter"
	"go-filters/pkg/queue"
)

const (
	DefaultReadBlock          = 5 * time.Second
	DefaultCheckpointInterval = 10 * time.Second
)

// CompleteFunc receives each fully assembled image.
type CompleteFunc func(ctx context.Context, info *common.ImageInfo, img *filter.Image) error

type Assembler struct {
	redisClient *queue.RedisClient
	assemblerID string
	logger      zerolog.Logger
	onComplete  CompleteFunc
	imageMap    map[int]*ImageAssembly
	mutex       sync.RWMutex

	ReadBlock          time.Duration
	CheckpointInterval time.Duration

	cancel   context.CancelFunc
	cancelMu sync.Mutex
}

type ImageAssembly struct {
	info           *common.ImageInfo
	output         *filter.Image
	tilesReceived  int
	processedTiles map[int]bool
	completed      bool
	mutex          sync.Mutex
}

func NewAssembler(redisClient *queue.RedisClient, assemblerID string, logger zerolog.Logger, onComplete CompleteFunc) *Assembler {
	return &Assembler{
		redisClient:        redisClient,
		assemblerID:        assemblerID,
		logger:             logger.With().Str("component", "assembler").Str("assembler_id", assemblerID).Logger(),
		onComplete:         onComplete,
		imageMap:           make(map[int]*ImageAssembly),
		ReadBlock:          DefaultReadBlock,
		CheckpointInterval: DefaultCheckpointInterval,
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (a *Assembler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancelMu.Lock()
	a.cancel = cancel
	a.cancelMu.Unlock()
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go a.resultProcessor(ctx, &wg)

	wg.Add(1)
	go a.checkpointMonitor(ctx, &wg)

	a.logger.Info().Msg("assembler started")
	wg.Wait()
}

func (a *Assembler) Stop() {
	a.cancelMu.Lock()
	defer a.cancelMu.Unlock()
	if a.cancel != nil {
		a.logger.Info().Msg("shutting down")
		a.cancel()
	}
}

// Progress reports how many tiles of an image have arrived, and whether it
// is complete.
func (a *Assembler) Progress(imageID int) (received, expected int, completed bool) {
	a.mutex.RLock()
	assembly, ok := a.imageMap[imageID]
	a.mutex.RUnlock()
	if !ok {
		return 0, 0, false
	}
	assembly.mutex.Lock()
	defer assembly.mutex.Unlock()
	return assembly.tilesReceived, assembly.info.ExpectedTiles, assembly.completed
}

func (a *Assembler) resultProcessor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	consumer := fmt.Sprintf("assembler-%s", a.assemblerID)

	for ctx.Err() == nil {
		msgID, result, err := a.redisClient.ReadResult(ctx, consumer, a.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Error().Err(err).Msg("read failed")
			if msgID != "" {
				_ = a.redisClient.AckResult(ctx, msgID)
			}
			continue
		}
		if result == nil {
			continue
		}
		if result.ProcessedTile == nil {
			_ = a.redisClient.AckResult(ctx, msgID)
			continue
		}

		if err := a.processTile(ctx, result.ProcessedTile); err != nil {
			a.logger.Error().Err(err).
				Int("image", result.ProcessedTile.ImageID).
				Int("tile", result.ProcessedTile.TileID).
				Msg("failed to process tile")
			continue
		}
		_ = a.redisClient.AckResult(ctx, msgID)
	}
}

func (a *Assembler) processTile(ctx context.Context, tile *common.ProcessedImageTile) error {
	assembly, err := a.getOrCreateAssembly(ctx, tile.ImageID)
	if err != nil {
		return fmt.Errorf("failed to get assembly: %w", err)
	}

	assembly.mutex.Lock()
	defer assembly.mutex.Unlock()

	if assembly.completed {
		return nil
	}

	if assembly.processedTiles[tile.TileID] {
		a.logger.Debug().Int("image", tile.ImageID).Int("tile", tile.TileID).Msg("duplicate tile")
		a.finish(ctx, assembly)
		return nil
	}

	out := assembly.output
	if tile.X < 0 || tile.Y < 0 || tile.Width <= 0 || tile.Height <= 0 ||
		tile.X+tile.Width > out.Width || tile.Y+tile.Height > out.Height ||
		len(tile.Data) != tile.Width*tile.Height {
		a.logger.Warn().Int("image", tile.ImageID).Int("tile", tile.TileID).Msg("tile does not fit image, dropped")
		return nil
	}

	assembly.processedTiles[tile.TileID] = true
	for y := 0; y < tile.Height; y++ {
		start := (tile.Y+y)*out.Width + tile.X
		copy(out.Pix[start:start+tile.Width], tile.Data[y*tile.Width:(y+1)*tile.Width])
	}
	assembly.tilesReceived++

	if assembly.tilesReceived < assembly.info.ExpectedTiles {
		if assembly.tilesReceived%10 == 0 {
			a.logger.Info().Int("image", tile.ImageID).
				Int("received", assembly.tilesReceived).
				Int("expected", assembly.info.ExpectedTiles).
				Msg("progress")
		}
		return nil
	}

	a.finish(ctx, assembly)
	return nil
}

// finish hands a fully received image to onComplete and marks it completed.
// The tile data is already held in memory, so a failed callback leaves the
// assembly ready and finish is tried again by the checkpoint monitor or the
// next redelivered tile. Callers hold assembly.mutex.
func (a *Assembler) finish(ctx context.Context, assembly *ImageAssembly) bool {
	if assembly.completed || assembly.tilesReceived < assembly.info.ExpectedTiles {
		return false
	}
	imageID := assembly.info.ID

	if a.onComplete != nil {
		if err := a.onComplete(ctx, assembly.info, assembly.output); err != nil {
			a.logger.Error().Err(err).Int("image", imageID).Msg("failed to complete image, will retry")
			return false
		}
	}
	assembly.completed = true
	assembly.output = nil

	if err := a.redisClient.MarkImageCompleted(ctx, imageID); err != nil {
		a.logger.Warn().Err(err).Int("image", imageID).Msg("failed to mark image completed")
	}

	a.logger.Info().Int("image", imageID).
		Int("tiles", assembly.tilesReceived).
		Dur("elapsed", time.Since(assembly.info.StartTime)).
		Msg("image assembled")
	return true
}

func (a *Assembler) getOrCreateAssembly(ctx context.Context, imageID int) (*ImageAssembly, error) {
	a.mutex.RLock()
	if assembly, exists := a.imageMap[imageID]; exists {
		a.mutex.RUnlock()
		return assembly, nil
	}
	a.mutex.RUnlock()

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if assembly, exists := a.imageMap[imageID]; exists {
		return assembly, nil
	}

	info, err := a.redisClient.GetImageInfo(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get image info: %w", err)
	}

	assembly := &ImageAssembly{
		info:           info,
		processedTiles: make(map[int]bool),
	}

	done, err := a.redisClient.IsImageCompleted(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if done {
		assembly.completed = true
	} else {
		assembly.output = filter.New(info.Width, info.Height)
	}
	a.imageMap[imageID] = assembly

	a.logger.Debug().Int("image", imageID).
		Int("width", info.Width).
		Int("height", info.Height).
		Int("expected", info.ExpectedTiles).
		Bool("already_completed", done).
		Msg("created assembly")

	return assembly, nil
}

func (a *Assembler) checkpointMonitor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(a.CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mutex.RLock()
			activeImages := len(a.imageMap)
			assemblies := make([]*ImageAssembly, 0, activeImages)
			for _, assembly := range a.imageMap {
				assemblies = append(assemblies, assembly)
			}
			a.mutex.RUnlock()

			var incompleteCount int
			for _, assembly := range assemblies {
				assembly.mutex.Lock()
				if !assembly.completed && !a.finish(ctx, assembly) {
					incompleteCount++
					a.logger.Info().Int("image", assembly.info.ID).
						Int("received", assembly.tilesReceived).
						Int("expected", assembly.info.ExpectedTiles).
						Msg("progress")
				}
				assembly.mutex.Unlock()
			}

			if activeImages > 0 {
				a.logger.Info().Int("active", activeImages).Int("incomplete", incompleteCount).Msg("status")
			}
		}
	}
}
