package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"go-filters/pkg/common"
	"go-filters/pkg/filter"
	"go-filters/pkg/queue"
)

const (
	DefaultReadBlock     = 5 * time.Second
	DefaultRetryInterval = 30 * time.Second
	DefaultStaleAfter    = 30 * time.Second
	claimBatch           = 50
)

// WorkerPool runs numWorkers consumers on the jobs stream. Each consumer
// filters one tile at a time, publishes the interior and acks the job.
// Jobs that fail transiently stay pending and are reclaimed by the retry
// monitor once they have been idle for StaleAfter.
type WorkerPool struct {
	redisClient *queue.RedisClient
	numWorkers  int
	workerID    string
	logger      zerolog.Logger

	ReadBlock     time.Duration
	RetryInterval time.Duration
	StaleAfter    time.Duration

	tilesProcessed atomic.Int64
	cancel         context.CancelFunc
	mu             sync.Mutex
}

func NewWorkerPool(redisClient *queue.RedisClient, numWorkers int, workerID string, logger zerolog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &WorkerPool{
		redisClient:   redisClient,
		numWorkers:    numWorkers,
		workerID:      workerID,
		logger:        logger.With().Str("component", "worker_pool").Str("worker_id", workerID).Logger(),
		ReadBlock:     DefaultReadBlock,
		RetryInterval: DefaultRetryInterval,
		StaleAfter:    DefaultStaleAfter,
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (wp *WorkerPool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	wp.mu.Lock()
	wp.cancel = cancel
	wp.mu.Unlock()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < wp.numWorkers; i++ {
		wg.Add(1)
		go wp.worker(ctx, i, &wg)
	}

	wg.Add(1)
	go wp.retryMonitor(ctx, &wg)

	wp.logger.Info().Int("workers", wp.numWorkers).Msg("worker pool started")
	wg.Wait()
	wp.logger.Info().Int64("tiles", wp.tilesProcessed.Load()).Msg("worker pool stopped")
}

func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.cancel != nil {
		wp.logger.Info().Msg("shutting down")
		wp.cancel()
	}
}

// TilesProcessed is the number of tiles this pool has filtered and acked.
func (wp *WorkerPool) TilesProcessed() int64 {
	return wp.tilesProcessed.Load()
}

func (wp *WorkerPool) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	consumer := fmt.Sprintf("%s-worker-%d", wp.workerID, id)
	log := wp.logger.With().Int("worker", id).Logger()
	log.Debug().Str("consumer", consumer).Msg("worker started")

	for ctx.Err() == nil {
		msgID, job, err := wp.redisClient.ReadJob(ctx, consumer, wp.ReadBlock)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("read failed")
			if msgID != "" {
				_ = wp.redisClient.AckJob(ctx, msgID)
				continue
			}
			wp.pause(ctx)
			continue
		}
		if job == nil {
			continue
		}
		wp.handle(ctx, log, msgID, job)
	}
	log.Debug().Msg("worker shutting down")
}

// handle processes one delivered job. Malformed jobs are acked and dropped
// since no retry could fix them.
func (wp *WorkerPool) handle(ctx context.Context, log zerolog.Logger, msgID string, job *common.JobMessage) {
	if job.Type != common.JobTile || job.ImageTile == nil {
		log.Warn().Str("type", job.Type).Str("msg", msgID).Msg("invalid job")
		_ = wp.redisClient.AckJob(ctx, msgID)
		return
	}

	err := wp.processTile(ctx, job.ImageTile)
	switch {
	case errors.Is(err, filter.ErrInvalidParameter), errors.Is(err, filter.ErrInvalidImage):
		log.Error().Err(err).Int("image", job.ImageTile.ImageID).Int("tile", job.ImageTile.TileID).Msg("dropping tile")
		_ = wp.redisClient.AckJob(ctx, msgID)
	case err != nil:
		// Left pending for the retry monitor.
		log.Error().Err(err).Int("image", job.ImageTile.ImageID).Int("tile", job.ImageTile.TileID).Msg("failed to process tile")
	default:
		if err := wp.redisClient.AckJob(ctx, msgID); err != nil {
			log.Warn().Err(err).Str("msg", msgID).Msg("ack failed")
		}
		if count := wp.tilesProcessed.Add(1); count%100 == 0 {
			wp.logger.Info().Int64("tiles", count).Msg("progress")
		}
	}
}

func (wp *WorkerPool) processTile(ctx context.Context, tile *common.ImageTile) error {
	startTime := time.Now()

	out, err := filter.ApplyTile(tile.Spec, tile.Data)
	if err != nil {
		return err
	}

	result := &common.ResultMessage{
		ProcessedTile: &common.ProcessedImageTile{
			ImageID: tile.ImageID,
			TileID:  tile.TileID,
			X:       tile.X,
			Y:       tile.Y,
			Width:   out.Width,
			Height:  out.Height,
			Data:    out.Pix,
		},
		WorkerID:    wp.workerID,
		ProcessTime: time.Since(startTime).Seconds(),
	}

	if _, err := wp.redisClient.AddResult(ctx, result); err != nil {
		return fmt.Errorf("failed to add result: %w", err)
	}
	return nil
}

func (wp *WorkerPool) retryMonitor(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(wp.RetryInterval)
	defer ticker.Stop()

	consumer := fmt.Sprintf("%s-retry-monitor", wp.workerID)
	log := wp.logger.With().Str("consumer", consumer).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, err := wp.redisClient.ClaimStaleJobs(ctx, consumer, wp.StaleAfter, claimBatch)
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Msg("failed to claim stale jobs")
				}
				continue
			}
			if len(claimed) > 0 {
				log.Info().Int("jobs", len(claimed)).Msg("retrying stale jobs")
			}
			for _, msg := range claimed {
				wp.handle(ctx, log, msg.ID, msg.Job)
			}
		}
	}
}

func (wp *WorkerPool) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
}
