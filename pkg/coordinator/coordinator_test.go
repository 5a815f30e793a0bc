package coordinator

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-filters/pkg/filter"
	"go-filters/pkg/imageio"
	"go-filters/pkg/queue"
)

func newClient(t *testing.T) *queue.RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := queue.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}), queue.Options{})
	t.Cleanup(func() { _ = rc.Close() })
	require.NoError(t, rc.EnsureGroups(context.Background()))
	return rc
}

func noise(w, h int, seed int64) *filter.Image {
	rng := rand.New(rand.NewSource(seed))
	img := filter.New(w, h)
	for i := range img.Pix {
		img.Pix[i] = float64(rng.Intn(256))
	}
	return img
}

// drain filters every queued tile locally and stitches the results.
func drain(t *testing.T, rc *queue.RedisClient, width, height, tiles int) *filter.Image {
	t.Helper()
	ctx := context.Background()
	out := filter.New(width, height)
	for i := 0; i < tiles; i++ {
		id, job, err := rc.ReadJob(ctx, "test", 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, job, "tile %d missing", i)
		require.Equal(t, i, job.ImageTile.TileID)

		res, err := filter.ApplyTile(job.ImageTile.Spec, job.ImageTile.Data)
		require.NoError(t, err)
		for y := 0; y < res.Height; y++ {
			for x := 0; x < res.Width; x++ {
				out.Set(job.ImageTile.X+x, job.ImageTile.Y+y, res.At(x, y))
			}
		}
		require.NoError(t, rc.AckJob(ctx, id))
	}
	id, job, err := rc.ReadJob(ctx, "test", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Nil(t, job)
	return out
}

func TestSubmit_TilesReassembleToWholeImage(t *testing.T) {
	rc := newClient(t)
	c := NewCoordinator(rc, zerolog.Nop(), 4)
	img := noise(11, 9, 3)

	gauss, err := filter.GaussianSpec(5, 1.5)
	require.NoError(t, err)

	tests := []struct {
		spec     filter.Spec
		boundary filter.Boundary
	}{
		{gauss, filter.Zero},
		{filter.SobelSpec(), filter.Zero},
		{filter.MedianSpec(3), filter.Replicate},
		{filter.MedianSpec(7), filter.Reflect},
	}
	for i, tt := range tests {
		t.Run(tt.spec.Label()+"/"+tt.boundary.String(), func(t *testing.T) {
			info, err := c.Submit(context.Background(), i, "in.png", "out.png", img, tt.spec, tt.boundary)
			require.NoError(t, err)
			assert.Equal(t, 9, info.ExpectedTiles)
			assert.Equal(t, tt.boundary.String(), info.Boundary)

			stored, err := rc.GetImageInfo(context.Background(), i)
			require.NoError(t, err)
			assert.Equal(t, info.ExpectedTiles, stored.ExpectedTiles)
			assert.Equal(t, tt.spec, stored.Spec)

			want, err := filter.Apply(img, tt.spec, filter.WithBoundary(tt.boundary))
			require.NoError(t, err)
			got := drain(t, rc, img.Width, img.Height, info.ExpectedTiles)
			assert.True(t, want.Equal(got))
		})
	}
}

func TestSubmit_RejectsBeforeQueuing(t *testing.T) {
	rc := newClient(t)
	c := NewCoordinator(rc, zerolog.Nop(), 4)

	big, err := filter.GaussianSpec(9, 2)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), 0, "in", "out", noise(5, 5, 1), big, filter.Zero)
	assert.ErrorIs(t, err, filter.ErrInvalidParameter)

	_, err = c.Submit(context.Background(), 1, "in", "out", filter.New(0, 0), filter.SobelSpec(), filter.Zero)
	assert.ErrorIs(t, err, filter.ErrInvalidImage)

	pending, err := rc.PendingJobs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
	id, job, err := rc.ReadJob(context.Background(), "test", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Nil(t, job)
}

func TestProcessImages(t *testing.T) {
	rc := newClient(t)
	c := NewCoordinator(rc, zerolog.Nop(), 8)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.png")
	require.NoError(t, imageio.Save(good, noise(10, 10, 2)))
	missing := filepath.Join(dir, "missing.png")

	err := c.ProcessImages(context.Background(), []string{good, missing}, dir, filter.SobelSpec(), filter.Zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	info, err := rc.GetImageInfo(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, good, info.InputPath)
	assert.Equal(t, filepath.Join(dir, "good_filtered_sobel.png"), info.OutputPath)
	assert.Equal(t, 4, info.ExpectedTiles)

	_, err = rc.GetImageInfo(context.Background(), 1)
	assert.ErrorIs(t, err, redis.Nil)
}
