package filter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// noiseImage returns a deterministic image of integer samples in [0, 255].
func noiseImage(width, height int, seed int64) *Image {
	rng := rand.New(rand.NewSource(seed))
	img := New(width, height)
	for i := range img.Pix {
		img.Pix[i] = float64(rng.Intn(256))
	}
	return img
}

func constantImage(width, height int, v float64) *Image {
	img := New(width, height)
	img.Fill(v)
	return img
}

func mustRows(t *testing.T, rows [][]float64) *Image {
	t.Helper()
	img, err := FromRows(rows)
	require.NoError(t, err)
	return img
}

func isBorder(img *Image, x, y int) bool {
	return x == 0 || y == 0 || x == img.Width-1 || y == img.Height-1
}
