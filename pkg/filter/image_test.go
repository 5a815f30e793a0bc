package filter

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	img := New(4, 3)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.Len(t, img.Pix, 12)
	assert.NoError(t, img.Validate())

	for _, dims := range [][2]int{{0, 0}, {-1, 4}, {4, 0}} {
		empty := New(dims[0], dims[1])
		assert.Equal(t, 0, empty.Width)
		assert.ErrorIs(t, empty.Validate(), ErrInvalidImage)
	}
}

func TestFromRows(t *testing.T) {
	img, err := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 3, img.Height)
	assert.Equal(t, 6.0, img.At(1, 2))
	assert.Equal(t, []float64{3, 4}, img.Row(1))

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidImage)
	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
	_, err = FromRows([][]float64{{}})
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestImage_AtSet(t *testing.T) {
	img := New(3, 3)
	img.Set(2, 1, 42)
	assert.Equal(t, 42.0, img.At(2, 1))
	assert.Equal(t, 42.0, img.Pix[5])

	// Outside reads are zero, outside writes are ignored
	assert.Equal(t, 0.0, img.At(-1, 0))
	assert.Equal(t, 0.0, img.At(3, 0))
	img.Set(3, 0, 9)
	img.Set(0, -1, 9)
	assert.Equal(t, 42.0, img.Pix[5])
	assert.Nil(t, img.Row(3))
}

func TestImage_CloneEqual(t *testing.T) {
	img := noiseImage(5, 4, 13)
	clone := img.Clone()
	assert.True(t, clone.Equal(img))

	clone.Set(0, 0, img.At(0, 0)+1)
	assert.False(t, clone.Equal(img))
	assert.False(t, New(2, 3).Equal(New(3, 2)))
}

func TestGrayRoundTrip(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 2))
	copy(g.Pix, []uint8{0, 10, 20, 128, 254, 255})

	img := FromGray(g)
	assert.Equal(t, []float64{0, 10, 20, 128, 254, 255}, img.Pix)
	assert.Equal(t, g.Pix, img.Gray().Pix)
}

func TestGray_ClampsAndTruncates(t *testing.T) {
	img := mustRows(t, [][]float64{{-4, 12.9, 300, 255.5}})
	assert.Equal(t, []uint8{0, 12, 255, 255}, img.Gray().Pix)
}

func TestFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 12, 11))
	src.Set(10, 10, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	src.Set(11, 10, color.RGBA{A: 255})

	img := FromImage(src)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, []float64{255, 0}, img.Pix)
}
