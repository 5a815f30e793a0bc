package filter

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Image is a single-channel raster stored row-major in one contiguous buffer.
// Pixel (x, y) lives at Pix[y*Width+x].
type Image struct {
	Pix    []float64
	Width  int
	Height int
}

// New allocates a zeroed image. Non-positive dimensions yield an empty image
// that every filter rejects with ErrInvalidImage.
func New(width, height int) *Image {
	if width <= 0 || height <= 0 {
		return &Image{}
	}
	return &Image{
		Pix:    make([]float64, width*height),
		Width:  width,
		Height: height,
	}
}

// FromRows builds an image from a slice of rows. Every row must have the
// same, non-zero length.
func FromRows(rows [][]float64) (*Image, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty rows: %w", ErrInvalidImage)
	}
	width := len(rows[0])
	img := New(width, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d samples, want %d: %w", y, len(row), width, ErrInvalidImage)
		}
		copy(img.Pix[y*width:], row)
	}
	return img, nil
}

// FromGray copies an 8-bit gray image.
func FromGray(g *image.Gray) *Image {
	b := g.Bounds()
	img := New(b.Dx(), b.Dy())
	for y := 0; y < img.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+img.Width]
		out := img.Pix[y*img.Width:]
		for x, v := range row {
			out[x] = float64(v)
		}
	}
	return img
}

// FromImage converts any image to luma using color.GrayModel.
func FromImage(src image.Image) *Image {
	if g, ok := src.(*image.Gray); ok {
		return FromGray(g)
	}
	b := src.Bounds()
	img := New(b.Dx(), b.Dy())
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			img.Pix[y*img.Width+x] = float64(c.Y)
		}
	}
	return img
}

// Gray converts the image to 8 bits, truncating and clamping each sample.
func (img *Image) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Width : (y+1)*img.Width]
		out := g.Pix[y*g.Stride:]
		for x, v := range row {
			out[x] = uint8(clampPixel(v))
		}
	}
	return g
}

// At returns the sample at (x, y), or 0 outside the image.
func (img *Image) At(x, y int) float64 {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return 0
	}
	return img.Pix[y*img.Width+x]
}

// Set stores v at (x, y). Out-of-bounds writes are ignored.
func (img *Image) Set(x, y int, v float64) {
	if x < 0 || x >= img.Width || y < 0 || y >= img.Height {
		return
	}
	img.Pix[y*img.Width+x] = v
}

// Row returns the samples of row y.
func (img *Image) Row(y int) []float64 {
	if y < 0 || y >= img.Height {
		return nil
	}
	return img.Pix[y*img.Width : (y+1)*img.Width]
}

// Fill sets every sample to v.
func (img *Image) Fill(v float64) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	clone := &Image{
		Pix:    make([]float64, len(img.Pix)),
		Width:  img.Width,
		Height: img.Height,
	}
	copy(clone.Pix, img.Pix)
	return clone
}

// Equal reports whether both images have the same dimensions and identical
// samples.
func (img *Image) Equal(other *Image) bool {
	if img.Width != other.Width || img.Height != other.Height || len(img.Pix) != len(other.Pix) {
		return false
	}
	for i, v := range img.Pix {
		if v != other.Pix[i] {
			return false
		}
	}
	return true
}

// Validate checks the dimension invariants.
func (img *Image) Validate() error {
	if img == nil {
		return fmt.Errorf("nil image: %w", ErrInvalidImage)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("dimensions %dx%d: %w", img.Width, img.Height, ErrInvalidImage)
	}
	if len(img.Pix) != img.Width*img.Height {
		return fmt.Errorf("buffer holds %d samples, want %d: %w", len(img.Pix), img.Width*img.Height, ErrInvalidImage)
	}
	return nil
}

// clampPixel truncates toward zero and clamps to the 8-bit range.
func clampPixel(v float64) float64 {
	t := math.Trunc(v)
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > 255 {
		return 255
	}
	return t
}
