package filter

import (
	"fmt"
	"strings"
)

// Boundary selects the value of samples outside the image.
type Boundary int

const (
	// Zero treats every outside sample as 0.
	Zero Boundary = iota
	// Replicate repeats the nearest edge pixel.
	Replicate
	// Reflect mirrors the image at its edges, repeating the edge pixel
	// (… 1 0 | 0 1 2 …).
	Reflect
	// Wrap tiles the image periodically.
	Wrap
)

var boundaryNames = map[Boundary]string{
	Zero:      "zero",
	Replicate: "replicate",
	Reflect:   "reflect",
	Wrap:      "wrap",
}

func (b Boundary) String() string {
	if name, ok := boundaryNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

// ParseBoundary maps a name such as "zero" or "reflect" to a Boundary.
func ParseBoundary(name string) (Boundary, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Zero, nil
	}
	for b, n := range boundaryNames {
		if n == name {
			return b, nil
		}
	}
	switch name {
	case "clamp", "edge":
		return Replicate, nil
	case "mirror":
		return Reflect, nil
	}
	return Zero, fmt.Errorf("unknown boundary %q: %w", name, ErrInvalidParameter)
}

// resolve maps a possibly out-of-range index into [0, size). ok is false
// when the sample is a virtual zero.
func (b Boundary) resolve(index, size int) (int, bool) {
	if index >= 0 && index < size {
		return index, true
	}
	switch b {
	case Replicate:
		if index < 0 {
			return 0, true
		}
		return size - 1, true
	case Reflect:
		period := 2 * size
		index %= period
		if index < 0 {
			index += period
		}
		if index >= size {
			index = period - index - 1
		}
		return index, true
	case Wrap:
		index %= size
		if index < 0 {
			index += size
		}
		return index, true
	default:
		return 0, false
	}
}

// Padded is an image surrounded by a Radius-wide halo whose samples were
// filled according to a Boundary. The buffer is (Width+2*Radius) wide and
// (Height+2*Radius) tall; image pixel (x, y) sits at padded (x+Radius, y+Radius).
type Padded struct {
	Pix    []float64 `json:"pix"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Radius int       `json:"radius"`
}

// Stride is the number of samples in one padded row.
func (p *Padded) Stride() int {
	return p.Width + 2*p.Radius
}

// Pad materializes the halo around img.
func Pad(img *Image, radius int, b Boundary) (*Padded, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if radius < 0 {
		return nil, fmt.Errorf("radius %d: %w", radius, ErrInvalidParameter)
	}
	p := &Padded{
		Width:  img.Width,
		Height: img.Height,
		Radius: radius,
	}
	stride := p.Stride()
	rows := img.Height + 2*radius
	p.Pix = make([]float64, stride*rows)

	for py := 0; py < rows; py++ {
		sy, rowOK := b.resolve(py-radius, img.Height)
		out := p.Pix[py*stride : (py+1)*stride]
		if !rowOK {
			continue
		}
		src := img.Pix[sy*img.Width : (sy+1)*img.Width]
		copy(out[radius:radius+img.Width], src)
		for px := 0; px < radius; px++ {
			if sx, ok := b.resolve(px-radius, img.Width); ok {
				out[px] = src[sx]
			}
			right := radius + img.Width + px
			if sx, ok := b.resolve(img.Width+px, img.Width); ok {
				out[right] = src[sx]
			}
		}
	}
	return p, nil
}

// Crop returns the w×h region starting at image coordinates (x, y) together
// with its halo, ready to be filtered on its own.
func (p *Padded) Crop(x, y, w, h int) (*Padded, error) {
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > p.Width || y+h > p.Height {
		return nil, fmt.Errorf("crop %dx%d at (%d,%d) outside %dx%d: %w", w, h, x, y, p.Width, p.Height, ErrInvalidParameter)
	}
	tile := &Padded{Width: w, Height: h, Radius: p.Radius}
	stride := p.Stride()
	tileStride := tile.Stride()
	rows := h + 2*p.Radius
	tile.Pix = make([]float64, tileStride*rows)
	for ty := 0; ty < rows; ty++ {
		start := (y+ty)*stride + x
		copy(tile.Pix[ty*tileStride:(ty+1)*tileStride], p.Pix[start:start+tileStride])
	}
	return tile, nil
}

// Validate checks that the buffer matches the declared geometry.
func (p *Padded) Validate() error {
	if p == nil {
		return fmt.Errorf("nil padded image: %w", ErrInvalidImage)
	}
	if p.Width <= 0 || p.Height <= 0 || p.Radius < 0 {
		return fmt.Errorf("padded geometry %dx%d radius %d: %w", p.Width, p.Height, p.Radius, ErrInvalidImage)
	}
	if want := p.Stride() * (p.Height + 2*p.Radius); len(p.Pix) != want {
		return fmt.Errorf("padded buffer holds %d samples, want %d: %w", len(p.Pix), want, ErrInvalidImage)
	}
	return nil
}
