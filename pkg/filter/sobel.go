package filter

import (
	"fmt"
	"math"
)

// Sobel returns the gradient magnitude sqrt(gx²+gy²) of img, truncated and
// clamped to [0, 255], where gx and gy are correlations with SobelX and
// SobelY. Both gradients are accumulated in a single pass; the result is
// bit-identical to Magnitude(Gradients(img)).
func Sobel(img *Image, opts ...Option) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	p, err := Pad(img, 1, o.boundary)
	if err != nil {
		return nil, err
	}
	out := New(img.Width, img.Height)
	o.executor.Run(img.Height, func(y0, y1 int) {
		sobelRows(p, out.Pix, y0, y1)
	})
	return out, nil
}

// Gradients returns the unclamped horizontal and vertical Sobel responses,
// computed as two separate correlations.
func Gradients(img *Image, opts ...Option) (gx, gy *Image, err error) {
	if err := img.Validate(); err != nil {
		return nil, nil, err
	}
	o := buildOptions(opts)
	p, err := Pad(img, 1, o.boundary)
	if err != nil {
		return nil, nil, err
	}
	gx, gy = New(img.Width, img.Height), New(img.Width, img.Height)
	kx, ky := SobelX(), SobelY()
	o.executor.Run(img.Height, func(y0, y1 int) {
		correlateRows(p, kx, gx.Pix, y0, y1, false)
		correlateRows(p, ky, gy.Pix, y0, y1, false)
	})
	return gx, gy, nil
}

// Magnitude combines two gradient images into sqrt(gx²+gy²), truncated and
// clamped to [0, 255].
func Magnitude(gx, gy *Image) (*Image, error) {
	if err := gx.Validate(); err != nil {
		return nil, err
	}
	if err := gy.Validate(); err != nil {
		return nil, err
	}
	if gx.Width != gy.Width || gx.Height != gy.Height {
		return nil, fmt.Errorf("gradient sizes %dx%d and %dx%d differ: %w", gx.Width, gx.Height, gy.Width, gy.Height, ErrInvalidParameter)
	}
	out := New(gx.Width, gx.Height)
	for i := range out.Pix {
		out.Pix[i] = magnitude(gx.Pix[i], gy.Pix[i])
	}
	return out, nil
}

func magnitude(gx, gy float64) float64 {
	return clampPixel(math.Sqrt(gx*gx + gy*gy))
}

// sobelRows is the fused form of two correlateRows passes. It walks the
// kernel cells in the same order with the same weights so both forms round
// identically.
func sobelRows(p *Padded, out []float64, y0, y1 int) {
	stride := p.Stride()
	wx, wy := SobelX().Weights, SobelY().Weights
	shift := p.Radius - 1

	for y := y0; y < y1; y++ {
		dst := out[y*p.Width : (y+1)*p.Width]
		for x := range dst {
			var gx, gy float64
			for ky := 0; ky < 3; ky++ {
				row := p.Pix[(y+shift+ky)*stride+x+shift:]
				for kx := 0; kx < 3; kx++ {
					v := row[kx]
					gx += v * wx[ky*3+kx]
					gy += v * wy[ky*3+kx]
				}
			}
			dst[x] = magnitude(gx, gy)
		}
	}
}
