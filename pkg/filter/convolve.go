package filter

import "fmt"

// Convolve correlates img with k and returns an image of the same size.
// Each output sample is the weighted sum over the kernel window, truncated
// toward zero and clamped to [0, 255]. Samples outside the image come from
// the boundary mode (zero by default).
func Convolve(img *Image, k *Kernel, opts ...Option) (*Image, error) {
	return correlate(img, k, true, buildOptions(opts))
}

// Correlate is Convolve without the final truncate and clamp step: the raw
// weighted sums, which may be negative or above 255.
func Correlate(img *Image, k *Kernel, opts ...Option) (*Image, error) {
	return correlate(img, k, false, buildOptions(opts))
}

func correlate(img *Image, k *Kernel, clamp bool, o options) (*Image, error) {
	if err := validateConvolve(img, k); err != nil {
		return nil, err
	}
	p, err := Pad(img, k.Radius(), o.boundary)
	if err != nil {
		return nil, err
	}
	out := New(img.Width, img.Height)
	o.executor.Run(img.Height, func(y0, y1 int) {
		correlateRows(p, k, out.Pix, y0, y1, clamp)
	})
	return out, nil
}

func validateConvolve(img *Image, k *Kernel) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := k.Validate(); err != nil {
		return err
	}
	if k.Size > img.Width || k.Size > img.Height {
		return fmt.Errorf("kernel size %d larger than %dx%d image: %w", k.Size, img.Width, img.Height, ErrInvalidParameter)
	}
	return nil
}

// correlateRows writes output rows [y0, y1) of p into out, which has
// p.Width samples per row. The padded buffer must have a halo of at least
// the kernel radius.
func correlateRows(p *Padded, k *Kernel, out []float64, y0, y1 int, clamp bool) {
	stride := p.Stride()
	size := k.Size
	// Offset of the kernel's top-left corner relative to the padded origin
	shift := p.Radius - k.Radius()

	for y := y0; y < y1; y++ {
		dst := out[y*p.Width : (y+1)*p.Width]
		for x := range dst {
			var sum float64
			for ky := 0; ky < size; ky++ {
				row := p.Pix[(y+shift+ky)*stride+x+shift:]
				weights := k.Weights[ky*size : (ky+1)*size]
				for kx, w := range weights {
					sum += row[kx] * w
				}
			}
			if clamp {
				sum = clampPixel(sum)
			}
			dst[x] = sum
		}
	}
}
