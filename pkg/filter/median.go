package filter

import "slices"

// Median replaces every pixel with the median of the windowSize×windowSize
// neighborhood around it. Samples outside the image come from the boundary
// mode, so with the default zero padding border medians are pulled toward 0.
// windowSize must be odd and positive; it may exceed the image size.
func Median(img *Image, windowSize int, opts ...Option) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if err := checkOddSize("window size", windowSize); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	p, err := Pad(img, windowSize/2, o.boundary)
	if err != nil {
		return nil, err
	}
	out := New(img.Width, img.Height)
	o.executor.Run(img.Height, func(y0, y1 int) {
		medianRows(p, windowSize, out.Pix, y0, y1)
	})
	return out, nil
}

// medianRows writes output rows [y0, y1). The window buffer is private to
// the band.
func medianRows(p *Padded, windowSize int, out []float64, y0, y1 int) {
	stride := p.Stride()
	shift := p.Radius - windowSize/2
	window := make([]float64, windowSize*windowSize)
	mid := len(window) / 2

	for y := y0; y < y1; y++ {
		dst := out[y*p.Width : (y+1)*p.Width]
		for x := range dst {
			n := 0
			for wy := 0; wy < windowSize; wy++ {
				start := (y+shift+wy)*stride + x + shift
				n += copy(window[n:], p.Pix[start:start+windowSize])
			}
			slices.Sort(window)
			dst[x] = window[mid]
		}
	}
}
