package filter

import "fmt"

// Op names a filter.
type Op string

const (
	OpGaussian Op = "gaussian"
	OpConvolve Op = "convolve"
	OpSobel    Op = "sobel"
	OpMedian   Op = "median"
)

// Spec is a serializable description of one filter application. It lets a
// filter be chosen from configuration and shipped to remote workers along
// with image tiles.
type Spec struct {
	Op     Op      `json:"op"`
	Kernel *Kernel `json:"kernel,omitempty"`
	Sigma  float64 `json:"sigma,omitempty"`
	Window int     `json:"window,omitempty"`
}

// GaussianSpec builds the kernel up front so every worker uses identical
// weights.
func GaussianSpec(size int, sigma float64) (Spec, error) {
	k, err := GaussianKernel(size, sigma)
	if err != nil {
		return Spec{}, err
	}
	return Spec{Op: OpGaussian, Kernel: k, Sigma: sigma}, nil
}

// ConvolveSpec describes a correlation with an arbitrary kernel.
func ConvolveSpec(k *Kernel) Spec {
	return Spec{Op: OpConvolve, Kernel: k}
}

// SobelSpec describes the Sobel gradient magnitude.
func SobelSpec() Spec {
	return Spec{Op: OpSobel}
}

// MedianSpec describes a median over windowSize×windowSize neighborhoods.
func MedianSpec(windowSize int) Spec {
	return Spec{Op: OpMedian, Window: windowSize}
}

// Size is the side of the square neighborhood the filter reads.
func (s Spec) Size() int {
	switch s.Op {
	case OpGaussian, OpConvolve:
		if s.Kernel == nil {
			return 0
		}
		return s.Kernel.Size
	case OpSobel:
		return 3
	case OpMedian:
		return s.Window
	}
	return 0
}

// Radius is the halo width the filter needs around each pixel.
func (s Spec) Radius() int {
	return (s.Size() - 1) / 2
}

func (s Spec) String() string {
	switch s.Op {
	case OpGaussian:
		return fmt.Sprintf("gaussian(%d, σ=%g)", s.Size(), s.Sigma)
	case OpConvolve:
		return fmt.Sprintf("convolve(%d)", s.Size())
	case OpMedian:
		return fmt.Sprintf("median(%d)", s.Window)
	}
	return string(s.Op)
}

// Label is a file-name friendly form of String, such as "median-5" or
// "gaussian-5-s1.4".
func (s Spec) Label() string {
	if s.Op == OpSobel || s.Size() <= 0 {
		return string(s.Op)
	}
	if s.Op == OpGaussian {
		return fmt.Sprintf("%s-%d-s%g", s.Op, s.Size(), s.Sigma)
	}
	return fmt.Sprintf("%s-%d", s.Op, s.Size())
}

// Validate checks the parameters without looking at an image.
func (s Spec) Validate() error {
	switch s.Op {
	case OpGaussian, OpConvolve:
		return s.Kernel.Validate()
	case OpSobel:
		return nil
	case OpMedian:
		return checkOddSize("window size", s.Window)
	}
	return fmt.Errorf("unknown filter %q: %w", s.Op, ErrInvalidParameter)
}

// Check validates the parameters against a concrete image, applying the same
// rules as the filter itself.
func (s Spec) Check(img *Image) error {
	if err := s.Validate(); err != nil {
		return err
	}
	switch s.Op {
	case OpGaussian, OpConvolve:
		return validateConvolve(img, s.Kernel)
	}
	return img.Validate()
}

// Apply runs the described filter on img.
func Apply(img *Image, s Spec, opts ...Option) (*Image, error) {
	switch s.Op {
	case OpGaussian, OpConvolve:
		return Convolve(img, s.Kernel, opts...)
	case OpSobel:
		return Sobel(img, opts...)
	case OpMedian:
		return Median(img, s.Window, opts...)
	}
	return nil, fmt.Errorf("unknown filter %q: %w", s.Op, ErrInvalidParameter)
}

// ApplyTile runs the described filter over a padded tile and returns the
// tile's interior. The halo must already hold the right boundary samples,
// which is the case for tiles produced by Pad followed by Crop, so the
// result matches the corresponding region of Apply on the whole image.
// Image-level checks such as the kernel fitting the image are the caller's
// job, since a tile may legitimately be smaller than the kernel.
func ApplyTile(s Spec, tile *Padded) (*Image, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := tile.Validate(); err != nil {
		return nil, err
	}
	if tile.Radius < s.Radius() {
		return nil, fmt.Errorf("tile halo %d smaller than filter radius %d: %w", tile.Radius, s.Radius(), ErrInvalidParameter)
	}
	out := New(tile.Width, tile.Height)
	switch s.Op {
	case OpGaussian, OpConvolve:
		correlateRows(tile, s.Kernel, out.Pix, 0, tile.Height, true)
	case OpSobel:
		sobelRows(tile, out.Pix, 0, tile.Height)
	case OpMedian:
		medianRows(tile, s.Window, out.Pix, 0, tile.Height)
	}
	return out, nil
}
