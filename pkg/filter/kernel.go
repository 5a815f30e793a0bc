package filter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Kernel is a square grid of weights stored row-major. Size is odd, so the
// center cell is (Size/2, Size/2).
type Kernel struct {
	Size    int       `json:"size"`
	Weights []float64 `json:"weights"`
}

// NewKernel wraps weights in a Kernel after checking the shape.
func NewKernel(size int, weights []float64) (*Kernel, error) {
	if err := checkOddSize("kernel size", size); err != nil {
		return nil, err
	}
	if len(weights) != size*size {
		return nil, fmt.Errorf("kernel of size %d needs %d weights, got %d: %w", size, size*size, len(weights), ErrInvalidParameter)
	}
	w := make([]float64, len(weights))
	copy(w, weights)
	return &Kernel{Size: size, Weights: w}, nil
}

// GaussianKernel creates a normalized Gaussian kernel of the given size.
// Each cell at offset (x, y) from the center gets exp(-(x²+y²)/(2σ²)) before
// every cell is divided by the total.
func GaussianKernel(size int, sigma float64) (*Kernel, error) {
	if err := checkOddSize("kernel size", size); err != nil {
		return nil, err
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return nil, fmt.Errorf("sigma %v must be positive: %w", sigma, ErrInvalidParameter)
	}

	twoSigmaSq := 2 * sigma * sigma
	// σ² underflowed; the Gaussian has collapsed to its limit, a delta.
	if twoSigmaSq == 0 {
		return IdentityKernel(size)
	}

	k := &Kernel{Size: size, Weights: make([]float64, size*size)}
	center := size / 2

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x := float64(i - center)
			y := float64(j - center)
			k.Weights[i*size+j] = math.Exp(-(x*x + y*y) / twoSigmaSq)
		}
	}

	// Normalize kernel
	sum := floats.Sum(k.Weights)
	for i := range k.Weights {
		k.Weights[i] /= sum
	}

	return k, nil
}

// IdentityKernel returns a kernel whose only non-zero weight is a 1 at the
// center.
func IdentityKernel(size int) (*Kernel, error) {
	if err := checkOddSize("kernel size", size); err != nil {
		return nil, err
	}
	k := &Kernel{Size: size, Weights: make([]float64, size*size)}
	k.Weights[(size/2)*size+size/2] = 1
	return k, nil
}

// SobelX returns the horizontal-gradient Sobel kernel.
func SobelX() *Kernel {
	return &Kernel{Size: 3, Weights: []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}}
}

// SobelY returns the vertical-gradient Sobel kernel.
func SobelY() *Kernel {
	return &Kernel{Size: 3, Weights: []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}}
}

// At returns the weight in the given kernel row and column.
func (k *Kernel) At(row, col int) float64 {
	return k.Weights[row*k.Size+col]
}

// Radius is the number of cells between the center and the edge.
func (k *Kernel) Radius() int {
	return (k.Size - 1) / 2
}

// Sum returns the total of all weights.
func (k *Kernel) Sum() float64 {
	return floats.Sum(k.Weights)
}

// Validate checks the size and weight count.
func (k *Kernel) Validate() error {
	if k == nil {
		return fmt.Errorf("nil kernel: %w", ErrInvalidParameter)
	}
	if err := checkOddSize("kernel size", k.Size); err != nil {
		return err
	}
	if len(k.Weights) != k.Size*k.Size {
		return fmt.Errorf("kernel of size %d has %d weights: %w", k.Size, len(k.Weights), ErrInvalidParameter)
	}
	return nil
}

func checkOddSize(what string, size int) error {
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("%s %d must be odd and positive: %w", what, size, ErrInvalidParameter)
	}
	return nil
}
