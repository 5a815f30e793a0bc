// Package filter implements the spatial filters: correlation with a square
// kernel (Gaussian smoothing and generic kernels), Sobel gradient magnitude
// and sliding-window median.
//
// Every filter is a pure function from (Image, parameters) to a new Image of
// the same dimensions. Pixels outside the image are supplied by a Boundary
// mode, zero padding by default. Work is split into row bands by an Executor;
// every executor produces output bit-identical to a sequential row-major pass.
//
//	k, _ := filter.GaussianKernel(5, 1)
//	smooth, err := filter.Convolve(img, k)
//	edges, err := filter.Sobel(img, filter.WithExecutor(filter.Parallel{}))
//	clean, err := filter.Median(img, 3)
package filter
