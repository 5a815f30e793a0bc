package filter

import "errors"

var (
	// ErrInvalidParameter reports a bad kernel size, window size or sigma,
	// or a kernel that does not fit inside the image.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidImage reports an image with a zero dimension or a pixel
	// buffer that does not match its dimensions.
	ErrInvalidImage = errors.New("invalid image")
)
