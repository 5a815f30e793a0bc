// Package imageio reads and writes grayscale images for the filters.
package imageio

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"go-filters/pkg/filter"
)

// Load decodes the image at path, applies its EXIF orientation and converts
// it to 8-bit luma.
func Load(path string) (*filter.Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	img := filter.FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Save writes img as 8-bit gray. The format follows the file extension.
func Save(path string, img *filter.Image) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if err := imaging.Save(img.Gray(), path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

var patterns = []string{"*.png", "*.jpg", "*.jpeg", "*.webp"}

// FindImages lists the input images in dir, skipping files that look like
// earlier filter output.
func FindImages(dir string) ([]string, error) {
	var images []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if IsOutput(m) {
				continue
			}
			images = append(images, m)
		}
	}
	sort.Strings(images)
	return images, nil
}

// IsOutput reports whether path was written by OutputPath.
func IsOutput(path string) bool {
	return strings.Contains(filepath.Base(path), outputMarker)
}

const outputMarker = "_filtered_"

// OutputPath names the result of running label over input, inside dir.
func OutputPath(dir, input, label string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+outputMarker+label+".png")
}
