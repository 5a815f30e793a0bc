package common

import (
	"time"

	"go-filters/pkg/filter"
)

const (
	// TileSize is the edge length of the tiles an image is cut into.
	TileSize = 256
)

// JobType values carried in JobMessage.Type.
const (
	JobTile = "tile"
)

// ImageTile is one unit of distributed work: a padded tile plus the filter
// to run on it.
type ImageTile struct {
	ImageID int            `json:"image_id"`
	TileID  int            `json:"tile_id"`
	X       int            `json:"x"`
	Y       int            `json:"y"`
	Spec    filter.Spec    `json:"spec"`
	Data    *filter.Padded `json:"data"`
}

// ProcessedImageTile is the filtered interior of an ImageTile, stored
// row-major with Width samples per row.
type ProcessedImageTile struct {
	ImageID int       `json:"image_id"`
	TileID  int       `json:"tile_id"`
	X       int       `json:"x"`
	Y       int       `json:"y"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Data    []float64 `json:"data"`
}

// ImageInfo is the per-image record the assembler needs to rebuild output.
type ImageInfo struct {
	ID            int         `json:"id"`
	InputPath     string      `json:"input_path"`
	OutputPath    string      `json:"output_path"`
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	ExpectedTiles int         `json:"expected_tiles"`
	Spec          filter.Spec `json:"spec"`
	Boundary      string      `json:"boundary"`
	StartTime     time.Time   `json:"start_time"`
}

type JobMessage struct {
	Type      string     `json:"type"`
	ImageTile *ImageTile `json:"image_tile,omitempty"`
}

type ResultMessage struct {
	ProcessedTile *ProcessedImageTile `json:"processed_tile"`
	WorkerID      string              `json:"worker_id"`
	ProcessTime   float64             `json:"process_time"`
}

// TileCount returns how many tileSize tiles cover a width×height image.
func TileCount(width, height, tileSize int) int {
	tilesX := (width + tileSize - 1) / tileSize
	tilesY := (height + tileSize - 1) / tileSize
	return tilesX * tilesY
}
