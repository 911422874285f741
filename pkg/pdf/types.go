package pdf

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when the input is empty or not a
// parseable PDF.
var ErrInvalidDocument = errors.New("invalid pdf document")

// Options control one recompression run.
type Options struct {
	// Quality is the JPEG quality used when re-encoding embedded images.
	Quality int `json:"quality"`
	// Downscale enables shrinking images whose longer side exceeds MaxSide.
	Downscale bool `json:"downscale"`
	// MaxSide is the pixel bound for the longer side of an embedded image.
	MaxSide int `json:"max_side"`
}

// DefaultOptions returns a balanced starting point: mild quality loss with
// downscaling of very large images.
func DefaultOptions() Options {
	return Options{
		Quality:   70,
		Downscale: true,
		MaxSide:   2048,
	}
}

func (o Options) validate() error {
	if o.Quality < 30 || o.Quality > 95 {
		return fmt.Errorf("quality %d outside 30-95", o.Quality)
	}
	if o.MaxSide < 512 || o.MaxSide > 8000 {
		return fmt.Errorf("max side %d outside 512-8000", o.MaxSide)
	}
	return nil
}

// Stats accumulates counters across all pages of one document.
type Stats struct {
	ImagesTotal      int   `json:"images_total"`
	ImagesReplaced   int   `json:"images_replaced"`
	ImagesDownscaled int   `json:"images_downscaled"`
	InputSize        int64 `json:"input_size_bytes"`
	OutputSize       int64 `json:"output_size_bytes"`
}

// DeltaPercent reports the size change relative to the input: negative
// values mean the document shrank. Returns 0 for an empty input to avoid
// dividing by zero.
func (s Stats) DeltaPercent() float64 {
	if s.InputSize == 0 {
		return 0
	}
	return (float64(s.OutputSize)/float64(s.InputSize) - 1) * 100
}
