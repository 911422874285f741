package resize

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidSpec is returned when a resize parameter is out of range.
var ErrInvalidSpec = errors.New("invalid resize spec")

// Percent scales both dimensions of img by pct (1-100), preserving aspect
// ratio. Dimensions are floored and clamped to a minimum of 1 pixel.
// The input image is never modified.
func Percent(img image.Image, pct int) (image.Image, error) {
	if pct < 1 || pct > 100 {
		return nil, fmt.Errorf("%w: percent %d outside 1-100", ErrInvalidSpec, pct)
	}

	bounds := img.Bounds()
	width := max(1, bounds.Dx()*pct/100)
	height := max(1, bounds.Dy()*pct/100)

	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// FitMaxSide shrinks img so that its longer side does not exceed maxSide.
// Images already within the bound are returned unchanged and the second
// return value is false.
func FitMaxSide(img image.Image, maxSide int) (image.Image, bool, error) {
	if maxSide < 1 {
		return nil, false, fmt.Errorf("%w: max side %d must be positive", ErrInvalidSpec, maxSide)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	longSide := max(width, height)
	if longSide <= maxSide {
		return img, false, nil
	}

	scale := float64(maxSide) / float64(longSide)
	newWidth := max(1, int(math.Round(float64(width)*scale)))
	newHeight := max(1, int(math.Round(float64(height)*scale)))

	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos), true, nil
}
