package resize

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"

	_ "image/gif"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp"
)

// Encode writes img to w in the given format. quality applies to JPEG only;
// other formats use their encoder defaults.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	var err error

	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, FlattenForJPEG(img), &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWEBP:
		err = webp.Encode(w, img, &webp.Options{Quality: 90})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, nil)
	default:
		err = png.Encode(w, img)
	}

	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

// FlattenForJPEG converts paletted and alpha-carrying images to plain RGB,
// compositing any transparency over white. JPEG cannot represent either mode.
func FlattenForJPEG(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return img
	}

	rgb := image.NewRGBA(img.Bounds())
	draw.Draw(rgb, rgb.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgb, rgb.Bounds(), img, img.Bounds().Min, draw.Over)
	return rgb
}
