package pdf

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/core"
	"github.com/unidoc/unipdf/v3/model"

	"slimfile/pkg/resize"
)

func init() {
	if key := os.Getenv("UNIDOC_LICENSE_KEY"); key != "" {
		license.SetLicenseKey(key, "slimfile")
	}
}

// Recompressor rewrites the embedded raster images of a PDF: each image is
// optionally downscaled against a max-dimension bound, re-encoded as JPEG
// at a configured quality, and substituted back into the document.
type Recompressor struct {
	opts Options
}

// NewRecompressor validates opts and returns a recompressor.
func NewRecompressor(opts Options) (*Recompressor, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", resize.ErrInvalidSpec, err)
	}
	return &Recompressor{opts: opts}, nil
}

// Recompress processes every page of the document in order and returns the
// rewritten bytes plus the accumulated stats. A single image that fails to
// decode or re-encode is left untouched and skipped; only a document that
// cannot be parsed at all fails the run.
func (r *Recompressor) Recompress(data []byte) ([]byte, Stats, error) {
	stats := Stats{InputSize: int64(len(data))}

	if len(data) == 0 {
		return nil, stats, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	writer := model.NewPdfWriter()
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return nil, stats, fmt.Errorf("get page %d: %w", i, err)
		}

		r.recompressPage(page, &stats)

		if err := writer.AddPage(page); err != nil {
			return nil, stats, fmt.Errorf("add page %d: %w", i, err)
		}
	}

	var out bytes.Buffer
	if err := writer.Write(&out); err != nil {
		return nil, stats, fmt.Errorf("serialize document: %w", err)
	}

	stats.OutputSize = int64(out.Len())
	return out.Bytes(), stats, nil
}

// recompressPage walks the page's image XObjects in embedding order.
// Failures are per-image and deliberately non-fatal.
func (r *Recompressor) recompressPage(page *model.PdfPage, stats *Stats) {
	if page.Resources == nil {
		return
	}
	xobjs, ok := core.GetDict(page.Resources.XObject)
	if !ok {
		return
	}

	for _, name := range xobjs.Keys() {
		stream, ok := core.GetStream(xobjs.Get(name))
		if !ok {
			continue
		}
		subtype, ok := core.GetName(stream.PdfObjectDictionary.Get("Subtype"))
		if !ok || *subtype != "Image" {
			continue
		}

		stats.ImagesTotal++

		ximg, err := model.NewXObjectImageFromStream(stream)
		if err != nil {
			continue
		}
		downscaled, err := r.recompressImage(ximg)
		if err != nil {
			// The original stream is left in place; neither counter moves.
			continue
		}
		stats.ImagesReplaced++
		if downscaled {
			stats.ImagesDownscaled++
		}
	}
}

func (r *Recompressor) recompressImage(ximg *model.XObjectImage) (bool, error) {
	img, err := ximg.ToImage()
	if err != nil {
		return false, err
	}
	goImg, err := img.ToGoImage()
	if err != nil {
		return false, err
	}

	downscaled := false
	if r.opts.Downscale {
		resized, didResize, err := resize.FitMaxSide(goImg, r.opts.MaxSide)
		if err != nil {
			return false, err
		}
		downscaled = didResize
		goImg = resized
	}

	// Grayscale stays single-channel; everything else is normalized to RGB
	// so the DCT encoder never sees palette, CMYK or alpha data.
	var mimg *model.Image
	if gray, isGray := goImg.(*image.Gray); isGray {
		mimg, err = model.ImageHandling.NewGrayImageFromGoImage(gray)
	} else {
		mimg, err = model.ImageHandling.NewImageFromGoImage(resize.FlattenForJPEG(goImg))
	}
	if err != nil {
		return false, err
	}

	encoder := core.NewDCTEncoder()
	encoder.Quality = r.opts.Quality
	encoder.Width = int(mimg.Width)
	encoder.Height = int(mimg.Height)
	encoder.ColorComponents = mimg.ColorComponents
	encoder.BitsPerComponent = int(mimg.BitsPerComponent)

	ximg.Filter = encoder
	if err := ximg.SetImage(mimg, nil); err != nil {
		return false, err
	}
	// Flush the updated image back into the stream the page references.
	ximg.ToPdfObject()
	return downscaled, nil
}
