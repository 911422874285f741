package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Optimize runs a lossless structural pass over the document: redundant
// objects are removed and duplicate resources deduplicated. Image data is
// not touched, so it composes well after Recompress.
func Optimize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, nil); err != nil {
		return nil, fmt.Errorf("optimize document: %w", err)
	}
	return out.Bytes(), nil
}
