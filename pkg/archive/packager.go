package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"strings"

	"slimfile/pkg/resize"
)

// JPEGQuality is the fixed quality used for JPEG outputs in a resize batch.
const JPEGQuality = 90

// InputFile is a named blob of raw image bytes.
type InputFile struct {
	Name string
	Data []byte
}

// FileResult records the outcome for one file in a batch. Err is nil on
// success, in which case OutputName holds the archive entry name.
type FileResult struct {
	Name       string
	OutputName string
	Err        error
}

// Summarize counts successful and failed results.
func Summarize(results []FileResult) (processed, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			processed++
		}
	}
	return processed, failed
}

// PackageBatch resizes every input image to pct percent of its original
// dimensions and bundles the outputs into a single ZIP archive. A file
// that fails to decode or encode is recorded as failed and skipped; it
// never aborts the rest of the batch. Entry order follows input order,
// and duplicate entry names are not deduplicated (last write wins).
func PackageBatch(files []InputFile, pct int) ([]byte, []FileResult, error) {
	if pct < 1 || pct > 100 {
		return nil, nil, fmt.Errorf("%w: percent %d outside 1-100", resize.ErrInvalidSpec, pct)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	results := make([]FileResult, 0, len(files))

	for _, f := range files {
		res := FileResult{Name: f.Name}

		data, entryName, err := processOne(f, pct)
		if err != nil {
			res.Err = err
			results = append(results, res)
			continue
		}

		w, err := zw.Create(entryName)
		if err == nil {
			_, err = w.Write(data)
		}
		if err != nil {
			res.Err = fmt.Errorf("write archive entry %s: %w", entryName, err)
			results = append(results, res)
			continue
		}

		res.OutputName = entryName
		results = append(results, res)
	}

	if err := zw.Close(); err != nil {
		return nil, results, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), results, nil
}

func processOne(f InputFile, pct int) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	resized, err := resize.Percent(img, pct)
	if err != nil {
		return nil, "", err
	}

	format := resize.ResolveFormat(f.Name)

	var buf bytes.Buffer
	if err := resize.Encode(&buf, resized, format, JPEGQuality); err != nil {
		return nil, "", err
	}

	entryName := fmt.Sprintf("%s_%dpct.%s", sanitizeBase(f.Name), pct, format.Ext())
	return buf.Bytes(), entryName, nil
}

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// sanitizeBase strips the extension, replaces path separators, and trims
// surrounding whitespace so the name is safe as an archive entry.
func sanitizeBase(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(pathSeparators.Replace(name))
}
