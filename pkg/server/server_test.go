package server

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unidoc/unipdf/v3/creator"

	"slimfile/pkg/config"
	"slimfile/pkg/pdf"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.LoadConfig("does_not_exist.yml")
	require.NoError(t, err)
	return New(cfg, nil, nil)
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func smallPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 99, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func smallPDF(t *testing.T) []byte {
	t.Helper()
	c := creator.New()
	c.NewPage()
	img, err := c.NewImageFromGoImage(image.NewRGBA(image.Rect(0, 0, 64, 48)))
	require.NoError(t, err)
	img.SetPos(10, 10)
	img.ScaleToWidth(100)
	require.NoError(t, c.Draw(img))

	var buf bytes.Buffer
	require.NoError(t, c.Write(&buf))
	return buf.Bytes()
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHandleResizeImages(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"a.png":      smallPNG(t, 40, 20),
		"b.png":      smallPNG(t, 10, 10),
		"broken.png": []byte("garbage"),
	})

	req := httptest.NewRequest(http.MethodPost, "/images/resize?pct=50", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Processed"))
	assert.Equal(t, "1", rec.Header().Get("X-Failed"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)
}

func TestHandleResizeImages_InvalidPercent(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{"a.png": smallPNG(t, 4, 4)})
	req := httptest.NewRequest(http.MethodPost, "/images/resize?pct=0", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResizeImages_NoFiles(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", nil)
	req := httptest.NewRequest(http.MethodPost, "/images/resize", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompressPDF_SingleFile(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{"doc.pdf": smallPDF(t)})
	req := httptest.NewRequest(http.MethodPost, "/pdf/compress?quality=70&downscale=1&maxSide=2048", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "doc-q70-dw.pdf")

	total, err := strconv.Atoi(rec.Header().Get("X-Images-Total"))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, rec.Header().Get("X-Images-Total"), rec.Header().Get("X-Images-Replaced"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestHandleCompressPDF_InvalidQuality(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{"doc.pdf": smallPDF(t)})
	req := httptest.NewRequest(http.MethodPost, "/pdf/compress?quality=10", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompressPDF_BadDocumentReportedPerFile(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "files", map[string][]byte{
		"ok.pdf":  smallPDF(t),
		"bad.pdf": []byte("not a pdf"),
	})
	req := httptest.NewRequest(http.MethodPost, "/pdf/compress", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// One success with data, one failure with an error message.
	out := rec.Body.String()
	assert.Contains(t, out, "invalid pdf document")
	assert.Contains(t, out, `"data"`)
}

func TestHandleRemotePDF_NotConfigured(t *testing.T) {
	srv := testServer(t)

	body, contentType := multipartBody(t, "file", map[string][]byte{"doc.pdf": smallPDF(t)})
	req := httptest.NewRequest(http.MethodPost, "/pdf/remote", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "report-q70-dw.pdf", downloadName("report.pdf", pdf.Options{Quality: 70, Downscale: true, MaxSide: 2048}))
	assert.Equal(t, "report-q95.pdf", downloadName("report.pdf", pdf.Options{Quality: 95, MaxSide: 2048}))
}
