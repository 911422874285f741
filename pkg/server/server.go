package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"slimfile/pkg/archive"
	"slimfile/pkg/batch"
	"slimfile/pkg/cache"
	"slimfile/pkg/config"
	"slimfile/pkg/pdf"
	"slimfile/pkg/remote"
	"slimfile/pkg/resize"
)

// Server exposes the resize and recompression pipelines over HTTP. The
// cache and remote client are optional; nil disables the feature.
type Server struct {
	cfg         *config.Config
	resultCache *cache.Cache
	remote      *remote.Client
}

func New(cfg *config.Config, resultCache *cache.Cache, remoteClient *remote.Client) *Server {
	return &Server{
		cfg:         cfg,
		resultCache: resultCache,
		remote:      remoteClient,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/images/resize", s.handleResizeImages)
	mux.HandleFunc("/pdf/compress", s.handleCompressPDF)
	mux.HandleFunc("/pdf/remote", s.handleRemotePDF)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleResizeImages resizes every uploaded image by the requested
// percentage and streams back a ZIP of the results.
func (s *Server) handleResizeImages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, err := s.readUploads(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	pct := intParam(r, "pct", s.cfg.Defaults.ResizePct)

	inputs := make([]archive.InputFile, len(files))
	for i, f := range files {
		inputs[i] = archive.InputFile{Name: f.Name, Data: f.Data}
	}

	zipBytes, results, err := archive.PackageBatch(inputs, pct)
	if errors.Is(err, resize.ErrInvalidSpec) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	processed, failed := archive.Summarize(results)
	log.Printf("resize batch: %d processed, %d failed, pct=%d", processed, failed, pct)

	downloadName := fmt.Sprintf("resized_%dpct_%s.zip", pct, time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	w.Header().Set("X-Processed", strconv.Itoa(processed))
	w.Header().Set("X-Failed", strconv.Itoa(failed))
	w.Write(zipBytes)
}

type pdfResult struct {
	Name         string     `json:"name"`
	DownloadName string     `json:"download_name,omitempty"`
	Error        string     `json:"error,omitempty"`
	Stats        *pdf.Stats `json:"stats,omitempty"`
	DeltaPercent float64    `json:"delta_percent"`
	Data         []byte     `json:"data,omitempty"`
}

type cachedPDF struct {
	Data  []byte    `json:"data"`
	Stats pdf.Stats `json:"stats"`
}

// handleCompressPDF recompresses the embedded images of each uploaded PDF.
// A single upload returns the document directly with stats in headers;
// multiple uploads return a JSON array with base64 document data.
func (s *Server) handleCompressPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, err := s.readUploads(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	opts := pdf.Options{
		Quality:   intParam(r, "quality", s.cfg.Defaults.JPEGQuality),
		Downscale: boolParam(r, "downscale", s.cfg.Defaults.Downscale),
		MaxSide:   intParam(r, "maxSide", s.cfg.Defaults.MaxSide),
	}
	optimize := boolParam(r, "optimize", false)

	recompressor, err := pdf.NewRecompressor(opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items := make([]batch.Item, len(files))
	for i, f := range files {
		items[i] = batch.Item{Name: f.Name, Data: f.Data}
	}

	results := make([]pdfResult, len(items))
	next := 0
	runResults := batch.Run(r.Context(), items, func(ctx context.Context, item batch.Item) error {
		res := s.compressOne(ctx, item, recompressor, opts, optimize)
		results[next] = res
		next++
		if res.Error != "" {
			return errors.New(res.Error)
		}
		return nil
	})
	// Items skipped by cancellation never reached the pipeline; surface the
	// context error for them.
	for i, rr := range runResults {
		if rr.Err != nil && results[i].Name == "" {
			results[i] = pdfResult{Name: rr.Name, Error: rr.Err.Error()}
		}
	}

	if len(results) == 1 && results[0].Error == "" {
		res := results[0]
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+res.DownloadName+`"`)
		w.Header().Set("X-Images-Total", strconv.Itoa(res.Stats.ImagesTotal))
		w.Header().Set("X-Images-Replaced", strconv.Itoa(res.Stats.ImagesReplaced))
		w.Header().Set("X-Images-Downscaled", strconv.Itoa(res.Stats.ImagesDownscaled))
		w.Header().Set("X-Delta-Percent", strconv.FormatFloat(res.DeltaPercent, 'f', 1, 64))
		w.Write(res.Data)
		return
	}

	writeJSON(w, results)
}

func (s *Server) compressOne(ctx context.Context, item batch.Item, recompressor *pdf.Recompressor, opts pdf.Options, optimize bool) pdfResult {
	res := pdfResult{
		Name:         item.Name,
		DownloadName: downloadName(item.Name, opts),
	}

	cacheKey := ""
	if s.resultCache != nil {
		cacheKey = s.resultCache.ContentKey(item.Data,
			"q"+strconv.Itoa(opts.Quality),
			"dw"+strconv.FormatBool(opts.Downscale),
			"ms"+strconv.Itoa(opts.MaxSide),
			"opt"+strconv.FormatBool(optimize),
		)
		var cached cachedPDF
		if err := s.resultCache.GetJSON(ctx, cacheKey, &cached); err == nil {
			res.Data = cached.Data
			res.Stats = &cached.Stats
			res.DeltaPercent = cached.Stats.DeltaPercent()
			return res
		}
	}

	out, stats, err := recompressor.Recompress(item.Data)
	if err != nil {
		log.Printf("compress %s: %v", item.Name, err)
		res.Error = err.Error()
		return res
	}

	if optimize {
		optimized, err := pdf.Optimize(out)
		if err != nil {
			log.Printf("optimize %s: %v", item.Name, err)
		} else {
			out = optimized
			stats.OutputSize = int64(len(out))
		}
	}

	res.Data = out
	res.Stats = &stats
	res.DeltaPercent = stats.DeltaPercent()

	if s.resultCache != nil {
		ttl := time.Duration(s.cfg.Cache.TTLHours * float64(time.Hour))
		if ttl <= 0 {
			ttl = cache.DefaultResultTTL
		}
		if err := s.resultCache.SetJSON(ctx, cacheKey, cachedPDF{Data: out, Stats: stats}, ttl); err != nil {
			log.Printf("cache %s: %v", item.Name, err)
		}
	}

	return res
}

// handleRemotePDF delegates compression of a single PDF to the configured
// remote service.
func (s *Server) handleRemotePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.remote == nil {
		http.Error(w, "remote compression not configured", http.StatusServiceUnavailable)
		return
	}

	files, err := s.readUploads(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) != 1 {
		http.Error(w, "exactly one file required", http.StatusBadRequest)
		return
	}

	out, err := s.remote.Compress(r.Context(), files[0].Name, files[0].Data)
	if err != nil {
		log.Printf("remote compress %s: %v", files[0].Name, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+files[0].Name+`"`)
	w.Write(out)
}

type upload struct {
	Name string
	Data []byte
}

// readUploads collects all parts of the "files" multipart field ("file" is
// accepted as an alias).
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]upload, error) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = append(headers, r.MultipartForm.File["files"]...)
		headers = append(headers, r.MultipartForm.File["file"]...)
	}

	uploads := make([]upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", h.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read upload %s: %w", h.Filename, err)
		}
		uploads = append(uploads, upload{Name: h.Filename, Data: data})
	}
	return uploads, nil
}

// downloadName suggests an output filename that encodes the settings, e.g.
// report-q70-dw.pdf.
func downloadName(name string, opts pdf.Options) string {
	base := strings.TrimSuffix(name, ".pdf")
	suffix := ""
	if opts.Downscale {
		suffix = "-dw"
	}
	return fmt.Sprintf("%s-q%d%s.pdf", base, opts.Quality, suffix)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolParam(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}
