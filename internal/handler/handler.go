package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/iRajatDas/tinypicresizer/internal/worker"
	"github.com/iRajatDas/tinypicresizer/pkg/codec"
	"github.com/iRajatDas/tinypicresizer/pkg/metrics"
	"github.com/iRajatDas/tinypicresizer/pkg/sizefit"
)

// Handler handles HTTP requests for target-size image compression
type Handler struct {
	pool            *worker.Pool
	maxUploadMB     int
	defaultTargetKB int
	maxTargetKB     int
}

// New creates a new Handler
func New(pool *worker.Pool, defaultTargetKB, maxTargetKB, maxUploadMB int) *Handler {
	return &Handler{
		pool:            pool,
		maxUploadMB:     maxUploadMB,
		defaultTargetKB: defaultTargetKB,
		maxTargetKB:     maxTargetKB,
	}
}

// Shrink handles the /shrink endpoint: multipart image upload in, encoded
// image that fits under target_kb out.
func (h *Handler) Shrink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse multipart form with size limit
	if err := r.ParseMultipartForm(int64(h.maxUploadMB) << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			http.Error(w, "Content-Type must be multipart/form-data", http.StatusBadRequest)
		} else {
			http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		}
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	targetKB := h.defaultTargetKB
	if s := r.URL.Query().Get("target_kb"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			http.Error(w, "target_kb must be a positive integer", http.StatusBadRequest)
			return
		}
		targetKB = v
	}
	if targetKB > h.maxTargetKB {
		targetKB = h.maxTargetKB
	}

	format, err := codec.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, "Unsupported output format", http.StatusBadRequest)
		return
	}

	buf := codec.NewReadBuffer(int(header.Size))
	defer buf.Release()
	if _, err := io.Copy(buf, file); err != nil {
		http.Error(w, "Failed to read upload", http.StatusInternalServerError)
		return
	}

	img, err := codec.Decode(buf.Bytes())
	if err != nil {
		switch {
		case errors.Is(err, codec.ErrFileTooLarge), errors.Is(err, codec.ErrImageTooLarge):
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
		default:
			http.Error(w, "Not a decodable image", http.StatusUnsupportedMediaType)
		}
		return
	}

	// The pool owns the renderer from here: a worker releases it after the
	// session even if the client disconnects mid-search. Only the busy
	// rejection hands it back.
	renderer := codec.NewRenderer(img, format)

	req := sizefit.Request{
		TargetKB: targetKB,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
	}

	start := time.Now()
	res, err := h.pool.Submit(r.Context(), renderer, req)
	outcome := worker.Outcome(res, err)
	if err != nil {
		metrics.RecordSession(outcome, format.String(), time.Since(start).Seconds(), 0, 0, buf.Len(), 0)
		if errors.Is(err, worker.ErrPoolBusy) {
			renderer.Close()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Service busy, please try again", http.StatusServiceUnavailable)
			return
		}
		log.Printf("Size-fit error: %v", err)
		http.Error(w, "Compression failed", http.StatusInternalServerError)
		return
	}
	metrics.RecordSession(outcome, format.String(), time.Since(start).Seconds(),
		res.EncodeCalls, res.Rounds, buf.Len(), len(res.Data))

	w.Header().Set("Content-Type", format.MIME())
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Final-Width", strconv.Itoa(res.Width))
	w.Header().Set("X-Final-Height", strconv.Itoa(res.Height))
	w.Header().Set("X-Size-KB", strconv.Itoa(res.SizeKB))
	if res.BestEffort {
		// Could not fit under the target at any searched point; the client
		// gets the smallest result found.
		w.Header().Set("X-Best-Effort", "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
