// Package httpapi exposes upload, query and ingestion status over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"docqa/internal/domain"
	"docqa/internal/ingest"
	"docqa/internal/service"
)

// Querier answers a question against a collection.
type Querier interface {
	Query(ctx context.Context, question, collection string) service.Payload
}

// Uploader accepts an uploaded document.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (service.UploadResult, error)
}

// Remover deletes an ingested collection.
type Remover interface {
	Remove(ctx context.Context, collection string) error
}

const uploadMessage = "File uploaded successfully. Processing started in background."

// Handler routes the API.
type Handler struct {
	query          Querier
	upload         Uploader
	remove         Remover
	status         domain.StatusStore
	maxUploadBytes int64
	logger         *slog.Logger
	mux            *http.ServeMux
}

// NewHandler builds the API router. status may be nil, in which case the
// status endpoint always reports not found. remove may be nil to disable
// collection deletion.
func NewHandler(query Querier, upload Uploader, remove Remover, status domain.StatusStore, maxUploadMB int, logger *slog.Logger) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		query:          query,
		upload:         upload,
		remove:         remove,
		status:         status,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
		mux:            http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("POST /api/upload", h.handleUpload)
	h.mux.HandleFunc("POST /api/query", h.handleQuery)
	h.mux.HandleFunc("GET /api/status/{collection}", h.handleStatus)
	if remove != nil {
		h.mux.HandleFunc("DELETE /api/collections/{collection}", h.handleDelete)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cors(h.logRequests(h.mux)).ServeHTTP(w, r)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "PDF Chatbot Backend Running"})
}

type uploadResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Collection string `json:"collection,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Status: "error", Message: fmt.Sprintf("No file provided: %v", err)})
		return
	}
	defer file.Close()

	res, err := h.upload.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Warn("upload rejected", "file", header.Filename, "error", err)
		var se *service.SaveError
		switch {
		case errors.As(err, &se):
			writeJSON(w, http.StatusOK, uploadResponse{Status: "error", Message: se.Error()})
		case errors.Is(err, domain.ErrUnsupportedDocument):
			writeJSON(w, http.StatusBadRequest, uploadResponse{Status: "error", Message: err.Error()})
		case errors.Is(err, domain.ErrQueueFull), errors.Is(err, ingest.ErrWorkerClosed):
			writeJSON(w, http.StatusServiceUnavailable, uploadResponse{Status: "error", Message: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, uploadResponse{Status: "error", Message: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Status:     "success",
		Message:    uploadMessage,
		Collection: res.Collection,
		Filename:   res.Filename,
	})
}

type queryRequest struct {
	Question   string `json:"question"`
	Collection string `json:"collection"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// handleQuery always answers 200 with a payload; failures are described inside it.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	var payload service.Payload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		payload = service.ErrorResponse(fmt.Errorf("invalid request body: %w", err))
	} else {
		payload = h.query.Query(r.Context(), req.Question, req.Collection)
	}
	encoded, err := service.Encode(payload)
	if err != nil {
		h.logger.Error("failed to encode query payload", "error", err)
		encoded, _ = service.Encode(service.ErrorResponse(err))
	}
	writeJSON(w, http.StatusOK, queryResponse{Response: encoded})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if h.status == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "status tracking is disabled"})
		return
	}
	st, err := h.status.Get(r.Context(), collection)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("collection %s not found", collection)})
	case err != nil:
		h.logger.Error("status lookup failed", "collection", collection, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status lookup failed"})
	default:
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if err := h.remove.Remove(r.Context(), collection); err != nil {
		h.logger.Error("collection delete failed", "collection", collection, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "collection": collection})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}
