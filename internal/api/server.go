package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/content-capture/internal/capture"
	"github.com/JakeFAU/content-capture/internal/ingest"
	"github.com/JakeFAU/content-capture/internal/metrics"
	"github.com/JakeFAU/content-capture/internal/search"
)

// Captures is the ingestion surface the server drives.
type Captures interface {
	Submit(ctx context.Context, req ingest.Request) (capture.Record, error)
	Reset(ctx context.Context, id string) (capture.Record, error)
	Get(ctx context.Context, id string) (capture.Record, error)
}

// Searcher answers search queries.
type Searcher interface {
	Search(ctx context.Context, q search.Query) (search.Results, error)
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Config controls server behavior.
type Config struct {
	// APIKey enables X-API-Key authentication on /v1 routes when set.
	APIKey         string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the ingestion service and search engine.
type Server struct {
	router   chi.Router
	captures Captures
	searcher Searcher
	checks   map[string]ReadinessCheck
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	captures Captures,
	searcher Searcher,
	checks map[string]ReadinessCheck,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		captures: captures,
		searcher: searcher,
		checks:   checks,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Route("/captures", func(r chi.Router) {
			r.Post("/", s.submitCapture)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getCapture)
				r.Post("/retry", s.retryCapture)
			})
		})
		r.Get("/search", s.search)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	URL     string                  `json:"url"`
	Notes   string                  `json:"notes"`
	Channel *capture.ChannelContext `json:"channelContext"`
}

func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rec, err := s.captures.Submit(r.Context(), ingest.Request{URL: req.URL, Notes: req.Notes, Channel: req.Channel})
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": rec.ID, "status": rec.Status, "sourceType": rec.SourceType})
}

func (s *Server) getCapture(w http.ResponseWriter, r *http.Request) {
	rec, err := s.captures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) retryCapture(w http.ResponseWriter, r *http.Request) {
	rec, err := s.captures.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": rec.ID, "status": rec.Status})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	size, err := intParam(q.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be an integer")
		return
	}

	results, err := s.searcher.Search(r.Context(), search.Query{Text: text, Page: page, PageSize: size})
	if err != nil {
		s.logger.Error("search failed", zap.String("query", text), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeCaptureError(w http.ResponseWriter, err error) {
	var dup *capture.DuplicateError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "existingId": dup.ExistingID})
	case errors.Is(err, capture.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, capture.ErrNotFound):
		writeError(w, http.StatusNotFound, "capture not found")
	case errors.Is(err, ingest.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("capture request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
