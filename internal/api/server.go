// Package api exposes tracked items and rank history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kyleseneker/rankwatch/internal/logging"
	"github.com/kyleseneker/rankwatch/internal/metrics"
	"github.com/kyleseneker/rankwatch/internal/rank"
	"github.com/kyleseneker/rankwatch/internal/store"
)

// DefaultHistoryLimit applies when a history request carries no limit.
const DefaultHistoryLimit = 200

// Server wires HTTP handlers to the store.
type Server struct {
	router  chi.Router
	store   store.Store
	logger  logging.Logger
	httpSrv *http.Server
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st store.Store, m *metrics.Metrics, logger logging.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1/rank", func(r chi.Router) {
		r.Route("/track", func(r chi.Router) {
			r.Post("/", s.createItem)
			r.Get("/", s.listItems)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getItem)
				r.Put("/", s.updateItem)
				r.Delete("/", s.deleteItem)
			})
		})
		r.Get("/history/{id}", s.history)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server", "addr", addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server started by ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type trackRequest struct {
	Domain    string `json:"domain"`
	Keyword   string `json:"keyword"`
	Frequency string `json:"frequency"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Domain = strings.TrimSpace(req.Domain)
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Domain == "" || req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "domain and keyword are required")
		return
	}

	item, err := s.store.CreateItem(r.Context(), req.Domain, req.Keyword, rank.ParseFrequency(req.Frequency))
	if err != nil {
		s.logger.Error("Failed to create tracked item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create tracked item")
		return
	}
	s.logger.Info("Tracked item created", "item_id", item.ID, "keyword", item.Keyword, "domain", item.Domain)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.logger.Error("Failed to list tracked items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tracked items")
		return
	}
	if items == nil {
		items = []rank.TrackedItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// updateItem replaces the fields present in the body and keeps the rest.
func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	current, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	domain, keyword, freq := current.Domain, current.Keyword, current.Frequency
	if v := strings.TrimSpace(req.Domain); v != "" {
		domain = v
	}
	if v := strings.TrimSpace(req.Keyword); v != "" {
		keyword = v
	}
	if req.Frequency != "" {
		freq = rank.ParseFrequency(req.Frequency)
	}

	item, err := s.store.UpdateItem(r.Context(), id, domain, keyword, freq)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("Tracked item deleted", "item_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if _, err := s.store.GetItem(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	recs, err := s.store.ListRecords(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("Failed to list history", "item_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if recs == nil {
		recs = []rank.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "tracked item not found")
		return
	}
	s.logger.Error("Store request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
