// Package web exposes the synchronizer to UI clients as a small JSON API.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/omirall/mobilitat/internal/narrative"
	"github.com/omirall/mobilitat/internal/obs"
	syncsvc "github.com/omirall/mobilitat/internal/sync"
)

type Server struct {
	sync      *syncsvc.Service
	narrative narrative.Generator
	mux       *http.ServeMux
	logger    *slog.Logger
}

func NewServer(svc *syncsvc.Service, gen narrative.Generator, logger *slog.Logger) *Server {
	if gen == nil {
		gen = narrative.Disabled{}
	}
	s := &Server{
		sync:      svc,
		narrative: gen,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /assets", s.handleListAssets)
	s.mux.HandleFunc("POST /assets", s.handleSaveAsset)
	s.mux.HandleFunc("POST /assets/delete", s.handleDeleteAssets)
	s.mux.HandleFunc("GET /reports", s.handleListReports)
	s.mux.HandleFunc("POST /reports", s.handleCreateReport)
	s.mux.HandleFunc("DELETE /reports/{id}", s.handleDeleteReport)
	s.mux.HandleFunc("POST /reports/delete", s.handleDeleteReports)
	s.mux.HandleFunc("POST /reports/{id}/pdf", s.handleAttachPDF)
	s.mux.HandleFunc("POST /sync", s.handleForceSync)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", obs.Handler())
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(obs.Instrument(s.mux))).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
