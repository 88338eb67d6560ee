// Package server exposes the memory store, session registry and backup
// status over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rcliao/ripple-memory/internal/archive"
	"github.com/rcliao/ripple-memory/internal/backup"
	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/session"
	"github.com/rcliao/ripple-memory/internal/store"
	"github.com/rcliao/ripple-memory/internal/telemetry"
)

// Server is the admin HTTP server.
type Server struct {
	store    *store.MemoryStore
	sessions *session.Registry
	archiver *archive.Archiver
	backups  *backup.Scheduler
	backDir  string
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	searchK      int
	recallBudget int
	startTime    time.Time

	mux    *http.ServeMux
	server *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics serves m at /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBackups reports backup status from sched.
func WithBackups(sched *backup.Scheduler) Option {
	return func(s *Server) { s.backups = sched }
}

// WithBackupDir reports backups found in dir when no scheduler is attached.
func WithBackupDir(dir string) Option {
	return func(s *Server) { s.backDir = dir }
}

// WithSearchDefaults sets the default k and recall budget.
func WithSearchDefaults(k, recallBudget int) Option {
	return func(s *Server) {
		s.searchK = k
		s.recallBudget = recallBudget
	}
}

// New creates a Server.
func New(st *store.MemoryStore, sessions *session.Registry, archiver *archive.Archiver, opts ...Option) *Server {
	s := &Server{
		store:        st,
		sessions:     sessions,
		archiver:     archiver,
		logger:       slog.Default(),
		searchK:      5,
		recallBudget: 2000,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("GET /api/vector_count", s.handleVectorCount)
	mux.HandleFunc("GET /api/memories", s.handleListMemories)
	mux.HandleFunc("POST /api/memories", s.handleAddMemory)
	mux.HandleFunc("GET /api/memories/{position}", s.handleGetMemory)
	mux.HandleFunc("POST /api/memories/search", s.handleSearch)
	mux.HandleFunc("POST /api/memories/recall", s.handleRecall)
	mux.HandleFunc("GET /api/backups", s.handleBackups)
	mux.HandleFunc("POST /api/sessions", s.handleNewSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleAppendTurn)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleClearSession)
	mux.HandleFunc("POST /api/sessions/{id}/archive", s.handleArchive)

	s.mux = mux
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe starts the HTTP server. It returns http.ErrServerClosed
// after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("admin server starting", "addr", addr, "memories", s.store.Count())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", sw.status, "elapsed", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"uptime":   time.Since(s.startTime).String(),
		"memories": s.store.Count(),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleVectorCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   s.store.Count(),
	})
}

func (s *Server) handleBackups(w http.ResponseWriter, _ *http.Request) {
	var (
		info model.BackupInfo
		err  error
	)
	running := false
	switch {
	case s.backups != nil:
		info, err = s.backups.Info()
		running = s.backups.Running()
	case s.backDir != "":
		info, err = backup.Inspect(s.backDir)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "backup_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"info":    info,
		"running": running,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

// writeStoreError maps store and archive errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var (
		embErr   *store.EmbeddingError
		perErr   *store.PersistenceError
		integErr *store.IntegrityError
	)
	switch {
	case errors.Is(err, store.ErrEmptySummary), errors.Is(err, store.ErrInvalidK),
		errors.Is(err, archive.ErrEmptyHistory), errors.Is(err, archive.ErrEmptySummary):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &embErr):
		writeError(w, http.StatusBadGateway, "embedding_error", err.Error())
	case errors.As(err, &perErr):
		writeError(w, http.StatusInternalServerError, "persistence_error", err.Error())
	case errors.As(err, &integErr):
		writeError(w, http.StatusInternalServerError, "integrity_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
