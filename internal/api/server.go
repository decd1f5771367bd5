// Package api exposes the sync engine over HTTP.
//
// Every response is a JSON envelope:
//
//	{"status": "success", "data": ...}
//	{"status": "error", "error": {"code": "NOT_FOUND", "message": "..."}}
//
// Engine error codes map to HTTP status codes; see statusFor.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roach88/marksync/internal/engine"
	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/source"
)

// ReaderFunc opens the reader for family over path.
type ReaderFunc func(family ir.SourceFamily, path string) (source.Reader, error)

// Server serves the sync engine.
type Server struct {
	engine  *engine.Engine
	readers ReaderFunc
	paths   map[ir.SourceFamily]string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithReaders replaces source.New as the reader factory.
func WithReaders(f ReaderFunc) Option {
	return func(s *Server) {
		s.readers = f
	}
}

// WithDefaultPath sets the source path used when a sync request names none.
func WithDefaultPath(family ir.SourceFamily, path string) Option {
	return func(s *Server) {
		if path != "" {
			s.paths[family] = path
		}
	}
}

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server over e.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		readers: func(family ir.SourceFamily, path string) (source.Reader, error) {
			return source.New(family, path)
		},
		paths:  make(map[ir.SourceFamily]string),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHTTP mounts the API routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Post("/sync/{family}", s.handleSync)
	r.Get("/sync/batches", s.handleListBatches)
	r.Get("/sync/batch/{id}", s.handleGetBatch)
	r.Post("/sync/commit/{id}", s.handleCommit)
	r.Post("/sync/reject/{id}", s.handleReject)

	r.Get("/bookmarks", s.handleListBookmarks)
	r.Get("/bookmarks/{id}", s.handleGetBookmark)
	r.Get("/bookmarks/{id}/history", s.handleHistory)
	r.Post("/bookmarks/{id}/revert/{historyID}", s.handleRevert)

	r.Get("/stats", s.handleStats)
}

// Handler returns a router with the API routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, string(engine.CodeNotFound), "no route for "+r.Method+" "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, string(engine.CodeInvalidInput), "method "+r.Method+" not allowed", nil)
	})

	s.RegisterHTTP(r)
	return r
}

// requestLogger logs one line per request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
