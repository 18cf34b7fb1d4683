// Package server exposes the training pipeline over HTTP: session creation,
// status polling, playbook download and raw artifact access.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"greenprint/internal/artifact"
	"greenprint/internal/logging"
	"greenprint/internal/pipeline"
	"greenprint/internal/session"
)

// Server owns the HTTP surface and the background cleanup loop.
type Server struct {
	addr     string
	sessions *session.Manager
	service  *pipeline.Service
	store    *artifact.Store
	logger   *zap.Logger

	// cleanupInterval controls how often expired sessions are swept.
	cleanupInterval time.Duration

	httpServer *http.Server
}

// New creates a server. Expired sessions have their artifacts and outputs
// removed through the pipeline service.
func New(addr string, sessions *session.Manager, service *pipeline.Service, store *artifact.Store, logger *zap.Logger) *Server {
	s := &Server{
		addr:            addr,
		sessions:        sessions,
		service:         service,
		store:           store,
		logger:          logger,
		cleanupInterval: time.Hour,
	}
	sessions.OnExpire(service.RemoveOutputs)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/training/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/training/status/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/training/download/{id}", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/api/training/artifacts/{id}/{stage}", s.handleArtifact).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	r.Use(s.requestLogging)
	return r
}

// Run serves HTTP and sweeps expired sessions until the context is
// cancelled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.API("Server listening on %s", s.addr)
		s.logger.Info("server listening", zap.String("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := s.sessions.Cleanup(); n > 0 {
					s.logger.Info("expired sessions removed", zap.Int("count", n))
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// requestLogging logs each request with its status and latency.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
