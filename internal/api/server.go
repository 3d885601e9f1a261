// Package api serves the cleaner over HTTP.
//
// Routes:
//   - POST /api/clean        clean a batch of tables sent in the body
//   - GET  /api/runs         list stored runs, newest first
//   - GET  /api/runs/{id}    fetch one stored report
//   - GET  /api/states       terminal-state tallies across stored runs
//   - GET  /health           liveness
//   - GET  /metrics          Prometheus exposition
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/config"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/metrics"
	"github.com/contactkeval/chain-clean/internal/store"
)

// RunStore is the slice of the run history the server needs.
type RunStore interface {
	SaveRun(ctx context.Context, rep arb.Report) error
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
	GetRun(ctx context.Context, runID string) (arb.Report, error)
	CountStates(ctx context.Context) (map[arb.State]int, error)
}

// Server wires the router to the cleaner, the run store and the metrics.
type Server struct {
	cfg      config.ServerConfig
	defaults arb.Options
	runs     RunStore
	metrics  *metrics.Metrics
	router   chi.Router
}

// New builds the server. runs may be nil, which disables the history
// endpoints; m may be nil, which disables /metrics.
func New(cfg config.ServerConfig, defaults arb.Options, runs RunStore, m *metrics.Metrics) *Server {
	s := &Server{cfg: cfg, defaults: defaults, runs: runs, metrics: m}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/clean", s.handleClean)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/states", s.handleStates)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("event=server_start addr=%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	logger.Infof("event=server_shutdown addr=%s", addr)
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugf("event=http_request method=%s path=%s status=%d bytes=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}
