// Package server exposes probes and installs over a local HTTP API.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/greenwave/gwupdate/internal/config"
	"github.com/greenwave/gwupdate/internal/desktop"
	"github.com/greenwave/gwupdate/internal/probe"
	"github.com/greenwave/gwupdate/internal/update"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
	rateWindow      = time.Minute
)

// Backend is the work the API delegates to. *service.Service implements it.
type Backend interface {
	ResolveDir(dir string) string
	Probe(ctx context.Context, dir string) probe.Result
	Install(ctx context.Context, req update.Request, progress update.ProgressFunc) update.Result
	Open(dir string) desktop.Result
}

// Server serves the HTTP API. Install jobs started through it run under a
// base context that Close cancels.
type Server struct {
	backend Backend
	cfg     config.ServerConfig
	logger  *zap.Logger

	jobs   *jobRegistry
	probes singleflight.Group

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	handler http.Handler
}

// New builds a Server. Call Close when done.
func New(backend Backend, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend: backend,
		cfg:     cfg,
		logger:  logger,
		jobs:    newJobRegistry(cfg.JobRetentionDuration()),
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/probe", s.handleProbe)
		r.Post("/open", s.handleOpen)
		r.Get("/installs/{id}", s.handleGetJob)

		r.Group(func(r chi.Router) {
			r.Use(installRateLimit(s.cfg.InstallRateLimit, rateWindow))
			r.Post("/install", s.handleInstall)
			r.Post("/installs", s.handleStartJob)
		})
	})
	return r
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// and waits for running install jobs to stop.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Cancel jobs first so in-flight synchronous installs unblock.
	s.Close()
	err := srv.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// Close cancels running install jobs and waits for them to finish.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}
