// Package server assembles the chi router that fronts every wire dialect
// and the core components behind them, grounded on the teacher's
// internal/api.Router: the same middleware chain order, minus the
// telemetry middleware (no OpenTelemetry collector in this process), plus
// a CORS layer corrected to return 204 on OPTIONS per §6 instead of the
// teacher's 200.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/oriys/microstack/internal/dialect"
	"github.com/oriys/microstack/internal/logs"
	"github.com/oriys/microstack/internal/metrics"
	"github.com/oriys/microstack/internal/objects"
	"github.com/oriys/microstack/internal/registry"
	"github.com/oriys/microstack/internal/runtime"
	"github.com/oriys/microstack/internal/stacks"
)

// Config wires a Server's components.
type Config struct {
	Registry     *registry.Registry
	Runtime      *runtime.Runtime
	Ledger       *logs.Ledger
	Store        *objects.Store
	Orchestrator *stacks.Orchestrator
	Metrics      *metrics.Metrics
	Logger       *logrus.Logger
}

// Server owns the HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// New assembles the router and the underlying http.Server, not yet
// listening.
func New(addr string, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5, "application/json", "application/xml", "text/plain"))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(dialect.CORSMiddleware)

	r.Get("/microstack/health", dialect.Health)
	r.Get("/microstack/status", dialect.NewStatusHandler(cfg.Metrics).ServeHTTP)

	fn := dialect.NewFunctionHandler(cfg.Registry, cfg.Runtime)
	r.Route("/2015-03-31/functions", func(r chi.Router) {
		r.Post("/", fn.Create)
		r.Get("/", fn.List)
		r.Get("/{name}", fn.Get)
		r.Delete("/{name}", fn.Delete)
		r.Put("/{name}/code", fn.UpdateCode)
		r.Put("/{name}/configuration", fn.UpdateConfiguration)
		r.Post("/{name}/invocations", fn.Invoke)
	})

	logsHandler := dialect.NewLogsHandler(cfg.Ledger)
	stacksHandler := dialect.NewStacksHandler(cfg.Orchestrator)
	objectHandler := dialect.NewObjectHandler(cfg.Store)

	r.Post("/", dialect.RootDispatcher(logsHandler, stacksHandler, objectHandler))
	r.NotFound(objectHandler.ServeHTTP)
	r.MethodNotAllowed(objectHandler.ServeHTTP)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving HTTP until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.httpServer.Addr).Info("microstack listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("microstack shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
