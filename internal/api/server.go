package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/sweep"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, scoring domain.ScoringConfig, svc *sweep.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, forest *model.Forest, version string) *Server {
	handler := NewHandler(svc, repo, cache, bus, forest, scoring, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Sweep submission, rate limited per tenant
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cache, scoring.RateLimitPerMin))
			if cfg.MaxUploadBytes > 0 {
				r.Use(func(next http.Handler) http.Handler {
					return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
						req.Body = http.MaxBytesReader(w, req.Body, cfg.MaxUploadBytes)
						next.ServeHTTP(w, req)
					})
				})
			}
			r.Post("/sweep", handler.Sweep)
			// Legacy path kept for existing upload clients.
			r.Post("/upload_sweep", handler.Sweep)
		})

		// Sweep retrieval
		r.Get("/sweeps", handler.ListSweeps)
		r.Get("/sweeps/{id}", handler.GetSweep)

		// Alerts persisted by the async worker
		r.Get("/alerts", handler.ListAlerts)

		// Loaded model metadata
		r.Get("/model", handler.ModelInfo)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
