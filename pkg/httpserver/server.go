// Package httpserver is the HTTP shell: the buyer-facing negotiation
// endpoints, the key-gated admin surface, and the operational probes.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/molbhav/molbhav/internal/catalog"
	"github.com/molbhav/molbhav/internal/circuitbreaker"
	"github.com/molbhav/molbhav/internal/hotstore"
	"github.com/molbhav/molbhav/internal/negotiation"
	"github.com/molbhav/molbhav/internal/storage"
	"github.com/molbhav/molbhav/pkg/healthprobe"
)

// requestTimeout bounds one request end to end, LLM call included.
const requestTimeout = 30 * time.Second

// Server provides the HTTP endpoints for negotiation, admin and probes.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker

	Negotiations *negotiation.Service
	Catalog      *catalog.Service
	Hot          hotstore.Store
	Durable      storage.Storage
	Breaker      *circuitbreaker.FailureRateBreaker // nil when no LLM is configured
	Feed         http.Handler                       // nil disables /admin/feed

	AdminKey           string
	CORSAllowedOrigins string
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	if cfg.CORSAllowedOrigins != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: strings.Split(cfg.CORSAllowedOrigins, ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "X-Session-Token", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	nh := newNegotiateHandler(cfg.Negotiations, cfg.Logger)
	r.Route("/negotiate", func(r chi.Router) {
		r.Post("/start", nh.start)
		r.Post("/{sessionID}/offer", nh.offer)
		r.Get("/{sessionID}/status", nh.status)
	})

	ah := newAdminHandler(cfg)
	r.Route("/admin", func(r chi.Router) {
		r.Use(ah.requireKey)
		r.Get("/products", ah.listProducts)
		r.Post("/products", ah.createProduct)
		r.Get("/products/{productID}", ah.getProduct)
		r.Put("/products/{productID}", ah.updateProduct)
		r.Delete("/products/{productID}", ah.deactivateProduct)
		r.Get("/sessions/{sessionID}", ah.sessionHistory)
		r.Get("/status", ah.systemStatus)
		if cfg.Feed != nil {
			r.Get("/feed", cfg.Feed.ServeHTTP)
		}
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server: server,
		logger: cfg.Logger,
	}
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}

// requestLogger emits one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http-request",
				zap.String("request-id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
