// Package api exposes the storefront catalog over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/catalog"
	"github.com/cozyberries/storefront/internal/domain"
	"github.com/cozyberries/storefront/internal/warmer"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, fetcher *catalog.Fetcher, cacheSvc *cache.Service, source domain.CatalogSource, wrm *warmer.Warmer, bus domain.EventBus, version string) *Server {
	handler := NewHandler(fetcher, cacheSvc, source, wrm, bus, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Catalog reads
	router.Get("/products", handler.ListProducts)
	router.Get("/products/{slug}", handler.GetProduct)
	router.Get("/products/{slug}/ratings", handler.GetProductRatings)
	router.Get("/categories", handler.ListCategories)
	router.Get("/categories/options", handler.CategoryOptions)

	// Cache administration
	router.Post("/cache/warm", handler.WarmCache)
	router.Post("/cache/invalidate", handler.InvalidateCache)
	router.Get("/cache/stats", handler.CacheStats)

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
