// Storefront catalog service: a cache-first read layer for the product
// catalog, with warming and event-driven invalidation.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cozyberries/storefront/internal/api"
	"github.com/cozyberries/storefront/internal/bus"
	"github.com/cozyberries/storefront/internal/cache"
	"github.com/cozyberries/storefront/internal/catalog"
	"github.com/cozyberries/storefront/internal/domain"
	"github.com/cozyberries/storefront/internal/repository"
	"github.com/cozyberries/storefront/internal/warmer"
	"github.com/cozyberries/storefront/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("STOREFRONT_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting storefront",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("STOREFRONT_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"source", cfg.Source.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.Bus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize catalog source
	source, err := repository.New(cfg.Source)
	if err != nil {
		slog.Error("failed to initialize catalog source", "error", err)
		os.Exit(1)
	}
	defer source.Close()
	slog.Info("catalog source initialized", "driver", cfg.Source.Driver)

	// Initialize distributed store and cache service
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	cacheSvc := cache.NewService(store, cfg.Cache)
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize event bus
	busImpl, err := bus.New(cfg.Bus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.Bus.Type)

	// Initialize cold-path fetcher and warmer
	fetcher := catalog.NewFetcher(cacheSvc, source, cfg.Cache.LocalTierTTL)
	warmerJob := warmer.New(cacheSvc, source, cfg.Warmer)

	// Initialize invalidation worker
	invalidator := worker.NewInvalidator(busImpl, cacheSvc, fetcher)
	if err := invalidator.Start(); err != nil {
		slog.Error("failed to start invalidation worker", "error", err)
		os.Exit(1)
	}

	// Warm the cache at startup unless disabled. Startup does not block on
	// the run and the service serves cold reads until it completes.
	if os.Getenv("STOREFRONT_SKIP_WARMUP") != "true" {
		go func() {
			report, err := warmerJob.Run(ctx)
			if err != nil {
				slog.Error("startup cache warm aborted", "error", err)
				return
			}
			slog.Info("startup cache warm complete",
				"warmed", report.Warmed,
				"errors", len(report.Errors),
			)
		}()
	}

	// Initialize server
	srv := api.NewServer(cfg.Server, fetcher, cacheSvc, source, warmerJob, busImpl, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("storefront is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the invalidation worker first so no eviction races shutdown
	if err := invalidator.Stop(); err != nil {
		slog.Error("failed to stop invalidation worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("storefront shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ================================================")
	fmt.Println("            COZYBERRIES STOREFRONT")
	fmt.Println("        Catalog reads, cache first.")
	fmt.Println("  ================================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /products                 - List products (cached)")
	fmt.Println("    GET  /products/{slug}          - Get product by slug (cached)")
	fmt.Println("    GET  /products/{slug}/ratings  - Product rating summary (cached)")
	fmt.Println("    GET  /categories               - List categories (cached)")
	fmt.Println("    GET  /categories/options       - Category filter options (cached)")
	fmt.Println("    POST /cache/warm               - Warm the catalog cache")
	fmt.Println("    POST /cache/invalidate         - Publish an invalidation event")
	fmt.Println("    GET  /cache/stats              - Cache counters")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
