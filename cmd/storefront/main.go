// Storefront server: cart, catalog and repair endpoints over the Shopify
// Storefront API, plus the MCP transport and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"storefront/internal/cache"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/mail"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/shopify"
	"storefront/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg)

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.Shopify.StoreDomain),
		slog.String("api_version", cfg.Shopify.APIVersion),
		slog.String("transport", cfg.Shopify.Transport),
		slog.Bool("preserve_untouched_lines", cfg.PreserveUntouchedLines),
		slog.Bool("cache_enabled", cfg.RedisURL != ""),
		slog.Bool("mail_enabled", cfg.SMTP.Enabled()),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gatewayMetrics := metrics.NewGateway(registry)
	httpMetrics := metrics.NewHTTP(registry)

	rt, err := transport.New(transport.Kind(cfg.Shopify.Transport), cfg.Shopify.Timeout)
	if err != nil {
		return fmt.Errorf("creating transport: %w", err)
	}
	gw := shopify.NewClient(shopify.Options{
		StoreDomain: cfg.Shopify.StoreDomain,
		APIVersion:  cfg.Shopify.APIVersion,
		Token:       cfg.Shopify.Token,
		Transport:   rt,
		Timeout:     cfg.Shopify.Timeout,
		Logger:      logger,
		Metrics:     gatewayMetrics,
	})

	carts := cart.NewService(gw, cart.Options{
		PreserveUntouched: cfg.PreserveUntouchedLines,
	}, logger, gatewayMetrics)

	responseCache, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var repairs handler.RepairNotifier
	if cfg.SMTP.Enabled() {
		mailer, err := mail.New(mail.Options{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			StaffEmail: cfg.SMTP.StaffEmail,
			Timeout:    15 * time.Second,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("creating mailer: %w", err)
		}
		repairs = mailer
	}

	h := handler.New(handler.Options{
		Carts:              carts,
		Catalog:            gw,
		Repairs:            repairs,
		Cache:              responseCache,
		Metrics:            metrics.Handler(registry),
		FeaturedCollection: cfg.FeaturedCollection,
		Logger:             logger,
	})

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → metrics → handler
	// Recovery must be outermost to catch panics from logging middleware
	// Metrics must sit directly on the mux to see the matched route
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(httpMetrics),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newCache connects the catalog response cache. It returns a nil cache when
// REDIS_URL is unset. An unreachable Redis is logged and the cache still
// returned; requests bypass it until Redis answers.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, catalog cache will be bypassed",
			slog.String("addr", opts.Addr),
			slog.String("error", err.Error()),
		)
	}

	c := cache.New(client, cache.Options{TTL: cfg.CatalogCacheTTL, Logger: logger})
	return c, func() { _ = client.Close() }, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
