package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"karebot/internal/api"
	"karebot/internal/chat"
	"karebot/internal/knowledge"
	"karebot/internal/news"
	"karebot/internal/observability"
	"karebot/internal/storage"
)

func main() {
	// Initialize structured logger from environment configuration
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", "", "path to YAML config file")
	migrate := flag.String("migrate", "", "run migrations: 'up' to apply, 'status' to show status")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize Sentry if DSN is provided
	sentryDSN := os.Getenv("SENTRY_DSN")
	sentryEnabled := false
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	// Handle migrations CLI before starting server
	if *migrate != "" {
		runMigrationsCLI(logger, *migrate)
		return
	}

	// Select the KV backend based on build tags and env (see store_*.go in this package).
	kv := selectKV(logger)
	store, err := storage.NewKVStore(context.Background(), kv)
	if err != nil {
		logger.Error("store initialization failed", "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		logger.Info("metrics enabled",
			"namespace", metricsCfg.Namespace,
			"version", metricsCfg.Version,
		)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.DefaultRateLimitConfig()
	if !rateCfg.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	}

	// University knowledge backend
	kbCfg := knowledge.ConfigFromEnv()
	if cfg.BackendURL != "" {
		kbCfg.Endpoint = cfg.BackendURL
	}
	if cfg.BackendTimeout > 0 {
		kbCfg.Timeout = cfg.BackendTimeout
	}
	kb := knowledge.NewHTTPClient(kbCfg)
	if kb.Available() {
		logger.Info("knowledge backend configured", "endpoint", kbCfg.Endpoint, "timeout", kbCfg.Timeout)
	} else {
		logger.Info("knowledge backend disabled (set KAREBOT_BACKEND_URL to enable)")
	}

	// News feed
	newsCfg := news.ConfigFromEnv()
	if cfg.NewsURL != "" {
		newsCfg.Endpoint = cfg.NewsURL
	}
	if cfg.NewsTimeout > 0 {
		newsCfg.Timeout = cfg.NewsTimeout
	}
	fetcher := news.NewHTTPFetcher(newsCfg)
	if newsCfg.Endpoint != "" {
		logger.Info("news feed configured", "endpoint", newsCfg.Endpoint)
	} else {
		logger.Info("news feed disabled (set KAREBOT_NEWS_URL to enable)")
	}

	// Strategy order: greetings first, then news queries, the knowledge
	// backend, and canned campus answers as the final catch-all.
	router := chat.NewRouter(logger,
		chat.NewConversational(cfg.ReplyDelay),
		chat.NewNews(fetcher),
		chat.NewKnowledge(kb),
		chat.NewFallback(cfg.ReplyDelay),
	)
	svc := chat.NewService(chat.ServiceConfig{
		Store:   store,
		Router:  router,
		Logger:  logger,
		Metrics: metrics,
	})

	mux := http.NewServeMux()
	srv := api.NewServer(mux, store, svc, nil, logger, metrics)
	srv.RegisterRoutes()

	// Apply middleware stack (metrics, request ID, structured logging, rate limiting).
	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting (innermost before handler)
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger.Slog()),
		api.RateLimitMiddleware(rateCfg, logger.Slog()),
	)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("karebot listening", "addr", cfg.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown with 15-second timeout
	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	// Close the storage backend
	if closer, ok := kv.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("error closing store", "error", err)
		} else {
			logger.Info("storage backend closed")
		}
	}

	// Flush Sentry events
	if sentryEnabled {
		logger.Info("flushing sentry events", "deadline", "2s")
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// runMigrationsCLI executes migration commands.
func runMigrationsCLI(logger observability.Logger, cmd string) {
	switch cmd {
	case "up":
		// Initialize the backend (runs migrations automatically), then show status
		kv := selectKV(logger)
		if closer, ok := kv.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
		runMigrationsCLI(logger, "status")
	case "status":
		status := "migrations status not available in this build"
		dsn := os.Getenv("SQLITE_DSN")
		if dsn == "" {
			dsn = "file:karebot.db?cache=shared&_fk=1"
		}
		if s := sqliteStatus(dsn); s != "" {
			status = s
		}
		if s := postgresStatus(); s != "" {
			status = s
		}
		logger.Info("migrations status", "status", status)
	default:
		logger.Warn("unknown migrate command", "command", cmd)
	}
}
