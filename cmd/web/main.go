package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"eda-dashboard/internal/config"
	"eda-dashboard/internal/middleware"
	"eda-dashboard/internal/observability"
	"eda-dashboard/internal/server"
	"eda-dashboard/internal/services"
	"eda-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	preloadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("EDA_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application", "version", "1.0.0", "addr", cfg.Address())

	ingestor := services.NewIngestor(logger)
	engine := services.NewEngine(logger)
	store := services.NewStore(ingestor, engine, cfg.EngineOptions(),
		cfg.Dataset.StoreCapacity, cfg.Dataset.CacheDir, logger)

	if cfg.Dataset.File != "" {
		ctx, cancel := context.WithTimeout(context.Background(), preloadTimeout)
		entry, err := store.LoadFile(ctx, cfg.Dataset.File)
		cancel()
		if err != nil {
			logger.Error("failed to preload dataset", "file", cfg.Dataset.File, "error", err)
			os.Exit(1)
		}
		logger.Info("dataset preloaded", "id", entry.ID, "rows", len(entry.Dataset.Rows))
	}

	srv := server.NewServer(store, cfg.EngineOptions(), logger, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.MaxBody(cfg.Security.MaxUploadBytes),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      middlewareChain(srv),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("shutting down dataset store")
		return nil
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
