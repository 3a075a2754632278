package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dungeun/e-market-search/pkg/logger"

	"github.com/dungeun/e-market-search/internal/app"
	"github.com/dungeun/e-market-search/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("search service starting",
		slog.String("environment", cfg.Environment),
		slog.String("catalog_backend", cfg.CatalogBackend),
		slog.String("kv_backend", cfg.KVBackend),
		slog.Int("port", cfg.HTTPPort),
	)

	if err := a.Run(ctx); err != nil {
		log.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
