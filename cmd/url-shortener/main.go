package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"

	"github.com/vadimbarashkov/shorturl/internal/app"
	"github.com/vadimbarashkov/shorturl/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := httplog.NewLogger("url-shortener", httplog.Options{
		JSON:             cfg.Log.JSON,
		LogLevel:         cfg.Log.SlogLevel(),
		Concise:          !cfg.Log.JSON,
		RequestHeaders:   cfg.Env != config.EnvProd,
		MessageFieldName: "message",
		QuietDownRoutes:  []string{"/ping"},
		QuietDownPeriod:  10 * time.Second,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("application stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("application stopped")
}
