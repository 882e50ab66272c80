package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldops/job-tracker/internal/app"
	"github.com/fieldops/job-tracker/internal/infrastructure/config"
	ops "github.com/fieldops/job-tracker/internal/infrastructure/http"
	"github.com/fieldops/job-tracker/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	if err := a.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	log.Info().Str("sync_backend", cfg.SyncBackend).Msg("node ready")

	e := ops.NewRouter(a.Subscriptions)
	go func() {
		if err := e.Start(":" + cfg.OpsPort); err != nil {
			log.Info().Err(err).Msg("ops server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}
	a.Close(shutdownCtx)
	os.Exit(0)
}
