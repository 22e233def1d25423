package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"rentcancel/internal/infra/config"
	ginserver "rentcancel/internal/infra/http/gin"
	"rentcancel/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV"), "").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(context.Background())

	if cfg.FixturesEnabled {
		if err := app.loadFixtures(ctx, fixturesPath()); err != nil {
			logger.Warn("fixtures load failed", "error", err)
		}
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.health, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	for _, bg := range app.background {
		bg := bg
		g.Go(func() error {
			err := bg.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "worker", bg.name, "error", err)
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "backend", cfg.DataBackend, "payments", cfg.PaymentsProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		app.close(context.Background())
		os.Exit(1)
	}
	logger.Info("service stopped")
}
