package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenselog/internal/cache"
	"expenselog/internal/cli"
	apphttp "expenselog/internal/http"
	"expenselog/internal/log"
	"expenselog/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	caches := cache.NewManager()
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}
	defer caches.Stop()

	svc := services.NewExpenseService(res.Backend,
		services.WithCacheTTL(cfg.CacheTTL),
		services.WithCacheManager(caches))

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithFormRows(cfg.FormRows),
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenselog server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldRemote, cfg.MirrorTo)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
