package main

import (
	"os"

	"expenselog/internal/backend"
	"expenselog/internal/cli"
	"expenselog/internal/events"
	"expenselog/internal/log"
	"expenselog/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting expenselog-worker")

	if cfg.MirrorTo == "" {
		logger.Error("MIRROR_TO is not set: nothing to mirror")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	// The worker writes the remote itself, so it opens both stores directly
	// rather than through a mirror.
	factory := backend.NewFactory(logger)
	local, closeLocal, err := factory.OpenStore(ctx, bcfg, bcfg.Type)
	if err != nil {
		logger.Error("Failed to open local store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer closeLocal()

	remote, closeRemote, err := factory.OpenStore(ctx, bcfg, bcfg.MirrorTo)
	if err != nil {
		logger.Error("Failed to open mirror target", log.FieldError, err, log.FieldRemote, cfg.MirrorTo)
		os.Exit(1)
	}
	defer closeRemote()

	var consumer events.Consumer
	if cfg.Broker != "" {
		broker, err := backend.NewBroker(logger, bcfg)
		if err != nil {
			logger.Error("Failed to initialize broker", log.FieldError, err, "broker", cfg.Broker)
			os.Exit(1)
		}
		defer broker.Close()
		consumer = broker
	} else {
		logger.Info("No broker configured, reconciling on interval only", "interval", cfg.SyncInterval)
	}

	w := worker.NewMirrorWorker(local, remote, cfg.MirrorTo, cfg.SyncInterval)
	if err := w.Run(ctx, consumer); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	stats := w.Stats()
	logger.Info("Worker shutdown complete",
		"pushed", stats.Pushed,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
}
