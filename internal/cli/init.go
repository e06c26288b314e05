// Package cli holds the startup steps shared by cmd/expenselog,
// cmd/expenselog-worker and cmd/expensectl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expenselog/internal/backend"
	"expenselog/internal/config"
	"expenselog/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger installs the default logger described by cfg.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	return log.Setup(log.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
}

// Bootstrap runs the steps every binary starts with: .env, config, logger.
// A failure is printed to stderr and exits the process.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg, component)
}

// OpenBackend builds the configured store, mirror and broker.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The signal
// is logged once.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
