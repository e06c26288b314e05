package backend

import (
	"context"
	"errors"
	"fmt"

	"expenselog/internal/amqp"
	"expenselog/internal/config"
	"expenselog/internal/events"
	"expenselog/internal/kafka"
	"expenselog/internal/log"
	"expenselog/internal/store"
	"expenselog/internal/store/csvfile"
	"expenselog/internal/store/google"
	"expenselog/internal/store/memory"
	"expenselog/internal/store/mirror"
	"expenselog/internal/store/postgres"
	"expenselog/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var cleanups []CleanupFunc
	cleanup := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	local, closeLocal, err := f.OpenStore(ctx, config, config.Type)
	if err != nil {
		return nil, err
	}
	cleanups = append(cleanups, closeLocal)

	res := &BackendResult{Backend: local, Local: local, Cleanup: cleanup}
	if config.MirrorTo == "" {
		return res, nil
	}

	remote, closeRemote, err := f.OpenStore(ctx, config, config.MirrorTo)
	if err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("mirror target: %w", err)
	}
	cleanups = append(cleanups, closeRemote)
	res.Remote = remote

	opts := []mirror.Option{mirror.WithNames(config.Type.String(), config.MirrorTo.String())}
	if config.Broker != "" {
		broker, err := NewBroker(f.logger, config)
		if err != nil {
			_ = cleanup()
			return nil, err
		}
		cleanups = append(cleanups, broker.Close)
		res.Broker = broker
		opts = append(opts, mirror.WithPublisher(broker))
	}

	res.Mirror = mirror.New(local, remote, opts...)
	res.Backend = res.Mirror

	f.logger.Info("Mirroring enabled",
		log.FieldBackend, config.Type.String(),
		log.FieldRemote, config.MirrorTo.String(),
		"broker", config.Broker)
	return res, nil
}

// OpenStore implements Factory.OpenStore
func (f *DefaultFactory) OpenStore(ctx context.Context, config Config, t BackendType) (store.Backend, CleanupFunc, error) {
	var (
		s   store.Backend
		err error
	)
	switch t {
	case MemoryBackend:
		dir := config.DataDirectory
		if dir == "" {
			dir = "data"
		}
		s = memory.NewFromFiles(dir)
		f.logger.Info("Initialized memory backend", "data_directory", dir)
	case CSVBackend:
		s, err = csvfile.New(config.CSVPath)
		if err == nil {
			f.logger.Info("Initialized CSV backend", "path", config.CSVPath)
		}
	case SQLiteBackend:
		s, err = sqlite.New(config.SQLiteDBPath)
		if err == nil {
			f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		}
	case PostgresBackend:
		s, err = postgres.New(ctx, config.PostgresDSN)
		if err == nil {
			f.logger.Info("Initialized Postgres backend")
		}
	case SheetsBackend:
		s, err = google.New(ctx, google.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			RecordsSheet:    config.GoogleSheetName,
			CategoriesSheet: config.GoogleCategoriesSheet,
		})
		if err == nil {
			f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", t)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize %s backend: %w", t, err)
	}
	return s, closerFor(s), nil
}

// NewBroker opens the configured broker. The worker consumes from it; the
// mirror publishes to it.
func NewBroker(logger *log.Logger, cfg Config) (events.Broker, error) {
	switch cfg.Broker {
	case config.BrokerAMQP:
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		logger.Info("Initialized AMQP client",
			"exchange", cfg.AMQPExchange,
			"queue", cfg.AMQPQueue)
		return c, nil
	case config.BrokerKafka:
		c, err := kafka.NewClient(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka client: %w", err)
		}
		logger.Info("Initialized Kafka client",
			"topic", cfg.KafkaTopic,
			"group_id", cfg.KafkaGroupID)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported broker: %s", cfg.Broker)
	}
}

func closerFor(s store.Backend) CleanupFunc {
	if c, ok := s.(store.Closer); ok {
		return c.Close
	}
	return func() error { return nil }
}
