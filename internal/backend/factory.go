package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pennywise/internal/amqp"
	"pennywise/internal/ledger"
	"pennywise/internal/ledger/memory"
	"pennywise/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the configured store and, when AMQP is configured, a
// publisher. A broker that cannot be reached is logged and skipped: writes
// still succeed without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(config)

	return &BackendResult{
		Store:     store,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				if err := publisher.Close(); err != nil {
					errs = append(errs, fmt.Errorf("amqp: %w", err))
				}
			}
			if err := store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("store: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (ledger.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return repo, nil

	case MemoryBackend:
		f.logger.Warn("Initialized memory backend, records are lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createPublisher(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
