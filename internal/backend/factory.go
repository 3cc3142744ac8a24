package backend

import (
	"context"
	"fmt"
	"log/slog"

	"accounting/internal/amqp"
	"accounting/internal/filestore"
	"accounting/internal/ledger"
	"accounting/internal/storage/postgres"
	"accounting/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case PostgresBackend:
		return f.createPostgresBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := postgres.New(ctx, postgres.Config{
		URL:      config.DatabaseURL,
		MaxConns: config.MaxConns,
		Timeout:  config.StoreTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres backend: %w", err)
	}

	f.logger.Info("Initialized postgres backend", "max_conns", config.MaxConns)

	return &BackendResult{Backend: store}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	files, err := filestore.NewLocal(config.FileStoreRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	// AMQP is optional; without it failed file deletes surface as IO errors.
	var (
		cleanup    ledger.CleanupPublisher
		amqpClient *amqp.Client
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without cleanup queue", "error", err)
		} else {
			cleanup = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	store, err := sqlite.New(sqlite.Config{
		Path:    config.SQLiteDBPath,
		Files:   files,
		Cleanup: cleanup,
		Timeout: config.StoreTimeout,
	})
	if err != nil {
		if amqpClient != nil {
			amqpClient.Close()
		}
		return nil, fmt.Errorf("failed to initialize SQLite backend: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"file_root", files.Root(),
		"amqp_enabled", amqpClient != nil)

	result := &BackendResult{Backend: store}
	if amqpClient != nil {
		result.Cleanup = amqpClient.Close
	}
	return result, nil
}
