package backend

import (
	"context"
	"io"
	"time"

	"accounting/internal/ledger"
)

// Backend is the storage a running service is built on. Money-capital and
// document support are optional; callers discover them with a type
// assertion to ledger.MoneyCapitalStore or ledger.DocumentStore.
type Backend interface {
	ledger.Store
	ledger.Pinger
	io.Closer
}

// CleanupFunc releases resources owned by the backend besides the store
// itself, such as the AMQP connection.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Close closes the backend and then runs Cleanup.
func (r *BackendResult) Close() error {
	err := r.Backend.Close()
	if r.Cleanup != nil {
		if cerr := r.Cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Bounds every store call
	StoreTimeout time.Duration

	// Postgres
	DatabaseURL string
	MaxConns    int32

	// SQLite + file store
	SQLiteDBPath  string
	FileStoreRoot string

	// Optional cleanup queue for the file store
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
