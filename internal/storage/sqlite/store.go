// Package sqlite is the hybrid ledger backend: rows live in an embedded
// SQLite database and document bytes live in a file store.
//
// Every write runs in a BEGIN IMMEDIATE transaction, so concurrent debits of
// the same user serialize on the database write lock.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/cases"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"accounting/internal/core"
	"accounting/internal/filestore"
	"accounting/internal/ledger"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// fold_case exposes foldCase to SQL. SQLite's own LOWER folds ASCII only.
func init() {
	if err := msqlite.RegisterDeterministicScalarFunction("fold_case", 1, foldCaseSQL); err != nil {
		panic(fmt.Sprintf("register fold_case: %v", err))
	}
}

// foldCase applies Unicode case folding. Search patterns and the searched
// columns both go through it. A Caser is stateful, so each call gets its own.
func foldCase(s string) string { return cases.Fold().String(s) }

func foldCaseSQL(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldCase(v), nil
	case []byte:
		return foldCase(string(v)), nil
	default:
		return v, nil
	}
}

type Config struct {
	Path    string
	Files   filestore.Store
	Cleanup ledger.CleanupPublisher // optional
	Timeout time.Duration
}

type Store struct {
	db      *sql.DB
	files   filestore.Store
	cleanup ledger.CleanupPublisher
	timeout time.Duration
	now     func() time.Time
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.DocumentStore = (*Store)(nil)
)

func New(cfg Config) (*Store, error) {
	if cfg.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(cfg.Path); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		db:      db,
		files:   cfg.Files,
		cleanup: cfg.Cleanup,
		timeout: cfg.Timeout,
		now:     time.Now,
	}, nil
}

// dsn enables foreign keys and a busy timeout on every pooled connection and
// makes BeginTx take the write lock up front.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// inTx runs fn inside one transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// fail classifies err for callers: domain kinds pass through, constraint
// violations become domain kinds, anything else means the store is unusable.
func (s *Store) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if core.IsDomainError(err) || errors.Is(err, core.ErrIO) || errors.Is(err, core.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, core.ErrDuplicateName)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, core.ErrNotFound)
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%s: %w", op, core.ErrInvalidValue)
		}
	}
	return &core.StorageUnavailableError{Op: op, Cause: err}
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
