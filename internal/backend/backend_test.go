package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"accounting/internal/config"
	"accounting/internal/ledger"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:   "sqlite",
		SQLiteDBPath:  "/tmp/ledger.db",
		FileStoreRoot: "/tmp/files",
		DBMaxConns:    7,
		StoreTimeout:  3 * time.Second,
		AMQPExchange:  "accounting",
		AMQPQueue:     "file_cleanup",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.MaxConns != 7 || cfg.StoreTimeout != 3*time.Second || cfg.FileStoreRoot != "/tmp/files" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	app.DataBackend = "mongo"
	if _, err := FromAppConfig(app); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db", FileStoreRoot: "files"}, ""},
		{"valid postgres", Config{Type: PostgresBackend, DatabaseURL: "postgres://localhost/acc"}, ""},
		{"unknown type", Config{Type: "memory"}, "invalid backend type"},
		{"postgres without url", Config{Type: PostgresBackend}, "database URL"},
		{"sqlite without path", Config{Type: SQLiteBackend, FileStoreRoot: "files"}, "SQLite database path"},
		{"sqlite without file root", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, "file store root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := strings.Join(GetBackendTypeStrings(), ",")
	if got != "postgres,sqlite" {
		t.Fatalf("GetBackendTypeStrings = %q", got)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:          SQLiteBackend,
		SQLiteDBPath:  filepath.Join(dir, "ledger.db"),
		FileStoreRoot: filepath.Join(dir, "files"),
		StoreTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Cleanup != nil {
		t.Fatal("no AMQP configured, expected no cleanup func")
	}
	if err := res.Backend.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, ok := res.Backend.(ledger.DocumentStore); !ok {
		t.Fatal("sqlite backend should support documents")
	}
	if _, ok := res.Backend.(ledger.MoneyCapitalStore); ok {
		t.Fatal("sqlite backend should not support money capitals")
	}
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: PostgresBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}
