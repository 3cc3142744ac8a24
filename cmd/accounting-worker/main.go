package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"accounting/internal/amqp"
	"accounting/internal/cli"
	"accounting/internal/filestore"
	"accounting/internal/log"
	"accounting/internal/metrics"
	"accounting/internal/storage/sqlite"
	"accounting/internal/worker"
)

// sweepGrace keeps the sweep away from uploads whose row has not committed yet.
const sweepGrace = 15 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if cfg.DataBackend != "sqlite" {
		logger.Error("File cleanup worker requires the sqlite backend", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	logger.Info("Starting accounting-worker")

	files, err := filestore.NewLocal(cfg.FileStoreRoot)
	if err != nil {
		logger.Error("Failed to initialize file store", log.FieldError, err, "root", cfg.FileStoreRoot)
		os.Exit(1)
	}
	store, err := sqlite.New(sqlite.Config{
		Path:    cfg.SQLiteDBPath,
		Files:   files,
		Timeout: cfg.StoreTimeout,
	})
	if err != nil {
		logger.Error("Failed to initialize SQLite store", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	m := metrics.New()
	events := log.NewStructuredLogger(logger)
	cleaner := worker.NewCleanupWorker(files, store, sweepGrace)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Without a broker the periodic sweep is the only cleaner.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumeFileCleanup(gctx, func(ctx context.Context, msg *amqp.FileCleanupMessage) error {
				err := cleaner.HandleCleanupMessage(ctx, msg)
				m.FileCleanup("queue", metrics.Result(err), len(msg.Paths))
				if err != nil {
					events.LogError(ctx, "Cleanup message failed", err, log.ComponentWorker, log.OpCleanup,
						log.NewFields())
				}
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled - relying on periodic sweep only")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			sweep(gctx, logger, events, cleaner, m)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if cfg.MetricsEnabled {
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           probes(logger, store, m),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// sweep runs one pass. A failed pass counts once under its error result; a
// canceled pass still counts the files it managed to remove.
func sweep(ctx context.Context, logger *log.Logger, events *log.StructuredLogger, cleaner sweeper, m *metrics.Metrics) {
	removed, err := cleaner.Sweep(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		m.FileCleanup("sweep", metrics.Result(err), 1)
		events.LogError(ctx, "Orphan sweep failed", err, log.ComponentWorker, log.OpSweep, log.NewFields())
		return
	}
	m.FileCleanup("sweep", metrics.Result(nil), removed)
	if removed > 0 {
		logger.Info("Orphan sweep removed files", "count", removed)
	}
}

// probes serves health and metrics for the worker's container.
func probes(logger *log.Logger, store *sqlite.Store, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Health check failed", log.FieldError, err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}
