package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accounting/internal/amqp"
	"accounting/internal/core"
)

// Files is the part of the file store the cleanup worker needs.
type Files interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
	ModTime(ctx context.Context, path string) (time.Time, error)
}

// DocumentLookup resolves a document row by id.
type DocumentLookup interface {
	GetDocument(ctx context.Context, id int64) (core.DocumentView, error)
}

// CleanupWorker deletes file-store bytes that no document row refers to.
// It handles paths named on the cleanup queue and periodically sweeps the
// whole root for anything the queue missed.
type CleanupWorker struct {
	files Files
	docs  DocumentLookup
	// Files younger than grace are left alone by the sweep; their row may
	// still be waiting to commit.
	grace time.Duration
	now   func() time.Time
}

func NewCleanupWorker(files Files, docs DocumentLookup, grace time.Duration) *CleanupWorker {
	return &CleanupWorker{
		files: files,
		docs:  docs,
		grace: grace,
		now:   time.Now,
	}
}

// HandleCleanupMessage deletes every path in msg that has no live row.
// Paths that still back a document are skipped.
func (w *CleanupWorker) HandleCleanupMessage(ctx context.Context, msg *amqp.FileCleanupMessage) error {
	slog.InfoContext(ctx, "Processing cleanup message",
		"paths", len(msg.Paths),
		"reason", msg.Reason,
		"timestamp", msg.Timestamp)

	var errs []error
	for _, path := range msg.Paths {
		orphan, err := w.orphaned(ctx, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !orphan {
			slog.WarnContext(ctx, "Skipping cleanup of live document", "file_path", path)
			continue
		}
		if err := w.files.Delete(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", path, err))
			continue
		}
		slog.InfoContext(ctx, "Removed orphaned file", "file_path", path, "reason", msg.Reason)
	}
	return errors.Join(errs...)
}

// Sweep walks the file store and deletes orphaned files older than the
// grace period. It returns how many files were removed.
func (w *CleanupWorker) Sweep(ctx context.Context) (int, error) {
	paths, err := w.files.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list files: %w", err)
	}

	removed := 0
	cutoff := w.now().Add(-w.grace)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		mod, err := w.files.ModTime(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "Failed to stat file during sweep", "file_path", path, "error", err)
			continue
		}
		if mod.After(cutoff) {
			continue
		}

		orphan, err := w.orphaned(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "Failed to check file during sweep", "file_path", path, "error", err)
			continue
		}
		if !orphan {
			continue
		}
		if err := w.files.Delete(ctx, path); err != nil {
			slog.ErrorContext(ctx, "Failed to remove orphaned file", "file_path", path, "error", err)
			continue
		}
		removed++
	}

	slog.InfoContext(ctx, "Sweep completed", "scanned", len(paths), "removed", removed)
	return removed, nil
}

// orphaned reports whether no document row owns path. Paths that are not
// document paths are never treated as orphans.
func (w *CleanupWorker) orphaned(ctx context.Context, path string) (bool, error) {
	_, id, _, err := core.ParseDocumentPath(path)
	if err != nil {
		slog.WarnContext(ctx, "Ignoring unrecognized file", "file_path", path)
		return false, nil
	}

	doc, err := w.docs.GetDocument(ctx, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("lookup document %d: %w", id, err)
	}
	return doc.Path != path, nil
}
