package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"accounting/internal/amqp"
	"accounting/internal/core"
	"accounting/internal/filestore"
)

type fakeDocs struct {
	docs map[int64]core.Document
	err  error
}

func (f *fakeDocs) GetDocument(_ context.Context, id int64) (core.DocumentView, error) {
	if f.err != nil {
		return core.DocumentView{}, f.err
	}
	d, ok := f.docs[id]
	if !ok {
		return core.DocumentView{}, core.ErrNotFound
	}
	return core.NewDocumentView(d), nil
}

func seed(t *testing.T, paths ...string) *filestore.Local {
	t.Helper()
	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	for _, p := range paths {
		if err := files.Save(context.Background(), p, strings.NewReader(p)); err != nil {
			t.Fatalf("save %s: %v", p, err)
		}
	}
	return files
}

func TestHandleCleanupMessage(t *testing.T) {
	ctx := context.Background()
	live := core.Document{ID: 1, Name: "keep.pdf", CompanyID: 3}
	files := seed(t, live.Path(), "3/2_gone.pdf", "3/1_renamed.pdf")
	docs := &fakeDocs{docs: map[int64]core.Document{1: live}}
	w := NewCleanupWorker(files, docs, time.Minute)

	msg := amqp.NewFileCleanupMessage([]string{live.Path(), "3/2_gone.pdf", "3/1_renamed.pdf", "3/9_never_written"}, "document_deleted")
	if err := w.HandleCleanupMessage(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	left, _ := files.List(ctx, "")
	if len(left) != 1 || left[0] != live.Path() {
		t.Fatalf("remaining files = %v, want only %s", left, live.Path())
	}
}

func TestHandleCleanupMessageReportsLookupFailure(t *testing.T) {
	files := seed(t, "3/2_a.txt")
	w := NewCleanupWorker(files, &fakeDocs{err: errors.New("database locked")}, 0)

	err := w.HandleCleanupMessage(context.Background(), amqp.NewFileCleanupMessage([]string{"3/2_a.txt"}, "commit_failed"))
	if err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	left, _ := files.List(context.Background(), "")
	if len(left) != 1 {
		t.Fatalf("file removed despite failed lookup: %v", left)
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	live := core.Document{ID: 5, Name: "live.txt", CompanyID: 1}
	files := seed(t, live.Path(), "1/6_orphan.txt", "notes.txt")
	w := NewCleanupWorker(files, &fakeDocs{docs: map[int64]core.Document{5: live}}, time.Hour)

	removed, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("fresh files must survive the grace period, removed %d", removed)
	}

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	removed, err = w.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	left, _ := files.List(ctx, "")
	if strings.Join(left, ",") != live.Path()+",notes.txt" {
		t.Fatalf("remaining files = %v", left)
	}
}
