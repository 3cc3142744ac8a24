package filestore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLocalSaveOpenListDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(filepath.Join(t.TempDir(), "files"))
	if err != nil {
		t.Fatalf("new local: %v", err)
	}

	if err := store.Save(ctx, "4/1_a.txt", strings.NewReader("alpha")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "4/2_b.txt", strings.NewReader("beta")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "5/3_c.txt", strings.NewReader("gamma")); err != nil {
		t.Fatalf("save: %v", err)
	}

	rc, err := store.Open(ctx, "4/1_a.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "alpha" {
		t.Fatalf("unexpected body %q", body)
	}

	got, err := store.List(ctx, "4")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0] != "4/1_a.txt" || got[1] != "4/2_b.txt" {
		t.Fatalf("unexpected list %v", got)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 files, got %v", all)
	}
	missing, err := store.List(ctx, "99")
	if err != nil || len(missing) != 0 {
		t.Fatalf("expected empty list for missing prefix, got %v %v", missing, err)
	}

	if err := store.Delete(ctx, "4/1_a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "4/1_a.txt"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, err := store.Open(ctx, "4/1_a.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
	if err := store.Delete(ctx, "5/3_c.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "5")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("empty company directory should be removed, got %v", err)
	}
}

func TestLocalSaveFailureLeavesNoFile(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	if err := store.Save(ctx, "1/1_x.bin", failingReader{}); err == nil {
		t.Fatal("expected write error")
	}
	files, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files after failed save, got %v", files)
	}
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	for _, p := range []string{"../x", "1/../../x", ".."} {
		if err := store.Save(ctx, p, strings.NewReader("x")); !errors.Is(err, ErrOutsideRoot) {
			t.Fatalf("%q: expected ErrOutsideRoot, got %v", p, err)
		}
	}
}
