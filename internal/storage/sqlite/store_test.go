package sqlite

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"accounting/internal/core"
	"accounting/internal/filestore"
	"accounting/internal/ledger"
	"accounting/internal/ledger/ledgertest"
)

// flakyFiles wraps a real store and fails selected operations.
type flakyFiles struct {
	filestore.Store
	failSave   bool
	failDelete bool
}

func (f *flakyFiles) Save(ctx context.Context, path string, r io.Reader) error {
	if f.failSave {
		// Leave partial bytes behind the way an interrupted write would.
		_ = f.Store.Save(ctx, path, strings.NewReader("partial"))
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, path, r)
}

func (f *flakyFiles) Delete(ctx context.Context, path string) error {
	if f.failDelete {
		return errors.New("permission denied")
	}
	return f.Store.Delete(ctx, path)
}

type recordingPublisher struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (p *recordingPublisher) PublishFileCleanup(_ context.Context, paths []string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.paths = append(p.paths, paths...)
	return nil
}

func newTestStore(t *testing.T, files filestore.Store, cleanup ledger.CleanupPublisher) *Store {
	t.Helper()
	dir := t.TempDir()
	if files == nil {
		local, err := filestore.NewLocal(filepath.Join(dir, "files"))
		if err != nil {
			t.Fatalf("file store: %v", err)
		}
		files = local
	}
	s, err := New(Config{
		Path:    filepath.Join(dir, "ledger.db"),
		Files:   files,
		Cleanup: cleanup,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLedgerConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		return newTestStore(t, nil, nil)
	})
}

func TestCompanyWithoutFunders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil, nil)

	c, err := s.CreateCompany(ctx, ledgertest.Company("Solo Workshop"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Funders == nil || len(c.Funders) != 0 {
		t.Fatalf("expected empty funder list, got %#v", c.Funders)
	}
	got, err := s.SearchCompanies(ctx, "solo")
	if err != nil || len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("search funder-less company: %+v, %v", got, err)
	}
}

func TestCreateCompanyRequiresName(t *testing.T) {
	s := newTestStore(t, nil, nil)
	if _, err := s.CreateCompany(context.Background(), ledgertest.Company(" ")); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	s := newTestStore(t, local, nil)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Docs Co", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	doc, err := s.CreateDocument(ctx, c.ID, ledger.Upload{Name: "contract.pdf", Content: strings.NewReader("%PDF-1.7")})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if doc.Path != core.DocumentPath(c.ID, doc.ID, "contract.pdf") {
		t.Fatalf("unexpected path %q", doc.Path)
	}

	got, rc, err := s.OpenDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "%PDF-1.7" || got.ID != doc.ID {
		t.Fatalf("unexpected download %q %+v", body, got)
	}

	list, err := s.ListDocuments(ctx, c.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v, %v", list, err)
	}

	if err := s.DeleteDocumentByPath(ctx, "1/999_nope.pdf"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("unknown path: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteDocumentByPath(ctx, "garbage"); !errors.Is(err, core.ErrInvalidValue) {
		t.Fatalf("malformed path: expected ErrInvalidValue, got %v", err)
	}
	if err := s.DeleteDocumentByPath(ctx, doc.Path); err != nil {
		t.Fatalf("delete by path: %v", err)
	}
	files, _ := local.List(ctx, "")
	if len(files) != 0 {
		t.Fatalf("bytes left behind: %v", files)
	}
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDocumentRejectsUnsafeNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil, nil)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Names", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	for _, name := range []string{"", "..", "../x", `a\b`} {
		if _, err := s.CreateDocument(ctx, c.ID, ledger.Upload{Name: name, Content: strings.NewReader("x")}); !errors.Is(err, core.ErrInvalidValue) {
			t.Fatalf("%q: expected ErrInvalidValue, got %v", name, err)
		}
	}
	if _, err := s.CreateDocument(ctx, 9999, ledger.Upload{Name: "a.txt", Content: strings.NewReader("x")}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing company: expected ErrNotFound, got %v", err)
	}
}

func TestCreateDocumentWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	files := &flakyFiles{Store: local, failSave: true}
	s := newTestStore(t, files, nil)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Broken Disk", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	_, err = s.CreateDocument(ctx, c.ID, ledger.Upload{Name: "x.bin", Content: strings.NewReader("data")})
	var ioErr *core.IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "save" {
		t.Fatalf("expected save IOError, got %v", err)
	}

	docs, err := s.ListDocuments(ctx, c.ID)
	if err != nil || len(docs) != 0 {
		t.Fatalf("row survived failed write: %+v, %v", docs, err)
	}
	left, _ := local.List(ctx, "")
	if len(left) != 0 {
		t.Fatalf("partial bytes left behind: %v", left)
	}
}

func TestDeleteDocumentHandsOffToCleanupQueue(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	files := &flakyFiles{Store: local}
	pub := &recordingPublisher{}
	s := newTestStore(t, files, pub)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Queue Co", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	doc, err := s.CreateDocument(ctx, c.ID, ledger.Upload{Name: "a.txt", Content: strings.NewReader("a")})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	files.failDelete = true
	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete should succeed once the cleanup is queued: %v", err)
	}
	if len(pub.paths) != 1 || pub.paths[0] != doc.Path {
		t.Fatalf("published paths = %v", pub.paths)
	}
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("row should be gone, got %v", err)
	}
}

func TestDeleteDocumentReportsIOErrorWhenNothingCanClean(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	files := &flakyFiles{Store: local}
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := newTestStore(t, files, pub)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Stuck Co", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	doc, err := s.CreateDocument(ctx, c.ID, ledger.Upload{Name: "a.txt", Content: strings.NewReader("a")})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	files.failDelete = true
	err = s.DeleteDocument(ctx, doc.ID)
	if !errors.Is(err, core.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	// The row is still gone; only the bytes are orphaned.
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("row should be gone, got %v", err)
	}
}

func TestDeleteCompanyRemovesDocumentBytes(t *testing.T) {
	ctx := context.Background()
	local, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	s := newTestStore(t, local, nil)
	c, err := s.CreateCompany(ctx, ledgertest.Company("Closing Co", "a"))
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := s.CreateDocument(ctx, c.ID, ledger.Upload{Name: name, Content: strings.NewReader(name)}); err != nil {
			t.Fatalf("create document: %v", err)
		}
	}

	if err := s.DeleteCompany(ctx, c.ID); err != nil {
		t.Fatalf("delete company: %v", err)
	}
	left, _ := local.List(ctx, "")
	if len(left) != 0 {
		t.Fatalf("company files left behind: %v", left)
	}
}

func TestMergePaths(t *testing.T) {
	got := mergePaths([]string{"1/1_a", "1/2_b"}, []string{"1/2_b", "1/3_c"})
	if len(got) != 3 || got[2] != "1/3_c" {
		t.Fatalf("mergePaths = %v", got)
	}
}

func TestFoldCaseSQL(t *testing.T) {
	tests := []struct {
		in   driver.Value
		want driver.Value
	}{
		{"École", "école"},
		{[]byte("ÖMER"), "ömer"},
		{nil, nil},
		{int64(7), int64(7)},
	}
	for _, tt := range tests {
		got, err := foldCaseSQL(nil, []driver.Value{tt.in})
		if err != nil || got != tt.want {
			t.Errorf("foldCaseSQL(%v) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
