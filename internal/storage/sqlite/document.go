package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"accounting/internal/core"
	"accounting/internal/ledger"
)

// CreateDocument inserts the row, writes the bytes, then commits. A row is
// never committed without its bytes; if the commit fails after the write the
// bytes are removed again.
func (s *Store) CreateDocument(ctx context.Context, companyID int64, upload ledger.Upload) (core.DocumentView, error) {
	name, err := core.SanitizeFileName(upload.Name)
	if err != nil {
		return core.DocumentView{}, fmt.Errorf("create document: %w", err)
	}
	if upload.Content == nil {
		return core.DocumentView{}, fmt.Errorf("create document: %w: empty content", core.ErrInvalidValue)
	}

	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.DocumentView{}, s.fail("create document", fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, time, company_id) SELECT ?, ?, id FROM companies WHERE id = ?`,
		name, formatTime(now), companyID)
	if err != nil {
		return core.DocumentView{}, s.fail("create document", fmt.Errorf("insert document: %w", err))
	}
	if n, err := affected(res); err != nil {
		return core.DocumentView{}, s.fail("create document", err)
	} else if n == 0 {
		return core.DocumentView{}, fmt.Errorf("create document for company %d: %w", companyID, core.ErrNotFound)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.DocumentView{}, s.fail("create document", err)
	}

	doc := core.NewDocumentView(core.Document{ID: id, Name: name, Time: now, CompanyID: companyID})

	if err := s.files.Save(ctx, doc.Path, upload.Content); err != nil {
		tx.Rollback()
		if derr := s.files.Delete(context.WithoutCancel(ctx), doc.Path); derr != nil {
			slog.WarnContext(ctx, "Failed to remove partial upload", "file_path", doc.Path, "error", derr)
		}
		return core.DocumentView{}, &core.IOError{Op: "save", Path: doc.Path, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		cerr := s.removeFiles(context.WithoutCancel(ctx), []string{doc.Path}, ledger.ReasonCommitFailed)
		if cerr != nil {
			slog.ErrorContext(ctx, "Orphaned upload after failed commit", "file_path", doc.Path, "error", cerr)
		}
		return core.DocumentView{}, s.fail("create document", fmt.Errorf("commit transaction: %w", err))
	}

	slog.InfoContext(ctx, "Document stored", "document_id", id, "company_id", companyID, "file_path", doc.Path)
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, companyID int64) ([]core.DocumentView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE id = ?`, companyID).Scan(&exists); err != nil {
		return nil, s.fail("list documents", err)
	}
	docs, err := listDocuments(ctx, s.db, companyID)
	if err != nil {
		return nil, s.fail("list documents", err)
	}
	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (core.DocumentView, error) {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	d, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT id, name, time, company_id FROM documents WHERE id = ?`, id))
	if err != nil {
		return core.DocumentView{}, s.fail("get document", err)
	}
	return d, nil
}

// OpenDocument returns the row and a reader over its bytes. The caller
// closes the reader.
func (s *Store) OpenDocument(ctx context.Context, id int64) (core.DocumentView, io.ReadCloser, error) {
	d, err := s.GetDocument(ctx, id)
	if err != nil {
		return core.DocumentView{}, nil, err
	}
	rc, err := s.files.Open(ctx, d.Path)
	if err != nil {
		return core.DocumentView{}, nil, &core.IOError{Op: "open", Path: d.Path, Cause: err}
	}
	return d, rc, nil
}

// DeleteDocument commits the row removal first, then removes the bytes.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.deleteDocument(ctx, `DELETE FROM documents WHERE id = ? RETURNING id, name, time, company_id`, id)
}

// DeleteDocumentByPath accepts the "<company_id>/<id>_<name>" form.
func (s *Store) DeleteDocumentByPath(ctx context.Context, path string) error {
	companyID, id, name, err := core.ParseDocumentPath(path)
	if err != nil {
		return fmt.Errorf("delete document %q: %w", path, err)
	}
	return s.deleteDocument(ctx,
		`DELETE FROM documents WHERE id = ? AND company_id = ? AND name = ? RETURNING id, name, time, company_id`,
		id, companyID, name)
}

func (s *Store) deleteDocument(ctx context.Context, query string, args ...any) error {
	ctx, cancel := ledger.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc core.DocumentView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		doc, err = scanDocument(tx.QueryRowContext(ctx, query, args...))
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return s.fail("delete document", err)
	}

	slog.InfoContext(ctx, "Document deleted", "document_id", doc.ID, "file_path", doc.Path)
	return s.removeFiles(ctx, []string{doc.Path}, ledger.ReasonDocumentDeleted)
}

// removeFiles deletes paths whose rows are already gone. Paths that cannot be
// deleted are handed to the cleanup queue; only when that also fails does the
// caller see an IOError.
func (s *Store) removeFiles(ctx context.Context, paths []string, reason string) error {
	var (
		failed   []string
		firstErr error
	)
	for _, p := range paths {
		if err := s.files.Delete(ctx, p); err != nil {
			failed = append(failed, p)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}

	slog.WarnContext(ctx, "File delete failed, handing to cleanup queue",
		"paths", len(failed), "reason", reason, "error", firstErr)

	perr := errors.New("no cleanup publisher configured")
	if s.cleanup != nil {
		perr = s.cleanup.PublishFileCleanup(ctx, failed, reason)
	}
	if perr == nil {
		return nil
	}
	return &core.IOError{Op: "delete", Path: failed[0], Cause: errors.Join(firstErr, perr)}
}

func listDocuments(ctx context.Context, q querier, companyID int64) ([]core.DocumentView, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, time, company_id FROM documents WHERE company_id = ? ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []core.DocumentView{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row scanner) (core.DocumentView, error) {
	var (
		d  core.Document
		ts string
	)
	if err := row.Scan(&d.ID, &d.Name, &ts, &d.CompanyID); err != nil {
		return core.DocumentView{}, err
	}
	t, err := parseTime(ts)
	if err != nil {
		return core.DocumentView{}, err
	}
	d.Time = t
	return core.NewDocumentView(d), nil
}
