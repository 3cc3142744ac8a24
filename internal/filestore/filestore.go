// Package filestore holds document bytes on a local filesystem root.
//
// The root is shared by every request; Local serializes writers and lets
// readers proceed concurrently. Paths are always relative to the root and
// may not escape it.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrOutsideRoot = errors.New("path escapes file store root")

// Store is the narrow contract the document operations consume.
type Store interface {
	Save(ctx context.Context, path string, r io.Reader) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

type Local struct {
	mu   sync.RWMutex
	root string
}

// NewLocal creates root if it does not exist.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve file store root: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.Join(l.root, clean), nil
}

// Save writes r to path, creating parent directories. The bytes are written
// to a temporary file first so a failed write never leaves a partial file
// at path.
func (l *Local) Save(ctx context.Context, path string, r io.Reader) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move file into place: %w", err)
	}

	slog.DebugContext(ctx, "File saved", "path", path)
	return nil
}

// Delete removes the file at path. Deleting a missing file is not an error.
func (l *Local) Delete(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	// Drop the company directory once it is empty; a non-empty directory
	// makes Remove fail, which is expected.
	if dir := filepath.Dir(full); dir != l.root {
		_ = os.Remove(dir)
	}

	slog.DebugContext(ctx, "File deleted", "path", path)
	return nil
}

// List returns the slash-separated paths of all files under prefix, sorted.
// A missing prefix yields an empty list.
func (l *Local) List(ctx context.Context, prefix string) ([]string, error) {
	base := l.root
	if strings.Trim(prefix, "/") != "" {
		full, err := l.resolve(prefix)
		if err != nil {
			return nil, err
		}
		base = full
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Open returns a reader for the file at path. The caller closes it.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// ModTime reports when the file at path was last written.
func (l *Local) ModTime(_ context.Context, path string) (time.Time, error) {
	full, err := l.resolve(path)
	if err != nil {
		return time.Time{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	info, err := os.Stat(full)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat file: %w", err)
	}
	return info.ModTime(), nil
}
