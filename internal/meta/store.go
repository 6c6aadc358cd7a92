// internal/meta/store.go
package meta

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrOutsideStorage is returned for entry paths that escape the storage directory.
var ErrOutsideStorage = errors.New("meta: path escapes storage directory")

// Store is the local on-disk home of the meta index and catalog files.
// Writes are atomic: a reader sees the old file or the new one, never a torn one.
type Store struct {
	dir       string
	indexName string
}

func NewStore(dir, indexName string) *Store {
	return &Store{dir: dir, indexName: indexName}
}

func (s *Store) Dir() string { return s.dir }

// IndexPath is the location of the cached meta index.
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, s.indexName)
}

// Resolve maps an entry's relative path to a file inside the storage directory.
func (s *Store) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %q", ErrOutsideStorage, rel)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideStorage, rel)
	}
	return filepath.Join(s.dir, clean), nil
}

// ReadIndex returns the raw cached index. A missing file yields os.ErrNotExist.
func (s *Store) ReadIndex() ([]byte, error) {
	return os.ReadFile(s.IndexPath())
}

// WriteIndex atomically replaces the cached index.
func (s *Store) WriteIndex(data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("meta: create storage dir: %w", err)
	}
	if err := renameio.WriteFile(s.IndexPath(), data, 0o644); err != nil {
		return fmt.Errorf("meta: write index: %w", err)
	}
	return nil
}

// WriteEntry streams r into the entry's file and atomically replaces it.
func (s *Store) WriteEntry(rel string, r io.Reader) (int64, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("meta: create entry dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return 0, fmt.Errorf("meta: create pending file: %w", err)
	}
	// Removes the temp file unless it was committed.
	defer pending.Cleanup()

	n, err := io.Copy(pending, r)
	if err != nil {
		return n, fmt.Errorf("meta: write %s: %w", rel, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return n, fmt.Errorf("meta: replace %s: %w", rel, err)
	}
	return n, nil
}

// OpenEntry opens the stored file for an entry.
func (s *Store) OpenEntry(rel string) (*os.File, error) {
	path, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}
