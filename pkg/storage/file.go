package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// FileStore keeps one binary document per project below a directory. File
// names are derived from a hash of the project root.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file store in baseDir. If baseDir is empty it
// defaults to [DefaultDir].
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrCodeWriteFailed, err, "create store dir %s", baseDir)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// DefaultDir returns the boms directory below the user cache directory.
func DefaultDir() (string, error) {
	dir, err := cache.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "boms"), nil
}

// Path returns the file that holds the document of project.
func (s *FileStore) Path(project string) string {
	return filepath.Join(s.baseDir, cache.Hash([]byte(project))+".cdx.pb")
}

// Load implements [Store].
func (s *FileStore) Load(_ context.Context, project string) (*cdx.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cdx.LoadBinaryFile(s.Path(project), "")
}

// Save implements [Store].
func (s *FileStore) Save(_ context.Context, project string, doc *cdx.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cdx.WriteFile(s.Path(project), doc, cdx.FormatBinary)
}

// Delete implements [Store].
func (s *FileStore) Delete(_ context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path(project)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "remove stored document")
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Dir returns the base directory.
func (s *FileStore) Dir() string { return s.baseDir }

var _ Store = (*FileStore)(nil)
