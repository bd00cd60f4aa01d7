package cache

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// FileCache stores one file per entry below a directory, fanned out by the
// first two hex digits of the hashed key.
//
// Each file starts with an 8-byte big-endian expiry in Unix nanoseconds
// (zero for none) followed by the data. Writes go through a temporary file
// and a rename, so concurrent readers never see a torn entry.
type FileCache struct {
	dir string
}

const fileHeaderLen = 8

// NewFileCache creates a file cache in dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.ErrCodeWriteFailed, err, "create cache dir %s", dir)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the entry for key. Corrupt and expired entries are removed and
// reported as misses.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrCodeReadFailed, err, "read cache entry")
	}
	if len(data) < fileHeaderLen {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if exp := int64(binary.BigEndian.Uint64(data)); exp != 0 && time.Now().UnixNano() > exp {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data[fileHeaderLen:], true, nil
}

// Set stores data under key.
func (c *FileCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, fileHeaderLen, fileHeaderLen+len(data))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(time.Now().Add(ttl).UnixNano()))
	}
	buf = append(buf, data...)
	return cdx.AtomicWrite(c.path(key), buf)
}

// Delete removes the entry for key. A missing entry is not an error.
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return errs.Wrap(errs.ErrCodeWriteFailed, err, "delete cache entry")
}

// Clear removes every entry and returns how many were removed. Other
// directories below the cache directory are left alone.
func (c *FileCache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeReadFailed, err, "read cache dir")
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != 2 {
			continue
		}
		sub := filepath.Join(c.dir, e.Name())
		files, err := os.ReadDir(sub)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && os.Remove(filepath.Join(sub, f.Name())) == nil {
				count++
			}
		}
		_ = os.Remove(sub)
	}
	return count, nil
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+".bin")
}

var _ Cache = (*FileCache)(nil)
