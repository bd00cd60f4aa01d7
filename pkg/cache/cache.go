// Package cache stores extraction results keyed by manifest content.
//
// A [Cache] is a plain byte store with optional expiry. Four backends are
// provided:
//
//   - [FileCache] for the CLI, under the user cache directory
//   - [MemoryCache], a bounded LRU for the HTTP server and tests
//   - [RedisCache], shared between server replicas
//   - [NullCache], which stores nothing
//
// Keys come from a [Keyer] so that callers never build key strings by hand.
// The pipeline stores one normalized per-file graph under
// [Keyer.ExtractKey]; changing the manifest bytes, the extractor or the
// normalization options changes the key.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Cache is a byte store with per-entry expiry. A zero ttl never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// DefaultMemorySize is the entry limit of a memory cache opened with size 0.
const DefaultMemorySize = 1024

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Dir        string // file backend; empty selects DefaultDir
	MemorySize int
	Redis      RedisOptions
}

// Open returns the backend named by opts.Backend. An empty backend selects
// the file cache.
func Open(opts Options) (Cache, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		dir := opts.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewFileCache(dir)
	case BackendMemory:
		return NewMemoryCache(opts.MemorySize)
	case BackendRedis:
		return NewRedisCache(opts.Redis)
	case BackendNone, "null", "off":
		return NewNullCache(), nil
	}
	return nil, errs.New(errs.ErrCodeInvalidConfig, "unknown cache backend %q", opts.Backend)
}

// DefaultDir returns the per-user cache directory for stackbom.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeInvalidConfig, err, "locate user cache directory")
	}
	return filepath.Join(base, "stackbom"), nil
}
