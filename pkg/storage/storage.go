// Package storage persists the last generated document of each project so
// that the next run can report what changed.
//
// A [Store] distinguishes "no prior document" from "prior document that does
// not decode": Load returns found == false and no error for the first, and
// found == true with an error for the second.
//
// Backends:
//   - [FileStore]: binary documents under a directory, written atomically
//   - [MongoStore]: one MongoDB document per project
//   - [NopStore]: stores nothing
package storage

import (
	"context"
	"strings"

	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Store persists one document per project root.
type Store interface {
	// Load returns the stored document for project. A missing or unreadable
	// entry returns found == false and a nil error.
	Load(ctx context.Context, project string) (doc *cdx.Document, found bool, err error)

	// Save replaces the stored document for project.
	Save(ctx context.Context, project string, doc *cdx.Document) error

	// Delete removes the stored document. A missing entry is not an error.
	Delete(ctx context.Context, project string) error

	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string // file backend; empty selects DefaultDir
	Mongo   MongoOptions
}

// Open returns the backend named by opts.Backend. An empty backend selects
// the file store. The Mongo backend connects immediately.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileStore(opts.Dir)
	case BackendMongo:
		return NewMongoStore(ctx, opts.Mongo)
	case BackendNone, "off":
		return NopStore{}, nil
	}
	return nil, errs.New(errs.ErrCodeInvalidConfig, "unknown store backend %q", opts.Backend)
}

// NopStore never has a prior document and discards saves.
type NopStore struct{}

func (NopStore) Load(context.Context, string) (*cdx.Document, bool, error) { return nil, false, nil }
func (NopStore) Save(context.Context, string, *cdx.Document) error         { return nil }
func (NopStore) Delete(context.Context, string) error                      { return nil }
func (NopStore) Close() error                                              { return nil }

var _ Store = NopStore{}
