package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/stackbom/pkg/cache"
	"github.com/matzehuels/stackbom/pkg/cdx"
	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// Defaults for [MongoOptions].
const (
	DefaultMongoDatabase   = "stackbom"
	DefaultMongoCollection = "boms"
)

// MongoOptions configures [NewMongoStore].
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Keyer      cache.Keyer // derives document ids; defaults to cache.DefaultKeyer
}

// MongoStore keeps one record per project in a MongoDB collection. The
// document itself is stored in binary form.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	keyer  cache.Keyer
	now    func() time.Time
}

// record is the stored shape.
type record struct {
	ID          string    `bson:"_id"`
	Project     string    `bson:"project"`
	SpecVersion string    `bson:"spec_version"`
	Serial      string    `bson:"serial_number,omitempty"`
	Components  int       `bson:"components"`
	UpdatedAt   time.Time `bson:"updated_at"`
	Data        []byte    `bson:"data"`
}

// NewMongoStore connects to opts.URI.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.URI == "" {
		return nil, errs.New(errs.ErrCodeInvalidConfig, "mongo store requires a URI")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidConfig, err, "connect to mongo")
	}
	return newMongoStore(client, opts), nil
}

func newMongoStore(client *mongo.Client, opts MongoOptions) *MongoStore {
	if opts.Database == "" {
		opts.Database = DefaultMongoDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultMongoCollection
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
		keyer:  opts.Keyer,
		now:    time.Now,
	}
}

// Load implements [Store].
func (s *MongoStore) Load(ctx context.Context, project string) (*cdx.Document, bool, error) {
	var rec record
	err := cache.RetryWithBackoff(ctx, func() error {
		return classify(s.coll.FindOne(ctx, bson.M{"_id": s.keyer.DocumentKey(project)}).Decode(&rec))
	})
	if err != nil {
		// Not found and unreachable both count as absent.
		return nil, false, nil
	}
	doc, err := rec.document()
	if err != nil {
		return nil, true, err
	}
	return doc, true, nil
}

// Save implements [Store].
func (s *MongoStore) Save(ctx context.Context, project string, doc *cdx.Document) error {
	rec, err := newRecord(s.keyer.DocumentKey(project), project, doc, s.now())
	if err != nil {
		return err
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, options.Replace().SetUpsert(true))
		return classify(err)
	})
	if err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "save document for %s", project)
	}
	return nil
}

// Delete implements [Store].
func (s *MongoStore) Delete(ctx context.Context, project string) error {
	err := cache.RetryWithBackoff(ctx, func() error {
		_, err := s.coll.DeleteOne(ctx, bson.M{"_id": s.keyer.DocumentKey(project)})
		return classify(err)
	})
	if err != nil {
		return errs.Wrap(errs.ErrCodeWriteFailed, err, "delete document for %s", project)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func newRecord(id, project string, doc *cdx.Document, now time.Time) (*record, error) {
	data, err := cdx.ToBinary(doc)
	if err != nil {
		return nil, err
	}
	return &record{
		ID:          id,
		Project:     project,
		SpecVersion: doc.SpecVersion,
		Serial:      doc.SerialNumber,
		Components:  len(doc.Components),
		UpdatedAt:   now.UTC().Truncate(time.Millisecond),
		Data:        data,
	}, nil
}

func (r *record) document() (*cdx.Document, error) {
	return cdx.FromBinary(r.Data, r.SpecVersion)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return cache.Retryable(err)
	}
	return err
}

var _ Store = (*MongoStore)(nil)
