// Package gedm provides typed document mapping for MongoDB-style databases.
//
// Schemas are declared with typed field handles (see package schema). The
// handles build filters and sorts, and each schema gets a document manager
// once [InitialCollections] binds it to a [Database].
//
// Two databases ship with the module: [NewMemory] starts an embedded
// in-memory database and [Connect] reaches a MongoDB deployment.
package gedm

import (
	"context"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/binder"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/manager"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/memdriver"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/mongodriver"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/session"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

var (
	// ErrNotInitialized is returned by a manager whose schema was never
	// bound by [InitialCollections].
	ErrNotInitialized = domain.ErrNotInitialized
	// ErrNotLoaded is returned when reading a field that a partial load
	// left out.
	ErrNotLoaded = domain.ErrNotLoaded
	// ErrNoDocuments is returned by drivers when a FindOneAnd* operation
	// matched nothing.
	ErrNoDocuments = domain.ErrNoDocuments
	// ErrCursorClosed is returned when using a closed [Cursor].
	ErrCursorClosed = domain.ErrCursorClosed
	// ErrCannotModifyID is returned when an update would change a document
	// _id.
	ErrCannotModifyID = domain.ErrCannotModifyID
	// ErrNoSession is returned when committing or aborting a transaction
	// that was never started.
	ErrNoSession = domain.ErrNoSession
)

// ErrValidation is returned when raw data does not fit a schema field.
type ErrValidation = domain.ErrValidation

// ErrConfiguration is returned for schema declaration and binding mistakes.
type ErrConfiguration = domain.ErrConfiguration

// ErrConstraintViolated is returned when a write breaks a unique index.
type ErrConstraintViolated = domain.ErrConstraintViolated

// ErrFieldName is returned for document keys starting with '$' or containing
// '.'.
type ErrFieldName = domain.ErrFieldName

// ErrFilterType is returned when a filter, sort or projection has an
// unsupported type.
type ErrFilterType = domain.ErrFilterType

// ErrBulkWrite is returned when some operations of a bulk write failed.
type ErrBulkWrite = domain.ErrBulkWrite

type (
	// Database is a handle to a document database.
	Database = domain.Database
	// Collection is a handle to a collection of a [Database].
	Collection = domain.Collection
	// Cursor iterates over query results.
	Cursor = domain.Cursor
	// Session is a client session able to run transactions.
	Session = domain.Session
	// Objects is the document manager of a schema.
	Objects = manager.Objects
)

// InitialCollections binds schemas to db with the default registry and
// ensures their indexes. See [binder.Registry.InitialCollections].
func InitialCollections(ctx context.Context, db Database, schemas ...*schema.Schema) error {
	return binder.InitialCollections(ctx, db, schemas...)
}

// Manager returns the document manager of s. It can be created before
// [InitialCollections] runs and fails with [ErrNotInitialized] until then.
//
// - [manager.WithRegistry]: uses a registry other than the default one.
func Manager(s *schema.Schema, options ...manager.ManagerOption) *Objects {
	return manager.New(s, options...)
}

// NewMemory creates an embedded in-memory database with the provided
// configuration options:
//
// - [memdriver.WithLogger]: sets the logger for collection and transaction
// events.
//
// - [memdriver.WithIDGenerator]: sets the generator of missing _id values.
//
// - [memdriver.WithTimeGetter]: sets the clock used by TTL indexes.
//
// - [memdriver.WithDecoder]: sets the decoder used by cursors.
//
// - [memdriver.WithComparer]: sets the comparer for sorts and indexes.
//
// - [memdriver.WithStorage]: sets the storage behind SaveFile and LoadFile.
func NewMemory(name string, options ...memdriver.Option) *memdriver.Database {
	return memdriver.New(name, options...)
}

// Connect connects to the MongoDB deployment described by cfg. Use
// [mongodriver.LoadConfig] to read cfg from a YAML file.
//
// - [mongodriver.WithLogger]: sets the logger for connection events.
func Connect(ctx context.Context, cfg mongodriver.Config, options ...mongodriver.Option) (*mongodriver.Client, error) {
	return mongodriver.Connect(ctx, cfg, options...)
}

// UseSession runs fn with sess as the ambient session of ctx.
func UseSession(ctx context.Context, sess Session, fn func(ctx context.Context) error) error {
	return session.UseSession(ctx, sess, fn)
}

// UseTransaction runs fn inside a transaction on db, committing when fn
// returns nil and aborting otherwise. An ambient session of ctx is reused
// unless it is running a transaction already, in which case the transaction
// runs in a new session.
//
// - [session.WithCausalConsistency]: sets the consistency of new sessions.
//
// - [session.WithMaxCommitTime]: bounds the commit duration.
func UseTransaction(ctx context.Context, db Database, fn func(ctx context.Context) error, options ...session.Option) error {
	return session.UseTransaction(ctx, db, fn, options...)
}
