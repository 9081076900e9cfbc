// Package domain contains domain-specific interfaces and option types for
// GEDM.
//
// This package defines the boundary between the typed mapping layer and the
// document database driver: every adapter that talks to a database implements
// [Database], [Collection], [Cursor] and [Session]. Filters, updates and sorts
// crossing this boundary are already compiled to native query documents.
package domain

import (
	"context"
	"io"
	"time"
)

// Database is a handle to a document database.
type Database interface {
	// Name returns the database name.
	Name() string
	// Collection returns a handle to the named collection. Collections are
	// created lazily by the driver.
	Collection(name string) Collection
	// StartSession starts a new client session. The caller owns the
	// session and must end it.
	StartSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Collection is a handle to a collection of documents. Every method receives
// compiled native documents and carries the active session, if any, inside
// its options struct.
type Collection interface {
	// Name returns the collection name.
	Name() string
	// InsertOne inserts a document and returns its identity value. The
	// driver assigns the identity when the document lacks one.
	InsertOne(ctx context.Context, doc any, opts InsertOptions) (any, error)
	// InsertMany inserts documents and returns their identity values in
	// input order.
	InsertMany(ctx context.Context, docs []any, opts InsertOptions) ([]any, error)
	// Find returns a cursor over the documents matching filter.
	Find(ctx context.Context, filter any, opts FindOptions) (Cursor, error)
	// FindOneAndUpdate updates the first matching document and returns it.
	// It returns [ErrNoDocuments] when nothing matched and nothing was
	// upserted.
	FindOneAndUpdate(ctx context.Context, filter any, update any, opts FindOneAndModifyOptions) (map[string]any, error)
	// FindOneAndReplace replaces the first matching document and returns
	// it. It returns [ErrNoDocuments] when nothing matched and nothing was
	// upserted.
	FindOneAndReplace(ctx context.Context, filter any, replacement any, opts FindOneAndModifyOptions) (map[string]any, error)
	// FindOneAndDelete deletes the first matching document and returns it.
	// It returns [ErrNoDocuments] when nothing matched.
	FindOneAndDelete(ctx context.Context, filter any, opts FindOneAndModifyOptions) (map[string]any, error)
	// DeleteOne deletes at most one matching document.
	DeleteOne(ctx context.Context, filter any, opts DeleteOptions) (*DeleteResult, error)
	// DeleteMany deletes every matching document.
	DeleteMany(ctx context.Context, filter any, opts DeleteOptions) (*DeleteResult, error)
	// UpdateOne updates at most one matching document.
	UpdateOne(ctx context.Context, filter any, update any, opts UpdateOptions) (*UpdateResult, error)
	// UpdateMany updates every matching document.
	UpdateMany(ctx context.Context, filter any, update any, opts UpdateOptions) (*UpdateResult, error)
	// CountDocuments counts the documents matching filter.
	CountDocuments(ctx context.Context, filter any, opts CountOptions) (int64, error)
	// BulkWrite executes every model in a single batched call. A partial
	// failure returns both the result reported so far and the error.
	BulkWrite(ctx context.Context, models []WriteModel, opts BulkWriteOptions) (*BulkWriteResult, error)
	// CreateIndexes ensures the given indexes exist. Creating an index
	// that already exists with the same definition is a no-op.
	CreateIndexes(ctx context.Context, indexes []IndexModel, opts IndexOptions) ([]string, error)
	// Drop removes the collection and its indexes.
	Drop(ctx context.Context, opts DropOptions) error
}

// Cursor iterates over query results fetched lazily from the driver.
type Cursor interface {
	// Next advances the cursor, fetching a new batch if needed. It returns
	// false when the results are exhausted or an error occurred.
	Next(ctx context.Context) bool
	// Decode decodes the current document into v.
	Decode(v any) error
	// Err returns the last error seen by the cursor.
	Err() error
	// Close releases the cursor resources.
	Close(ctx context.Context) error
}

// Session is a client session able to run transactions.
type Session interface {
	// StartTransaction starts a transaction in the session.
	StartTransaction(opts TransactionOptions) error
	// CommitTransaction commits the active transaction.
	CommitTransaction(ctx context.Context) error
	// AbortTransaction aborts the active transaction.
	AbortTransaction(ctx context.Context) error
	// EndSession ends the session, aborting any active transaction.
	EndSession(ctx context.Context)
}

// Decoder decodes raw documents into user defined types.
type Decoder interface {
	// Decode decodes src into the pointer tgt.
	Decode(src any, tgt any) error
}

// Comparer orders native document values.
type Comparer interface {
	// Compare returns -1, 0 or 1 when a is lower than, equal to or greater
	// than b.
	Compare(a, b any) (int, error)
	// Comparable reports whether a and b have types that can be ordered
	// against each other by range operators.
	Comparable(a, b any) bool
}

// Getter represents a value found in a document, possibly unset.
type Getter interface {
	// Get returns the value and whether it is set.
	Get() (any, bool)
}

// GetSetter represents a settable location in a document.
type GetSetter interface {
	Getter
	// Set sets the value.
	Set(any)
	// Unset removes the value.
	Unset()
}

// FieldNavigator walks dotted paths through documents.
type FieldNavigator interface {
	// GetAddress splits a dotted path.
	GetAddress(string) ([]string, error)
	// GetField returns every location addressed by the path, expanding
	// arrays. The bool reports whether an array was expanded.
	GetField(any, ...string) ([]GetSetter, bool, error)
	// EnsureField works like GetField but creates missing documents on
	// the way.
	EnsureField(any, ...string) ([]GetSetter, error)
}

// Matcher evaluates whether documents match native filters.
type Matcher interface {
	// Match reports whether the value matches the filter.
	Match(any, any) (bool, error)
}

// Modifier applies native update documents.
type Modifier interface {
	// Modify applies an update to a document and returns the updated copy.
	Modify(doc map[string]any, update map[string]any) (map[string]any, error)
	// Upsert builds the document inserted by an upsert from the equality
	// clauses of the filter and the update.
	Upsert(filter map[string]any, update map[string]any) (map[string]any, error)
}

// IDGenerator generates identity values for documents that lack one.
type IDGenerator interface {
	// GenerateID returns a new identity value.
	GenerateID() (any, error)
}

// Hasher reduces values to comparable keys.
type Hasher interface {
	Hash(any) (uint64, error)
}

// TimeGetter returns the current time.
type TimeGetter interface {
	GetTime() time.Time
}

// Projector applies native projections to documents.
type Projector interface {
	// Project returns projected copies of docs. Values of projection are
	// truthy to keep a field or falsy to omit it.
	Project(docs []map[string]any, projection map[string]any) ([]map[string]any, error)
}

// Querier selects, orders and projects documents.
type Querier interface {
	Query(docs []map[string]any, q Query) ([]map[string]any, error)
}

// Index keeps an ordered view of a collection over one or more fields.
type Index interface {
	// Insert adds documents to the index. Nothing is added when one of
	// them fails.
	Insert(docs ...map[string]any) error
	// Remove removes documents from the index.
	Remove(docs ...map[string]any) error
	// Update swaps an old document for its new version.
	Update(oldDoc, newDoc map[string]any) error
	// UpdateMultipleDocs swaps every pair at once, reverting all of them
	// when one fails.
	UpdateMultipleDocs(pairs ...Update) error
	// Reset clears the index and inserts the given documents.
	Reset(docs ...map[string]any) error
	// Model returns the definition the index was built with.
	Model() IndexModel
	// GetNumberOfKeys returns the number of distinct keys.
	GetNumberOfKeys() int
}

// Storage persists datafiles of embedded drivers.
type Storage interface {
	// WriteFile replaces filename with what write produces. The previous
	// content survives a crash in the middle of the write.
	WriteFile(ctx context.Context, filename string, write func(io.Writer) error) error
	// ReadFile opens filename for reading, creating it empty when it does
	// not exist.
	ReadFile(ctx context.Context, filename string) (io.ReadCloser, error)
}
