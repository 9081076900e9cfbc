package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// InsertOptions configures inserts.
type InsertOptions struct {
	// Ordered stops InsertMany on the first failure. Unordered inserts
	// try every document.
	Ordered bool
	// Session is the active session, or nil.
	Session Session
}

// FindOptions configures queries.
type FindOptions struct {
	// Projection specifies which fields to include or exclude.
	Projection bson.M
	// Sort specifies the ordering of the results.
	Sort bson.D
	// Skip specifies the number of documents to skip.
	Skip int64
	// Limit specifies the maximum number of documents to return. Zero
	// means no limit.
	Limit int64
	// Session is the active session, or nil.
	Session Session
}

// FindOneAndModifyOptions configures the FindOneAnd* operations.
type FindOneAndModifyOptions struct {
	// ReturnAfter returns the document as it is after the operation.
	ReturnAfter bool
	// Upsert inserts a document when nothing matches. Ignored by deletes.
	Upsert bool
	// Projection specifies which fields of the returned document to keep.
	Projection bson.M
	// Sort chooses the document when several match.
	Sort bson.D
	// ArrayFilters select array elements for positional updates.
	ArrayFilters []any
	// Session is the active session, or nil.
	Session Session
}

// UpdateOptions configures UpdateOne and UpdateMany.
type UpdateOptions struct {
	// Upsert inserts a document when nothing matches.
	Upsert bool
	// ArrayFilters select array elements for positional updates.
	ArrayFilters []any
	// Session is the active session, or nil.
	Session Session
}

// DeleteOptions configures DeleteOne and DeleteMany.
type DeleteOptions struct {
	// Session is the active session, or nil.
	Session Session
}

// CountOptions configures CountDocuments.
type CountOptions struct {
	// Skip and Limit restrict the counted documents.
	Skip, Limit int64
	// Session is the active session, or nil.
	Session Session
}

// BulkWriteOptions configures BulkWrite.
type BulkWriteOptions struct {
	// Ordered stops the batch on the first failure.
	Ordered bool
	// Session is the active session, or nil.
	Session Session
}

// IndexOptions configures CreateIndexes.
type IndexOptions struct {
	// Session is the active session, or nil.
	Session Session
}

// DropOptions configures Drop.
type DropOptions struct {
	// Session is the active session, or nil.
	Session Session
}

// SessionOptions configures StartSession.
type SessionOptions struct {
	// CausalConsistency makes reads observe preceding writes of the same
	// session.
	CausalConsistency bool
	// DefaultTransaction is used by transactions started without options.
	DefaultTransaction TransactionOptions
}

// TransactionOptions configures StartTransaction.
type TransactionOptions struct {
	// MaxCommitTime bounds the commit duration. Zero keeps the driver
	// default.
	MaxCommitTime time.Duration
}
