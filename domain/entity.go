package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDKey is the native identity key of every top-level document.
const IDKey = "_id"

// WriteKind identifies the operation carried by a [WriteModel].
type WriteKind uint8

const (
	// WriteInsertOne inserts WriteModel.Document.
	WriteInsertOne WriteKind = iota + 1
	// WriteUpdateOne applies WriteModel.Update to one matching document.
	WriteUpdateOne
	// WriteUpdateMany applies WriteModel.Update to every matching document.
	WriteUpdateMany
	// WriteReplaceOne replaces one matching document with
	// WriteModel.Document.
	WriteReplaceOne
	// WriteDeleteOne deletes one matching document.
	WriteDeleteOne
	// WriteDeleteMany deletes every matching document.
	WriteDeleteMany
)

var writeKindNames = map[WriteKind]string{
	WriteInsertOne:  "insertOne",
	WriteUpdateOne:  "updateOne",
	WriteUpdateMany: "updateMany",
	WriteReplaceOne: "replaceOne",
	WriteDeleteOne:  "deleteOne",
	WriteDeleteMany: "deleteMany",
}

func (k WriteKind) String() string {
	if name, ok := writeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// WriteModel is one compiled operation of a bulk write.
type WriteModel struct {
	Kind WriteKind
	// Filter is the compiled filter for every kind but WriteInsertOne.
	Filter any
	// Document is the native document of inserts and replacements.
	Document any
	// Update is the update document of update kinds.
	Update any
	// Upsert inserts a document when the filter matches nothing.
	Upsert bool
	// ArrayFilters select array elements for positional updates.
	ArrayFilters []any
}

// IndexModel describes an index of a collection.
type IndexModel struct {
	// Keys lists the indexed paths in order, with 1 or -1 as value.
	Keys bson.D
	// Name overrides the name generated by the driver.
	Name string
	// Unique rejects documents with duplicated keys.
	Unique bool
	// Sparse skips documents without the indexed fields.
	Sparse bool
	// ExpireAfter turns the index into a TTL index when positive.
	ExpireAfter time.Duration
	// PartialFilter restricts the index to matching documents.
	PartialFilter bson.M
}

// GeneratedName returns Name, or the driver default name built from the keys
// ("a_1_b_-1").
func (m IndexModel) GeneratedName() string {
	if m.Name != "" {
		return m.Name
	}
	parts := make([]string, 0, len(m.Keys)*2)
	for _, k := range m.Keys {
		parts = append(parts, k.Key, fmt.Sprint(k.Value))
	}
	return strings.Join(parts, "_")
}

// UpdateResult reports the outcome of an update.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedCount int64
	UpsertedID    any
}

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	DeletedCount int64
}

// BulkWriteResult aggregates the counts of every operation kind of a bulk
// write.
type BulkWriteResult struct {
	InsertedCount int64
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
	UpsertedCount int64
	// UpsertedIDs maps the position of each upserting model to the
	// identity it inserted.
	UpsertedIDs map[int64]any
}

// Update pairs a stored document with the version replacing it.
type Update struct {
	OldDoc map[string]any
	NewDoc map[string]any
}

// Query describes a selection made by a [Querier].
type Query struct {
	// Filter is a normalized native filter. Nil matches everything.
	Filter map[string]any
	// Sort orders the results before Skip and Limit apply.
	Sort bson.D
	// Skip and Limit restrict the results. Zero Limit means no limit.
	Skip, Limit int64
	// Projection is applied last.
	Projection map[string]any
}
