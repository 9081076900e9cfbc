package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNotInitialized is returned when a manager is used before its schema
	// was bound by InitialCollections.
	ErrNotInitialized = errors.New("schema has not been initialized")
	// ErrNotLoaded is returned when reading a field that is absent from a
	// partially loaded document.
	ErrNotLoaded = errors.New("field not loaded")
	// ErrNoDocuments is returned by the FindOneAnd* methods of [Collection]
	// when no document matched.
	ErrNoDocuments = errors.New("no documents in result")
	// ErrCursorClosed is returned when using a closed cursor.
	ErrCursorClosed = errors.New("cursor is closed")
	// ErrCannotModifyID is returned when an update would change a
	// document _id.
	ErrCannotModifyID = errors.New("cannot modify a document _id")
	// ErrNoSession is returned when a transaction is committed or aborted
	// without being started.
	ErrNoSession = errors.New("no transaction started")
)

// ErrValidation is returned when a raw value cannot be loaded into a field.
// Several of them are joined with [errors.Join] when a document has more than
// one invalid field.
type ErrValidation struct {
	// Path is the dotted path of the offending field.
	Path string
	// Expected names the declared type or constraint.
	Expected string
	// Actual names the received type, empty for missing fields.
	Actual string
	// Reason is a short description of the failure.
	Reason string
}

func (e *ErrValidation) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "field %q: %s", e.Path, e.Reason)
	if e.Expected != "" {
		fmt.Fprintf(&b, " (expected %s", e.Expected)
		if e.Actual != "" {
			fmt.Fprintf(&b, ", got %s", e.Actual)
		}
		b.WriteByte(')')
	}
	return b.String()
}

// ErrConfiguration is returned for schema declaration and binding mistakes,
// such as conflicting collection names or unresolved references.
type ErrConfiguration struct {
	Schema string
	Reason string
}

func (e *ErrConfiguration) Error() string {
	if e.Schema == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error on %q: %s", e.Schema, e.Reason)
}

// ErrFilterType is returned when a value of unsupported type is used as a
// filter, sort or projection.
type ErrFilterType struct {
	Kind  string
	Value any
}

func (e *ErrFilterType) Error() string {
	return fmt.Sprintf("unsupported %s type %T", e.Kind, e.Value)
}

// ErrConstraintViolated is returned when a write breaks a unique index.
type ErrConstraintViolated struct {
	Index string
	Key   any
}

func (e *ErrConstraintViolated) Error() string {
	return fmt.Sprintf("duplicate key %v violates unique index %q", e.Key, e.Index)
}

// ErrFieldName is returned when a document contains a key starting with '$'
// or containing '.'.
type ErrFieldName struct {
	Field  string
	Reason string
}

func (e *ErrFieldName) Error() string {
	return fmt.Sprintf("invalid field name %q: %s", e.Field, e.Reason)
}

// ErrBulkWrite is returned by in-process drivers when some operations of a
// bulk write failed. Errors maps the position of each failed model to its
// cause.
type ErrBulkWrite struct {
	Errors map[int]error
}

func (e *ErrBulkWrite) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, i := range slices.Sorted(maps.Keys(e.Errors)) {
		msgs = append(msgs, fmt.Sprintf("operation %d: %s", i, e.Errors[i]))
	}
	return "bulk write failed: " + strings.Join(msgs, "; ")
}

// Unwrap returns the errors of every failed operation.
func (e *ErrBulkWrite) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, i := range slices.Sorted(maps.Keys(e.Errors)) {
		errs = append(errs, e.Errors[i])
	}
	return errs
}

// ErrFlushToStorage is returned when a datafile or its directory could not be
// synced to disk.
type ErrFlushToStorage struct {
	ErrorOnFsync error
	ErrorOnClose error
}

func (e ErrFlushToStorage) Error() string {
	return "storage flush error: " + e.Unwrap().Error()
}

// Unwrap returns the sync error, or the close error when syncing succeeded.
func (e ErrFlushToStorage) Unwrap() error {
	if e.ErrorOnFsync != nil {
		return e.ErrorOnFsync
	}
	return e.ErrorOnClose
}
