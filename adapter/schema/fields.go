package schema

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// String declares a string field.
func String(s *Schema, name string, opts ...Option) *Field[string] {
	return newField[string](s, name, StringType, opts)
}

// Integer declares an integer field. JSON numbers with no fractional part are
// accepted.
func Integer(s *Schema, name string, opts ...Option) *Field[int64] {
	return newField[int64](s, name, IntegerType, opts)
}

// Float declares a floating point field.
func Float(s *Schema, name string, opts ...Option) *Field[float64] {
	return newField[float64](s, name, FloatType, opts)
}

// Boolean declares a boolean field.
func Boolean(s *Schema, name string, opts ...Option) *Field[bool] {
	return newField[bool](s, name, BooleanType, opts)
}

// Decimal declares a decimal field, dumped as a string.
func Decimal(s *Schema, name string, opts ...Option) *Field[bson.Decimal128] {
	return newField[bson.Decimal128](s, name, DecimalType, opts)
}

// DateTime declares a datetime field. Values are kept in UTC.
func DateTime(s *Schema, name string, opts ...Option) *Field[time.Time] {
	return newField[time.Time](s, name, DateTimeType, opts)
}

// ObjectID declares an object id field, dumped as a hex string.
func ObjectID(s *Schema, name string, opts ...Option) *Field[bson.ObjectID] {
	return newField[bson.ObjectID](s, name, ObjectIDType, opts)
}

// Dict declares a free-form document field.
func Dict(s *Schema, name string, opts ...Option) *Field[map[string]any] {
	return newField[map[string]any](s, name, DictType, opts)
}

// Literal declares a field restricted to values.
func Literal[T comparable](s *Schema, name string, values []T, opts ...Option) *Field[T] {
	return newField[T](s, name, LiteralType(values...), opts)
}

// Union declares a field accepting any of the codecs, tried in order.
func Union(s *Schema, name string, codecs []Codec, opts ...Option) *Field[any] {
	return newField[any](s, name, UnionType(codecs...), opts)
}

// Embedded declares a field holding a document of target.
func Embedded(s *Schema, name string, target Target, opts ...Option) *EmbeddedField {
	return &EmbeddedField{
		Field:  newField[*Document](s, name, DocumentType(target), opts),
		target: target,
	}
}

// List declares an array field whose elements are loaded with elem. T must be
// the type elem loads, such as string for [StringType].
func List[T any](s *Schema, name string, elem Codec, opts ...Option) *ListField[T] {
	return &ListField[T]{Field: newField[[]any](s, name, ListType(elem), opts)}
}

// EmbeddedList declares an array of documents of target.
func EmbeddedList(s *Schema, name string, target Target, opts ...Option) *ListField[*Document] {
	return List[*Document](s, name, DocumentType(target), opts...)
}

// NewUUID is a [DefaultFunc] producer of random UUID strings.
func NewUUID() string { return uuid.NewString() }
