package schema

import (
	"fmt"
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Descriptor is the untyped view of a declared field, used by schemas to load
// and dump documents.
type Descriptor interface {
	expression.Ref
	// Name returns the field name, which is also its document key.
	Name() string
	// Codec returns the value codec.
	Codec() Codec
	// Required reports whether a non-partial load fails without the field.
	Required() bool
	// Default returns a new default raw value, if the field has one.
	Default() (any, bool)
	// IndexModel returns the index declared on the field, if any.
	IndexModel() (domain.IndexModel, bool)

	load(path string, raw any, partial bool) (any, error)
	base() Descriptor
}

type indexOptions struct {
	unique bool
	sparse bool
	expire time.Duration
}

type fieldOptions struct {
	optional bool
	nullable bool
	def      func() any
	rules    string
	checks   []func(any) error
	index    *indexOptions
}

// Option configures a field declaration.
type Option func(*fieldOptions)

// Optional makes the field not required in non-partial loads.
func Optional() Option {
	return func(o *fieldOptions) {
		o.optional = true
	}
}

// Nullable accepts null as a value.
func Nullable() Option {
	return func(o *fieldOptions) {
		o.nullable = true
	}
}

// Default sets a static default raw value. Maps and slices are copied for
// every document.
func Default(v any) Option {
	return func(o *fieldOptions) {
		o.def = func() any { return expression.Clone(v) }
	}
}

// DefaultFunc sets a default value producer, called once per loaded document
// that lacks the field.
func DefaultFunc[T any](fn func() T) Option {
	return func(o *fieldOptions) {
		o.def = func() any { return fn() }
	}
}

// Validate adds validation rules in the github.com/go-playground/validator
// syntax, such as "gte=0,lte=130" or "email".
func Validate(rules string) Option {
	return func(o *fieldOptions) {
		if o.rules != "" {
			o.rules += ","
		}
		o.rules += rules
	}
}

// Check adds a validation function run on the loaded value.
func Check[T any](fn func(T) error) Option {
	return func(o *fieldOptions) {
		o.checks = append(o.checks, func(v any) error {
			t, ok := v.(T)
			if !ok {
				return fmt.Errorf("unexpected type %T", v)
			}
			return fn(t)
		})
	}
}

// Index declares an ascending index on the field.
func Index() Option {
	return func(o *fieldOptions) {
		if o.index == nil {
			o.index = &indexOptions{}
		}
	}
}

// Unique declares a unique index on the field.
func Unique() Option {
	return func(o *fieldOptions) {
		Index()(o)
		o.index.unique = true
	}
}

// Sparse makes the field index skip documents without the field.
func Sparse() Option {
	return func(o *fieldOptions) {
		Index()(o)
		o.index.sparse = true
	}
}

// Expire declares a TTL index on a datetime field.
func Expire(d time.Duration) Option {
	return func(o *fieldOptions) {
		Index()(o)
		o.index.expire = d
	}
}

// Field is a typed handle to a declared field. The embedded path makes every
// field usable in expressions and sorts: Age.Gte(18), Age.Desc().
type Field[T any] struct {
	expression.Path
	name  string
	codec Codec
	opts  fieldOptions
}

func newField[T any](s *Schema, name string, codec Codec, options []Option) *Field[T] {
	f := &Field[T]{Path: expression.Path(name), name: name, codec: codec}
	for _, opt := range options {
		opt(&f.opts)
	}
	s.register(f)
	return f
}

// Name implements [Descriptor].
func (f *Field[T]) Name() string { return f.name }

// Codec implements [Descriptor].
func (f *Field[T]) Codec() Codec { return f.codec }

// Required implements [Descriptor].
func (f *Field[T]) Required() bool { return !f.opts.optional && f.opts.def == nil }

// Default implements [Descriptor].
func (f *Field[T]) Default() (any, bool) {
	if f.opts.def == nil {
		return nil, false
	}
	return f.opts.def(), true
}

// IndexModel implements [Descriptor].
func (f *Field[T]) IndexModel() (domain.IndexModel, bool) {
	if f.opts.index == nil {
		return domain.IndexModel{}, false
	}
	return domain.IndexModel{
		Keys:        bson.D{{Key: f.name, Value: 1}},
		Unique:      f.opts.index.unique,
		Sparse:      f.opts.index.sparse,
		ExpireAfter: f.opts.index.expire,
	}, true
}

func (f *Field[T]) base() Descriptor { return f }

func (f *Field[T]) load(path string, raw any, partial bool) (any, error) {
	if raw == nil {
		if f.opts.nullable {
			return nil, nil
		}
		return nil, &domain.ErrValidation{Path: path, Expected: f.codec.Kind(), Actual: "null", Reason: "field may not be null"}
	}
	v, err := f.codec.Load(path, raw, partial)
	if err != nil {
		return nil, err
	}
	if f.opts.rules != "" {
		if err := validateRules(path, v, f.opts.rules); err != nil {
			return nil, err
		}
	}
	for _, check := range f.opts.checks {
		if err := check(v); err != nil {
			return nil, &domain.ErrValidation{Path: path, Expected: f.codec.Kind(), Reason: err.Error()}
		}
	}
	return v, nil
}

func (f *Field[T]) owned(doc *Document) error {
	if doc == nil {
		return &domain.ErrConfiguration{Reason: fmt.Sprintf("field %q read from a nil document", f.name)}
	}
	if doc.schema.byName[f.name] != Descriptor(f) {
		return &domain.ErrConfiguration{Schema: doc.schema.name, Reason: fmt.Sprintf("field %q does not belong to the schema", f.name)}
	}
	return nil
}

// Get returns the value of the field in doc. It returns
// [domain.ErrNotLoaded] when the document was partially loaded without it.
// A null value is returned as the zero value of T.
func (f *Field[T]) Get(doc *Document) (T, error) {
	var zero T
	if err := f.owned(doc); err != nil {
		return zero, err
	}
	v, ok := doc.values[f.name]
	if !ok {
		return zero, fmt.Errorf("%w: %s", domain.ErrNotLoaded, f.name)
	}
	if v == nil {
		return zero, nil
	}
	return v.(T), nil
}

// Lookup returns the value of the field in doc and whether it is set.
func (f *Field[T]) Lookup(doc *Document) (T, bool) {
	v, err := f.Get(doc)
	return v, err == nil
}

// Set assigns v to the field in doc.
func (f *Field[T]) Set(doc *Document, v T) {
	if err := f.owned(doc); err != nil {
		panic(err)
	}
	doc.values[f.name] = any(v)
}

// Unset removes the field from doc.
func (f *Field[T]) Unset(doc *Document) {
	if err := f.owned(doc); err != nil {
		panic(err)
	}
	delete(doc.values, f.name)
}

// With returns an assignment of v, for [Schema.New].
func (f *Field[T]) With(v T) Assignment {
	return Assignment{field: f, value: any(v)}
}

// Assignment is a field value used to build documents with [Schema.New].
type Assignment struct {
	field Descriptor
	value any
}
