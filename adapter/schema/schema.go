// Package schema declares document schemas and typed field handles, and loads
// raw documents into validated [Document] values.
package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gobuffalo/flect"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Target is a schema or a lazy reference to one, used by embedded fields.
type Target interface {
	resolve() (*Schema, error)
	targetName() string
}

// SchemaOption configures a schema in [New].
type SchemaOption func(*Schema)

// EmbeddedOnly marks a schema as only usable inside other documents. Embedded
// schemas have no identity field and no collection.
func EmbeddedOnly() SchemaOption {
	return func(s *Schema) {
		s.embedded = true
	}
}

// Collection overrides the collection name.
func Collection(name string) SchemaOption {
	return func(s *Schema) {
		s.collection = name
	}
}

// Strict makes loads fail on keys that are not declared fields.
func Strict() SchemaOption {
	return func(s *Schema) {
		s.strict = true
	}
}

// Extends copies the fields of base, in order, before any field declared on
// the new schema.
func Extends(base *Schema) SchemaOption {
	return func(s *Schema) {
		for _, f := range base.fields {
			if f == base.autoID {
				continue
			}
			s.register(f)
		}
		s.indexes = append(s.indexes, base.indexes...)
	}
}

// IndexSpec is a schema-level index, possibly on several keys.
type IndexSpec struct {
	Keys          []expression.Order
	Name          string
	Unique        bool
	Sparse        bool
	ExpireAfter   time.Duration
	PartialFilter expression.Expression
}

// Schema is an ordered set of fields. Fields are declared with the
// constructors of this package right after the schema, usually as package
// variables, and the schema is sealed the first time it loads a document.
type Schema struct {
	name       string
	collection string
	embedded   bool
	strict     bool

	fields  []Descriptor
	byName  map[string]Descriptor
	autoID  Descriptor
	indexes []IndexSpec

	sealed bool
	once   sync.Once
}

// New declares a schema. It panics with a [*domain.ErrConfiguration] when the
// name is not an exported-style identifier without underscores.
func New(name string, opts ...SchemaOption) *Schema {
	if err := checkName(name); err != nil {
		panic(err)
	}
	s := &Schema{
		name:       name,
		collection: flect.Underscore(name),
		byName:     map[string]Descriptor{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.embedded {
		if _, ok := s.byName[domain.IDKey]; !ok {
			s.autoID = ObjectID(s, domain.IDKey, Optional())
		}
	}
	registry.add(s)
	return s
}

func checkName(name string) error {
	switch {
	case name == "":
		return &domain.ErrConfiguration{Reason: "schema name is empty"}
	case strings.Contains(name, "_"):
		return &domain.ErrConfiguration{Schema: name, Reason: "schema name may not contain underscores"}
	case !unicode.IsUpper([]rune(name)[0]):
		return &domain.ErrConfiguration{Schema: name, Reason: "schema name must start with an uppercase letter"}
	}
	return nil
}

func (s *Schema) resolve() (*Schema, error) { return s, nil }

func (s *Schema) targetName() string { return s.name }

func (s *Schema) register(f Descriptor) {
	if s.sealed {
		panic(&domain.ErrConfiguration{Schema: s.name, Reason: fmt.Sprintf("field %q declared after first use", f.Name())})
	}
	name := f.Name()
	if name == "" || strings.ContainsAny(name, ".$") {
		panic(&domain.ErrConfiguration{Schema: s.name, Reason: fmt.Sprintf("invalid field name %q", name)})
	}
	if old, ok := s.byName[name]; ok {
		if old != s.autoID {
			panic(&domain.ErrConfiguration{Schema: s.name, Reason: fmt.Sprintf("field %q declared twice", name)})
		}
		n := slices.Index(s.fields, old)
		s.fields[n] = f
		s.byName[name] = f
		s.autoID = nil
		return
	}
	s.fields = append(s.fields, f)
	s.byName[name] = f
}

func (s *Schema) seal() {
	s.once.Do(func() { s.sealed = true })
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// CollectionName returns the name of the collection documents are stored in.
func (s *Schema) CollectionName() string { return s.collection }

// IsEmbedded reports whether the schema was declared with [EmbeddedOnly].
func (s *Schema) IsEmbedded() bool { return s.embedded }

// ID returns the identity field, or nil for embedded schemas.
func (s *Schema) ID() Descriptor { return s.byName[domain.IDKey] }

// Fields returns the declared fields in order.
func (s *Schema) Fields() []Descriptor { return slices.Clone(s.fields) }

// Field returns the field with the given name.
func (s *Schema) Field(name string) (Descriptor, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// AddIndex declares a schema-level index.
func (s *Schema) AddIndex(idx IndexSpec) *Schema {
	if s.sealed {
		panic(&domain.ErrConfiguration{Schema: s.name, Reason: "index declared after first use"})
	}
	if len(idx.Keys) == 0 {
		panic(&domain.ErrConfiguration{Schema: s.name, Reason: "index without keys"})
	}
	s.indexes = append(s.indexes, idx)
	return s
}

// IndexModels returns every index declared on the schema and its fields, with
// generated names where none was given.
func (s *Schema) IndexModels() []domain.IndexModel {
	s.seal()
	var res []domain.IndexModel
	for _, f := range s.fields {
		if m, ok := f.IndexModel(); ok {
			m.Name = m.GeneratedName()
			res = append(res, m)
		}
	}
	for _, idx := range s.indexes {
		m := domain.IndexModel{
			Keys:        expression.CompileSort(idx.Keys...),
			Name:        idx.Name,
			Unique:      idx.Unique,
			Sparse:      idx.Sparse,
			ExpireAfter: idx.ExpireAfter,
		}
		if idx.PartialFilter != nil {
			m.PartialFilter = idx.PartialFilter.Compile()
		}
		if m.Name == "" {
			m.Name = m.GeneratedName()
		}
		res = append(res, m)
	}
	return res
}

// Load validates raw and returns a document holding every declared field.
// Missing required fields are errors. Raw may be a map[string]any, a bson.M or
// a bson.D.
func (s *Schema) Load(raw any) (*Document, error) {
	return s.loadRaw(raw, false)
}

// LoadPartial is [Schema.Load] without the required check, for projected
// query results. Absent fields are reported by [domain.ErrNotLoaded] on
// access.
func (s *Schema) LoadPartial(raw any) (*Document, error) {
	return s.loadRaw(raw, true)
}

func (s *Schema) loadRaw(raw any, partial bool) (*Document, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, &domain.ErrValidation{Expected: "document " + s.name, Actual: typeName(raw), Reason: "invalid type"}
	}
	return s.load("", m, partial)
}

func (s *Schema) load(path string, m map[string]any, partial bool) (*Document, error) {
	s.seal()
	doc := &Document{schema: s, values: make(map[string]any, len(s.fields))}
	var errs []error
	for _, f := range s.fields {
		fieldPath := joinPath(path, f.Name())
		raw, ok := m[f.Name()]
		if !ok {
			raw, ok = f.Default()
		}
		if !ok {
			if !partial && f.Required() {
				errs = append(errs, &domain.ErrValidation{Path: fieldPath, Expected: f.Codec().Kind(), Reason: "field is required"})
			}
			continue
		}
		v, err := f.load(fieldPath, raw, partial)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		doc.values[f.Name()] = v
	}
	if s.strict {
		var unknown []string
		for k := range m {
			if _, ok := s.byName[k]; !ok {
				unknown = append(unknown, k)
			}
		}
		slices.Sort(unknown)
		for _, k := range unknown {
			errs = append(errs, &domain.ErrValidation{Path: joinPath(path, k), Reason: "unknown field"})
		}
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return doc, nil
}

// New builds a document from assignments. Defaults are applied and required
// fields are not checked; use [Document.Validate] before storing it.
func (s *Schema) New(assignments ...Assignment) (*Document, error) {
	raw := make(map[string]any, len(assignments))
	for _, a := range assignments {
		if s.byName[a.field.Name()] != a.field {
			return nil, &domain.ErrConfiguration{Schema: s.name, Reason: fmt.Sprintf("field %q does not belong to the schema", a.field.Name())}
		}
		if a.value == nil {
			raw[a.field.Name()] = nil
			continue
		}
		v, err := a.field.Codec().Dump(a.value, true)
		if err != nil {
			return nil, &domain.ErrValidation{Path: a.field.Name(), Expected: a.field.Codec().Kind(), Actual: typeName(a.value), Reason: err.Error()}
		}
		raw[a.field.Name()] = v
	}
	return s.load("", raw, true)
}

func (s *Schema) String() string { return s.name }

// Ref is a reference to a schema by name, resolved on first use. It allows
// fields to target schemas declared later, or the schema being declared.
type Ref string

func (r Ref) resolve() (*Schema, error) {
	return registry.lookup(string(r))
}

func (r Ref) targetName() string { return string(r) }

type schemaRegistry struct {
	mu     sync.RWMutex
	byName map[string][]*Schema
}

var registry = &schemaRegistry{byName: map[string][]*Schema{}}

func (r *schemaRegistry) add(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[s.name] = append(r.byName[s.name], s)
}

func (r *schemaRegistry) lookup(name string) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch found := r.byName[name]; len(found) {
	case 0:
		return nil, &domain.ErrConfiguration{Schema: name, Reason: "unresolved schema reference"}
	case 1:
		return found[0], nil
	default:
		return nil, &domain.ErrConfiguration{Schema: name, Reason: fmt.Sprintf("ambiguous schema reference (%d schemas)", len(found))}
	}
}

// Lookup returns the schema declared with the given name.
func Lookup(name string) (*Schema, error) {
	return registry.lookup(name)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// NewObjectID is a [DefaultFunc] producer for object ids.
func NewObjectID() bson.ObjectID { return bson.NewObjectID() }
