package schema

import (
	"fmt"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// Document is a set of loaded field values bound to a schema. Values are read
// and written through the field handles of the schema.
type Document struct {
	schema *Schema
	values map[string]any
}

// Schema returns the schema the document was loaded with.
func (d *Document) Schema() *Schema { return d.schema }

// ID returns the identity value, if set.
func (d *Document) ID() (any, bool) {
	v, ok := d.values[domain.IDKey]
	return v, ok && v != nil
}

// SetID loads raw through the identity field and stores it, as done after an
// insert returns the generated id.
func (d *Document) SetID(raw any) error {
	f := d.schema.ID()
	if f == nil {
		return &domain.ErrConfiguration{Schema: d.schema.name, Reason: "embedded documents have no identity"}
	}
	v, err := f.load(domain.IDKey, raw, false)
	if err != nil {
		return err
	}
	d.values[domain.IDKey] = v
	return nil
}

// Has reports whether f is loaded in the document.
func (d *Document) Has(f Descriptor) bool {
	_, ok := d.values[f.Name()]
	return ok && d.schema.byName[f.Name()] == f.base()
}

// Dump returns a JSON-safe representation of the document: object ids as
// hex strings, datetimes as RFC 3339 strings and decimals as strings. Fields
// that are not loaded are omitted.
func (d *Document) Dump() (map[string]any, error) {
	return d.dump(false)
}

// Native returns the document with driver values, ready to be stored.
func (d *Document) Native() (map[string]any, error) {
	return d.dump(true)
}

func (d *Document) dump(native bool) (map[string]any, error) {
	res := make(map[string]any, len(d.values))
	for _, f := range d.schema.fields {
		v, ok := d.values[f.Name()]
		if !ok {
			continue
		}
		if v == nil {
			res[f.Name()] = nil
			continue
		}
		raw, err := f.Codec().Dump(v, native)
		if err != nil {
			return nil, fmt.Errorf("dumping %q: %w", f.Name(), err)
		}
		res[f.Name()] = raw
	}
	return res, nil
}

// Validate checks the document as a full load would, reporting missing
// required fields.
func (d *Document) Validate() error {
	m, err := d.Native()
	if err != nil {
		return err
	}
	_, err = d.schema.load("", m, false)
	return err
}

// Equal reports whether both documents belong to the same schema and hold the
// same values.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.schema != other.schema {
		return false
	}
	a, err := d.Native()
	if err != nil {
		return false
	}
	b, err := other.Native()
	if err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Decode copies the document into target, a pointer to a struct whose fields
// are matched by their bson tags.
func (d *Document) Decode(target any) error {
	m, err := d.Native()
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "bson",
		Result:  target,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}
