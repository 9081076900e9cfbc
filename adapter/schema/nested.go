package schema

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// EmbeddedField is a field holding a document of another schema. Its Sub
// method builds paths into the embedded document: Wallet.Sub(Balance) is
// "wallet.balance".
type EmbeddedField struct {
	*Field[*Document]
	target Target
}

// Target returns the schema of the embedded documents.
func (f *EmbeddedField) Target() (*Schema, error) {
	return f.target.resolve()
}

// Set assigns an embedded document. It panics when v belongs to another
// schema.
func (f *EmbeddedField) Set(doc *Document, v *Document) {
	if v == nil {
		if err := f.owned(doc); err != nil {
			panic(err)
		}
		doc.values[f.name] = nil
		return
	}
	s, err := f.target.resolve()
	if err != nil {
		panic(err)
	}
	if v.schema != s {
		panic(&domain.ErrConfiguration{Schema: s.name, Reason: fmt.Sprintf("cannot assign a %s document to %q", v.schema.name, f.name)})
	}
	f.Field.Set(doc, v)
}

// ListField is an array field. Get and Set convert between []T and the
// stored elements.
type ListField[T any] struct {
	*Field[[]any]
}

// Get returns the elements of the field in doc.
func (f *ListField[T]) Get(doc *Document) ([]T, error) {
	items, err := f.Field.Get(doc)
	if err != nil || items == nil {
		return nil, err
	}
	res := make([]T, len(items))
	for n, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, &domain.ErrConfiguration{Schema: doc.schema.name, Reason: fmt.Sprintf("element %d of %q is %T", n, f.name, item)}
		}
		res[n] = v
	}
	return res, nil
}

// Lookup returns the elements of the field in doc and whether it is set.
func (f *ListField[T]) Lookup(doc *Document) ([]T, bool) {
	v, err := f.Get(doc)
	return v, err == nil
}

// Set assigns the elements of the field in doc.
func (f *ListField[T]) Set(doc *Document, v []T) {
	f.Field.Set(doc, toAny(v))
}

// With returns an assignment of v, for [Schema.New].
func (f *ListField[T]) With(v []T) Assignment {
	return f.Field.With(toAny(v))
}

func toAny[T any](v []T) []any {
	if v == nil {
		return nil
	}
	res := make([]any, len(v))
	for n, item := range v {
		res[n] = item
	}
	return res
}
