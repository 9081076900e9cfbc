// Package bulk describes write operations batched by a single bulk write.
// Descriptors keep their arguments and are only compiled when the batch is
// assembled.
package bulk

import (
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

var (
	errNilDocument = errors.New("nil document")
	errNilUpdate   = errors.New("nil update")
)

// Operation is a bulk write descriptor.
type Operation interface {
	// Models compiles the operation into driver write models.
	Models() ([]domain.WriteModel, error)
	// Documents returns the documents written by the operation.
	Documents() []*schema.Document
}

// Compile compiles ops in order. InsertMany operations expand into one model
// per document.
func Compile(ops ...Operation) ([]domain.WriteModel, error) {
	var res []domain.WriteModel
	for n, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("operation %d: nil operation", n)
		}
		models, err := op.Models()
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", n, err)
		}
		res = append(res, models...)
	}
	return res, nil
}

type insertOne struct {
	doc *schema.Document
}

// InsertOne inserts doc.
func InsertOne(doc *schema.Document) Operation {
	return insertOne{doc: doc}
}

func (o insertOne) Models() ([]domain.WriteModel, error) {
	if o.doc == nil {
		return nil, errNilDocument
	}
	native, err := o.doc.Native()
	if err != nil {
		return nil, err
	}
	return []domain.WriteModel{{Kind: domain.WriteInsertOne, Document: native}}, nil
}

func (o insertOne) Documents() []*schema.Document { return []*schema.Document{o.doc} }

type insertMany struct {
	docs []*schema.Document
}

// InsertMany inserts every document of docs, in order.
func InsertMany(docs ...*schema.Document) Operation {
	return insertMany{docs: docs}
}

func (o insertMany) Models() ([]domain.WriteModel, error) {
	res := make([]domain.WriteModel, 0, len(o.docs))
	for _, doc := range o.docs {
		m, err := insertOne{doc: doc}.Models()
		if err != nil {
			return nil, err
		}
		res = append(res, m...)
	}
	return res, nil
}

func (o insertMany) Documents() []*schema.Document { return o.docs }

type update struct {
	kind   domain.WriteKind
	filter any
	update any
	opts   options
}

// UpdateOne applies update to the first document matching filter. The update
// document is passed to the driver unmodified.
func UpdateOne(filter, upd any, opts ...Option) Operation {
	return update{kind: domain.WriteUpdateOne, filter: filter, update: upd, opts: newOptions(opts)}
}

// UpdateMany applies update to every document matching filter.
func UpdateMany(filter, upd any, opts ...Option) Operation {
	return update{kind: domain.WriteUpdateMany, filter: filter, update: upd, opts: newOptions(opts)}
}

func (o update) Models() ([]domain.WriteModel, error) {
	filter, err := expression.CompileFilter(o.filter)
	if err != nil {
		return nil, err
	}
	if o.update == nil {
		return nil, errNilUpdate
	}
	arrayFilters, err := expression.CompileFilters(o.opts.arrayFilters)
	if err != nil {
		return nil, err
	}
	return []domain.WriteModel{{
		Kind:         o.kind,
		Filter:       filter,
		Update:       o.update,
		Upsert:       o.opts.upsert,
		ArrayFilters: arrayFilters,
	}}, nil
}

func (o update) Documents() []*schema.Document { return nil }

type replaceOne struct {
	filter any
	doc    *schema.Document
	opts   options
}

// ReplaceOne replaces the first document matching filter with doc.
func ReplaceOne(filter any, doc *schema.Document, opts ...Option) Operation {
	return replaceOne{filter: filter, doc: doc, opts: newOptions(opts)}
}

func (o replaceOne) Models() ([]domain.WriteModel, error) {
	filter, err := expression.CompileFilter(o.filter)
	if err != nil {
		return nil, err
	}
	if o.doc == nil {
		return nil, errNilDocument
	}
	native, err := o.doc.Native()
	if err != nil {
		return nil, err
	}
	return []domain.WriteModel{{
		Kind:     domain.WriteReplaceOne,
		Filter:   filter,
		Document: native,
		Upsert:   o.opts.upsert,
	}}, nil
}

func (o replaceOne) Documents() []*schema.Document { return []*schema.Document{o.doc} }

type deleteOp struct {
	kind   domain.WriteKind
	filter any
}

// DeleteOne deletes the first document matching filter.
func DeleteOne(filter any) Operation {
	return deleteOp{kind: domain.WriteDeleteOne, filter: filter}
}

// DeleteMany deletes every document matching filter.
func DeleteMany(filter any) Operation {
	return deleteOp{kind: domain.WriteDeleteMany, filter: filter}
}

func (o deleteOp) Models() ([]domain.WriteModel, error) {
	filter, err := expression.CompileFilter(o.filter)
	if err != nil {
		return nil, err
	}
	return []domain.WriteModel{{Kind: o.kind, Filter: filter}}, nil
}

func (o deleteOp) Documents() []*schema.Document { return nil }
