package manager

import (
	"github.com/vinicius-lino-figueiredo/gedm/adapter/binder"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/expression"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// WithRegistry sets the registry the manager reads its binding from. The
// default is [binder.Default].
func WithRegistry(r *binder.Registry) ManagerOption {
	return func(o *Objects) {
		o.registry = r
	}
}

// ManagerOption configures [New] through the functional options pattern.
type ManagerOption func(*Objects)

// WithSort sorts results by orders, in the given order.
func WithSort(orders ...expression.Order) Option {
	return func(o *options) {
		o.sort = append(o.sort, orders...)
	}
}

// WithRawSort sorts results with a native sort document. It replaces orders
// given with [WithSort].
func WithRawSort(sort bson.D) Option {
	return func(o *options) {
		o.rawSort = sort
	}
}

// WithProjection only returns the given fields. Documents are loaded
// partially, so other fields report domain.ErrNotLoaded.
func WithProjection(fields ...expression.Ref) Option {
	return func(o *options) {
		if o.projection == nil {
			o.projection = bson.M{}
		}
		for _, f := range fields {
			o.projection[f.FieldPath().String()] = 1
		}
	}
}

// WithExclusion returns every field except the given ones.
func WithExclusion(fields ...expression.Ref) Option {
	return func(o *options) {
		if o.projection == nil {
			o.projection = bson.M{}
		}
		for _, f := range fields {
			o.projection[f.FieldPath().String()] = 0
		}
	}
}

// WithSkip skips the first n results.
func WithSkip(n int64) Option {
	return func(o *options) {
		o.skip = n
	}
}

// WithLimit returns at most n results.
func WithLimit(n int64) Option {
	return func(o *options) {
		o.limit = n
	}
}

// WithAfterDocument makes the FindOneAnd* methods return the document as it
// is after the operation instead of before it.
func WithAfterDocument(after bool) Option {
	return func(o *options) {
		o.after = after
	}
}

// WithUpsert makes updates and replacements insert a document when none
// matches.
func WithUpsert(upsert bool) Option {
	return func(o *options) {
		o.upsert = upsert
	}
}

// WithArrayFilters sets the filters of filtered positional updates. Filters
// may be expressions or native documents.
func WithArrayFilters(filters ...any) Option {
	return func(o *options) {
		o.arrayFilters = append(o.arrayFilters, filters...)
	}
}

// WithOrdered sets whether InsertMany and BulkWrite stop on the first failure.
// They are ordered by default.
func WithOrdered(ordered bool) Option {
	return func(o *options) {
		o.ordered = ordered
	}
}

// Option configures a single manager call through the functional options
// pattern. Options that do not apply to a call are ignored.
type Option func(*options)

type options struct {
	sort         []expression.Order
	rawSort      bson.D
	projection   bson.M
	skip         int64
	limit        int64
	after        bool
	upsert       bool
	arrayFilters []any
	ordered      bool
}

func newOptions(opts []Option) options {
	o := options{ordered: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) compileSort() bson.D {
	if o.rawSort != nil {
		return o.rawSort
	}
	if len(o.sort) == 0 {
		return nil
	}
	return expression.CompileSort(o.sort...)
}
