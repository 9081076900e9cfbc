package bulk

// WithUpsert makes update and replace operations insert a document when none
// matches.
func WithUpsert(upsert bool) Option {
	return func(o *options) {
		o.upsert = upsert
	}
}

// WithArrayFilters sets the filters selecting array elements for filtered
// positional updates.
func WithArrayFilters(filters ...any) Option {
	return func(o *options) {
		o.arrayFilters = append(o.arrayFilters, filters...)
	}
}

// Option configures update and replace operations through the functional
// options pattern.
type Option func(*options)

type options struct {
	upsert       bool
	arrayFilters []any
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
