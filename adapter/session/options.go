package session

import (
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// WithCausalConsistency sets causal consistency on sessions started by
// [Start] and [UseTransaction].
func WithCausalConsistency(b bool) Option {
	return func(o *options) {
		o.session.CausalConsistency = b
	}
}

// WithMaxCommitTime limits how long a transaction commit may run.
func WithMaxCommitTime(d time.Duration) Option {
	return func(o *options) {
		o.transaction.MaxCommitTime = d
	}
}

// Option configures session and transaction scopes through the functional
// options pattern.
type Option func(*options)

type options struct {
	session     domain.SessionOptions
	transaction domain.TransactionOptions
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
