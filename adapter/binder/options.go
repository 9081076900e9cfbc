package binder

import "go.uber.org/zap"

// WithLogger sets the logger used for bindings and index creation. It is also
// handed to managers of bound schemas.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithConcurrency limits how many schemas are initialized at once. Zero or a
// negative value means no limit.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		r.concurrency = n
	}
}

// Option configures a [Registry] through the functional options pattern.
type Option func(*Registry)
