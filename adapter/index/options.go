package index

import "github.com/vinicius-lino-figueiredo/gedm/domain"

// WithComparer sets the [domain.Comparer] used to order keys.
func WithComparer(c domain.Comparer) Option {
	return func(i *Index) {
		i.comparer = c
	}
}

// WithHasher sets the [domain.Hasher] used to reduce document ids.
func WithHasher(h domain.Hasher) Option {
	return func(i *Index) {
		i.hasher = h
	}
}

// WithFieldNavigator sets the [domain.FieldNavigator] used to read keys.
func WithFieldNavigator(fn domain.FieldNavigator) Option {
	return func(i *Index) {
		i.fieldNavigator = fn
	}
}

// WithMatcher sets the [domain.Matcher] used to evaluate partial filters.
func WithMatcher(m domain.Matcher) Option {
	return func(i *Index) {
		i.matcher = m
	}
}

// Option configures index behavior through the functional options pattern.
type Option func(*Index)
