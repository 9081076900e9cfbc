package modifier

import "github.com/vinicius-lino-figueiredo/gedm/domain"

// WithComparer sets the comparer used by $min, $max, $addToSet and the _id
// check.
func WithComparer(c domain.Comparer) Option {
	return func(m *Modifier) {
		m.comp = c
	}
}

// WithFieldNavigator sets the navigator used to address updated fields.
func WithFieldNavigator(f domain.FieldNavigator) Option {
	return func(m *Modifier) {
		m.fieldNavigator = f
	}
}

// WithMatcher sets the matcher used by $pull.
func WithMatcher(mt domain.Matcher) Option {
	return func(m *Modifier) {
		m.matcher = mt
	}
}

// WithTimeGetter sets the clock used by $currentDate.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(m *Modifier) {
		m.timeGetter = t
	}
}

// Option configures a [Modifier].
type Option func(*Modifier)
