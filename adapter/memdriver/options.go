package memdriver

import (
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.uber.org/zap"
)

// WithLogger sets the logger used for transactions and index management.
func WithLogger(l *zap.Logger) Option {
	return func(d *Database) {
		d.logger = l
	}
}

// WithIDGenerator sets the generator of identities for documents inserted
// without one.
func WithIDGenerator(g domain.IDGenerator) Option {
	return func(d *Database) {
		d.idGenerator = g
	}
}

// WithTimeGetter sets the clock used by TTL indexes and $currentDate.
func WithTimeGetter(t domain.TimeGetter) Option {
	return func(d *Database) {
		d.timeGetter = t
	}
}

// WithDecoder sets the decoder used by cursors.
func WithDecoder(dec domain.Decoder) Option {
	return func(d *Database) {
		d.decoder = dec
	}
}

// WithComparer sets the comparer shared by queries, updates and indexes.
func WithComparer(c domain.Comparer) Option {
	return func(d *Database) {
		d.comparer = c
	}
}

// WithStorage sets the storage used by [Database.SaveFile] and
// [Database.LoadFile].
func WithStorage(s domain.Storage) Option {
	return func(d *Database) {
		d.storage = s
	}
}

// Option configures the in-memory database through the functional options
// pattern.
type Option func(*Database)
