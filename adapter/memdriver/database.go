// Package memdriver is an in-memory implementation of the driver boundary
// of [domain]. It understands the same query, update and projection
// documents as a MongoDB server, keeps unique, sparse, partial and TTL
// indexes, and runs transactions by snapshotting the whole database.
package memdriver

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/decoder"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/idgenerator"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/index"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/modifier"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/querier"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/storage"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"github.com/vinicius-lino-figueiredo/gedm/pkg/ctxsync"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Database implements [domain.Database].
type Database struct {
	name string

	// mu guards stores and every document they hold.
	mu     *ctxsync.RWMutex
	stores map[string]*store
	// txn is held by the session running a transaction.
	txn *ctxsync.Mutex

	handlesMu sync.Mutex
	handles   map[string]*Collection

	logger         *zap.Logger
	idGenerator    domain.IDGenerator
	timeGetter     domain.TimeGetter
	decoder        domain.Decoder
	comparer       domain.Comparer
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
	matcher        domain.Matcher
	modifier       domain.Modifier
	querier        domain.Querier
	storage        domain.Storage
}

// New returns an empty in-memory database.
func New(name string, opts ...Option) *Database {
	d := &Database{
		name:    name,
		mu:      ctxsync.NewRWMutex(),
		stores:  make(map[string]*store),
		txn:     ctxsync.NewMutex(),
		handles: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.idGenerator == nil {
		d.idGenerator = idgenerator.NewIDGenerator()
	}
	if d.timeGetter == nil {
		d.timeGetter = timegetter.NewTimeGetter()
	}
	if d.decoder == nil {
		d.decoder = decoder.NewDecoder()
	}
	if d.storage == nil {
		d.storage = storage.New()
	}
	if d.comparer == nil {
		d.comparer = comparer.NewComparer()
	}
	d.hasher = hasher.NewHasher()
	d.fieldNavigator = fieldnavigator.NewFieldNavigator()
	d.matcher = matcher.NewMatcher(
		matcher.WithComparer(d.comparer),
		matcher.WithFieldNavigator(d.fieldNavigator),
	)
	d.modifier = modifier.NewModifier(
		modifier.WithComparer(d.comparer),
		modifier.WithFieldNavigator(d.fieldNavigator),
		modifier.WithMatcher(d.matcher),
		modifier.WithTimeGetter(d.timeGetter),
	)
	d.querier = querier.NewQuerier(
		querier.WithComparer(d.comparer),
		querier.WithFieldNavigator(d.fieldNavigator),
		querier.WithMatcher(d.matcher),
	)
	return d
}

// Name implements [domain.Database].
func (d *Database) Name() string {
	return d.name
}

// Collection implements [domain.Database]. The collection is created by the
// first write.
func (d *Database) Collection(name string) domain.Collection {
	d.handlesMu.Lock()
	defer d.handlesMu.Unlock()
	c, ok := d.handles[name]
	if !ok {
		c = &Collection{db: d, name: name}
		d.handles[name] = c
	}
	return c
}

// CollectionNames returns the names of the existing collections, sorted.
func (d *Database) CollectionNames(ctx context.Context) ([]string, error) {
	if err := d.mu.RLockWithContext(ctx); err != nil {
		return nil, err
	}
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.stores)), nil
}

// StartSession implements [domain.Database].
func (d *Database) StartSession(ctx context.Context, opts domain.SessionOptions) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newSession(d, opts), nil
}

// store returns the data of the named collection. When create is set, a
// missing collection is created with its _id index.
func (d *Database) store(name string, create bool) (*store, error) {
	s, ok := d.stores[name]
	if ok || !create {
		return s, nil
	}
	idIndex, err := d.newIndex(domain.IndexModel{
		Keys:   bson.D{{Key: domain.IDKey, Value: int64(1)}},
		Name:   idIndexName,
		Unique: true,
	})
	if err != nil {
		return nil, err
	}
	s = &store{indexes: []domain.Index{idIndex}}
	d.stores[name] = s
	d.logger.Debug("collection created", zap.String("database", d.name), zap.String("collection", name))
	return s, nil
}

func (d *Database) newIndex(model domain.IndexModel) (domain.Index, error) {
	return index.NewIndex(model,
		index.WithComparer(d.comparer),
		index.WithHasher(d.hasher),
		index.WithFieldNavigator(d.fieldNavigator),
		index.WithMatcher(d.matcher),
	)
}

// snapshot deep copies every collection. The caller holds mu.
func (d *Database) snapshot() map[string]*store {
	res := make(map[string]*store, len(d.stores))
	for name, s := range d.stores {
		res[name] = &store{
			docs:    data.CloneAll(s.docs),
			indexes: s.indexes,
		}
	}
	return res
}

// restore replaces every collection by the snapshot, rebuilding the indexes.
// The caller holds mu.
func (d *Database) restore(snap map[string]*store) error {
	restored := make(map[string]*store, len(snap))
	for name, s := range snap {
		indexes := make([]domain.Index, len(s.indexes))
		for n, idx := range s.indexes {
			rebuilt, err := d.newIndex(idx.Model())
			if err != nil {
				return err
			}
			if err := rebuilt.Reset(s.docs...); err != nil {
				return err
			}
			indexes[n] = rebuilt
		}
		restored[name] = &store{docs: s.docs, indexes: indexes}
	}
	d.stores = restored
	return nil
}
