// Package binder binds schemas to the collections of a database and keeps
// the process-wide registry read by document managers.
package binder

import (
	"context"
	"fmt"
	"sync"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Binding is a schema bound to a collection.
type Binding struct {
	Schema     *schema.Schema
	Database   domain.Database
	Collection domain.Collection
}

// Registry maps schemas to their collections. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	bindings    map[*schema.Schema]Binding
	owners      map[string]*schema.Schema
	logger      *zap.Logger
	concurrency int
}

// Default is the process-wide registry used by [InitialCollections] and by
// managers created without an explicit registry.
var Default = New()

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		bindings: map[*schema.Schema]Binding{},
		owners:   map[string]*schema.Schema{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InitialCollections binds schemas using the default registry.
func InitialCollections(ctx context.Context, db domain.Database, schemas ...*schema.Schema) error {
	return Default.InitialCollections(ctx, db, schemas...)
}

// Logger returns the registry logger.
func (r *Registry) Logger() *zap.Logger { return r.logger }

func ownerKey(db domain.Database, collection string) string {
	return db.Name() + "." + collection
}

// InitialCollections binds every schema to its collection in db and creates
// the declared indexes. Running it again for the same schemas is a no-op
// apart from asking the driver to ensure the indexes again. Embedded schemas
// and two schemas sharing a collection are configuration errors.
func (r *Registry) InitialCollections(ctx context.Context, db domain.Database, schemas ...*schema.Schema) error {
	pending, err := r.check(db, schemas)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for _, s := range pending {
		g.Go(func() error {
			return r.bind(gctx, db, s)
		})
	}
	return g.Wait()
}

// check validates schemas against each other and the current bindings,
// dropping repeated schemas.
func (r *Registry) check(db domain.Database, schemas []*schema.Schema) ([]*schema.Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := map[string]*schema.Schema{}
	var res []*schema.Schema
	for _, s := range schemas {
		if s == nil {
			return nil, &domain.ErrConfiguration{Reason: "nil schema"}
		}
		if s.IsEmbedded() {
			return nil, &domain.ErrConfiguration{Schema: s.Name(), Reason: "embedded schemas have no collection"}
		}
		key := ownerKey(db, s.CollectionName())
		if other, ok := seen[key]; ok {
			if other != s {
				return nil, conflict(s, other, key)
			}
			continue
		}
		if other, ok := r.owners[key]; ok && other != s {
			return nil, conflict(s, other, key)
		}
		seen[key] = s
		res = append(res, s)
	}
	return res, nil
}

func conflict(s, other *schema.Schema, key string) error {
	return &domain.ErrConfiguration{
		Schema: s.Name(),
		Reason: fmt.Sprintf("collection %q is already bound to %q", key, other.Name()),
	}
}

func (r *Registry) bind(ctx context.Context, db domain.Database, s *schema.Schema) error {
	coll := db.Collection(s.CollectionName())
	key := ownerKey(db, s.CollectionName())
	log := r.logger.With(zap.String("schema", s.Name()), zap.String("collection", key))

	claimed, err := r.claim(s, key)
	if err != nil {
		return err
	}

	if models := s.IndexModels(); len(models) > 0 {
		names, err := coll.CreateIndexes(ctx, models, domain.IndexOptions{})
		if err != nil {
			log.Error("creating indexes", zap.Error(err))
			if claimed {
				r.release(s, key)
			}
			return err
		}
		log.Debug("indexes ensured", zap.Strings("indexes", names))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.bindings[s]; ok && old.Database != db {
		delete(r.owners, ownerKey(old.Database, s.CollectionName()))
		log.Info("schema rebound", zap.String("previous", old.Database.Name()))
	}
	r.owners[key] = s
	r.bindings[s] = Binding{Schema: s, Database: db, Collection: coll}
	log.Info("schema bound")
	return nil
}

// claim reserves key for s before any index is created on the collection. It
// reports whether the key was free.
func (r *Registry) claim(s *schema.Schema, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	other, ok := r.owners[key]
	if ok && other != s {
		return false, conflict(s, other, key)
	}
	r.owners[key] = s
	return !ok, nil
}

func (r *Registry) release(s *schema.Schema, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[key] == s {
		delete(r.owners, key)
	}
}

// Lookup returns the binding of s. It returns [domain.ErrNotInitialized] for
// schemas that were never bound and a [*domain.ErrConfiguration] for embedded
// schemas.
func (r *Registry) Lookup(s *schema.Schema) (Binding, error) {
	if s.IsEmbedded() {
		return Binding{}, &domain.ErrConfiguration{Schema: s.Name(), Reason: "embedded schemas have no manager"}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[s]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %s", domain.ErrNotInitialized, s.Name())
	}
	return b, nil
}

// Bound returns whether s is bound.
func (r *Registry) Bound(s *schema.Schema) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[s]
	return ok
}
