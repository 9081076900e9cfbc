package memdriver

import (
	"context"
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Collection implements [domain.Collection].
type Collection struct {
	db   *Database
	name string
}

// Name implements [domain.Collection].
func (c *Collection) Name() string {
	return c.name
}

// write runs fn holding the database write lock, after creating the
// collection and purging expired documents.
func (c *Collection) write(ctx context.Context, sess domain.Session, fn func(s *store) error) error {
	if err := c.db.checkSession(sess); err != nil {
		return err
	}
	if err := c.db.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.db.mu.Unlock()
	s, err := c.db.store(c.name, true)
	if err != nil {
		return err
	}
	if err := c.purge(s); err != nil {
		return err
	}
	return fn(s)
}

// read runs fn on the visible documents holding the database read lock.
func (c *Collection) read(ctx context.Context, sess domain.Session, fn func(docs []data.M) error) error {
	if err := c.db.checkSession(sess); err != nil {
		return err
	}
	if err := c.db.mu.RLockWithContext(ctx); err != nil {
		return err
	}
	defer c.db.mu.RUnlock()
	s, _ := c.db.store(c.name, false)
	if s == nil {
		return fn(nil)
	}
	return fn(c.visible(s))
}

// InsertOne implements [domain.Collection].
func (c *Collection) InsertOne(ctx context.Context, doc any, opts domain.InsertOptions) (any, error) {
	var id any
	err := c.write(ctx, opts.Session, func(s *store) error {
		inserted, err := c.insertDoc(s, doc)
		if err != nil {
			return err
		}
		id = inserted[domain.IDKey]
		return nil
	})
	return id, err
}

// InsertMany implements [domain.Collection]. Failed inserts are reported
// through [domain.ErrBulkWrite] and have no identity in the result.
func (c *Collection) InsertMany(ctx context.Context, docs []any, opts domain.InsertOptions) ([]any, error) {
	var ids []any
	err := c.write(ctx, opts.Session, func(s *store) error {
		ids = make([]any, 0, len(docs))
		errs := make(map[int]error)
		for n, doc := range docs {
			inserted, err := c.insertDoc(s, doc)
			if err != nil {
				errs[n] = err
				if opts.Ordered {
					break
				}
				continue
			}
			ids = append(ids, inserted[domain.IDKey])
		}
		if len(errs) > 0 {
			return &domain.ErrBulkWrite{Errors: errs}
		}
		return nil
	})
	return ids, err
}

// Find implements [domain.Collection].
func (c *Collection) Find(ctx context.Context, filter any, opts domain.FindOptions) (domain.Cursor, error) {
	f, err := data.Document(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	proj, err := data.Document(opts.Projection)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	var found []data.M
	err = c.read(ctx, opts.Session, func(docs []data.M) error {
		found, err = c.db.querier.Query(docs, domain.Query{
			Filter:     f,
			Sort:       opts.Sort,
			Skip:       opts.Skip,
			Limit:      opts.Limit,
			Projection: proj,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return newCursor(found, c.db.decoder), nil
}

// CountDocuments implements [domain.Collection].
func (c *Collection) CountDocuments(ctx context.Context, filter any, opts domain.CountOptions) (int64, error) {
	f, err := data.Document(filter)
	if err != nil {
		return 0, fmt.Errorf("filter: %w", err)
	}
	var count int64
	err = c.read(ctx, opts.Session, func(docs []data.M) error {
		positions, err := c.match(docs, f, nil, 0)
		if err != nil {
			return err
		}
		count = int64(len(positions))
		return nil
	})
	if err != nil {
		return 0, err
	}
	count = max(count-max(opts.Skip, 0), 0)
	if opts.Limit > 0 {
		count = min(count, opts.Limit)
	}
	return count, nil
}

// FindOneAndUpdate implements [domain.Collection].
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter any, update any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	return c.findOneAndModify(ctx, filter, update, false, opts)
}

// FindOneAndReplace implements [domain.Collection].
func (c *Collection) FindOneAndReplace(ctx context.Context, filter any, replacement any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	return c.findOneAndModify(ctx, filter, replacement, true, opts)
}

func (c *Collection) findOneAndModify(ctx context.Context, filter, update any, replace bool, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	f, u, err := c.prepareUpdate(filter, update, replace, opts.ArrayFilters)
	if err != nil {
		return nil, err
	}

	var result data.M
	err = c.write(ctx, opts.Session, func(s *store) error {
		positions, err := c.match(s.docs, f, opts.Sort, 1)
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			if !opts.Upsert {
				return domain.ErrNoDocuments
			}
			doc, err := c.upsert(s, f, u)
			if err != nil {
				return err
			}
			if !opts.ReturnAfter {
				return domain.ErrNoDocuments
			}
			result = doc
			return nil
		}

		old := s.docs[positions[0]]
		newDocs, _, err := c.modify(s, positions, u)
		if err != nil {
			return err
		}
		result = old
		if opts.ReturnAfter {
			result = newDocs[0]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.project(result, opts.Projection)
}

// FindOneAndDelete implements [domain.Collection].
func (c *Collection) FindOneAndDelete(ctx context.Context, filter any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	f, err := data.Document(filter)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}

	var result data.M
	err = c.write(ctx, opts.Session, func(s *store) error {
		positions, err := c.match(s.docs, f, opts.Sort, 1)
		if err != nil {
			return err
		}
		if len(positions) == 0 {
			return domain.ErrNoDocuments
		}
		result = s.docs[positions[0]]
		return c.removeDocs(s, positions)
	})
	if err != nil {
		return nil, err
	}
	return c.project(result, opts.Projection)
}

// project returns a projected copy of doc.
func (c *Collection) project(doc data.M, projection bson.M) (map[string]any, error) {
	proj, err := data.Document(projection)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	res, err := c.db.querier.Query([]data.M{doc}, domain.Query{Projection: proj})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// DeleteOne implements [domain.Collection].
func (c *Collection) DeleteOne(ctx context.Context, filter any, opts domain.DeleteOptions) (*domain.DeleteResult, error) {
	return c.deleteWith(ctx, filter, false, opts)
}

// DeleteMany implements [domain.Collection].
func (c *Collection) DeleteMany(ctx context.Context, filter any, opts domain.DeleteOptions) (*domain.DeleteResult, error) {
	return c.deleteWith(ctx, filter, true, opts)
}

func (c *Collection) deleteWith(ctx context.Context, filter any, many bool, opts domain.DeleteOptions) (*domain.DeleteResult, error) {
	res := &domain.DeleteResult{}
	err := c.write(ctx, opts.Session, func(s *store) error {
		var err error
		res.DeletedCount, err = c.delete(s, filter, many)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateOne implements [domain.Collection].
func (c *Collection) UpdateOne(ctx context.Context, filter any, update any, opts domain.UpdateOptions) (*domain.UpdateResult, error) {
	return c.updateWith(ctx, filter, update, false, opts)
}

// UpdateMany implements [domain.Collection].
func (c *Collection) UpdateMany(ctx context.Context, filter any, update any, opts domain.UpdateOptions) (*domain.UpdateResult, error) {
	return c.updateWith(ctx, filter, update, true, opts)
}

func (c *Collection) updateWith(ctx context.Context, filter, update any, many bool, opts domain.UpdateOptions) (*domain.UpdateResult, error) {
	f, u, err := c.prepareUpdate(filter, update, false, opts.ArrayFilters)
	if err != nil {
		return nil, err
	}
	var res *domain.UpdateResult
	err = c.write(ctx, opts.Session, func(s *store) error {
		res, err = c.update(s, f, u, many, opts.Upsert)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// BulkWrite implements [domain.Collection]. Every model runs under the same
// lock. Failed models are reported through [domain.ErrBulkWrite].
func (c *Collection) BulkWrite(ctx context.Context, models []domain.WriteModel, opts domain.BulkWriteOptions) (*domain.BulkWriteResult, error) {
	res := &domain.BulkWriteResult{}
	err := c.write(ctx, opts.Session, func(s *store) error {
		errs := make(map[int]error)
		for n, m := range models {
			if err := c.apply(s, n, m, res); err != nil {
				errs[n] = err
				if opts.Ordered {
					break
				}
			}
		}
		if len(errs) > 0 {
			return &domain.ErrBulkWrite{Errors: errs}
		}
		return nil
	})
	return res, err
}

// CreateIndexes implements [domain.Collection]. Indexes are built over the
// existing documents, so creating a unique index over duplicated values
// fails.
func (c *Collection) CreateIndexes(ctx context.Context, models []domain.IndexModel, opts domain.IndexOptions) ([]string, error) {
	names := make([]string, 0, len(models))
	err := c.write(ctx, opts.Session, func(s *store) error {
		for _, raw := range models {
			model, err := normalizeModel(raw)
			if err != nil {
				return err
			}
			name := model.GeneratedName()
			if existing := c.findIndex(s, name); existing != nil {
				if !c.sameModel(existing.Model(), model) {
					return fmt.Errorf("%w: %q", ErrIndexConflict, name)
				}
				names = append(names, name)
				continue
			}
			idx, err := c.db.newIndex(model)
			if err != nil {
				return err
			}
			if err := idx.Reset(s.docs...); err != nil {
				return fmt.Errorf("building index %q: %w", name, err)
			}
			s.indexes = append(s.indexes, idx)
			names = append(names, name)
			c.db.logger.Info("index created",
				zap.String("collection", c.name),
				zap.String("index", name),
				zap.Bool("unique", model.Unique),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Collection) findIndex(s *store, name string) domain.Index {
	for _, idx := range s.indexes {
		if idx.Model().GeneratedName() == name {
			return idx
		}
	}
	return nil
}

func (c *Collection) sameModel(a, b domain.IndexModel) bool {
	if len(a.Keys) != len(b.Keys) || a.Unique != b.Unique || a.Sparse != b.Sparse || a.ExpireAfter != b.ExpireAfter {
		return false
	}
	for n := range a.Keys {
		if a.Keys[n].Key != b.Keys[n].Key {
			return false
		}
		if comp, err := c.db.comparer.Compare(a.Keys[n].Value, b.Keys[n].Value); err != nil || comp != 0 {
			return false
		}
	}
	comp, err := c.db.comparer.Compare(map[string]any(a.PartialFilter), map[string]any(b.PartialFilter))
	return err == nil && comp == 0
}

// normalizeModel normalizes the key directions and the partial filter of
// model.
func normalizeModel(model domain.IndexModel) (domain.IndexModel, error) {
	if model.ExpireAfter > 0 && len(model.Keys) != 1 {
		return model, ErrTTLCompound
	}
	keys := make(bson.D, len(model.Keys))
	for n, k := range model.Keys {
		v, err := data.Normalize(k.Value)
		if err != nil {
			return model, err
		}
		keys[n] = bson.E{Key: k.Key, Value: v}
	}
	model.Keys = keys
	if model.PartialFilter != nil {
		filter, err := data.Document(model.PartialFilter)
		if err != nil {
			return model, fmt.Errorf("partial filter: %w", err)
		}
		model.PartialFilter = bson.M(filter)
	}
	return model, nil
}

// Drop implements [domain.Collection].
func (c *Collection) Drop(ctx context.Context, opts domain.DropOptions) error {
	if err := c.db.checkSession(opts.Session); err != nil {
		return err
	}
	if err := c.db.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer c.db.mu.Unlock()
	delete(c.db.stores, c.name)
	c.db.logger.Debug("collection dropped", zap.String("database", c.db.name), zap.String("collection", c.name))
	return nil
}
