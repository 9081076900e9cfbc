package mongodriver

import (
	"context"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection implements [domain.Collection].
type Collection struct {
	coll *mongo.Collection
}

// Name implements [domain.Collection].
func (c *Collection) Name() string {
	return c.coll.Name()
}

// InsertOne implements [domain.Collection].
func (c *Collection) InsertOne(ctx context.Context, doc any, opts domain.InsertOptions) (any, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, translateErr(err)
	}
	return res.InsertedID, nil
}

// InsertMany implements [domain.Collection]. On partial failure the ids of
// the documents written so far are returned with the error.
func (c *Collection) InsertMany(ctx context.Context, docs []any, opts domain.InsertOptions) ([]any, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(opts.Ordered))
	var ids []any
	if res != nil {
		ids = res.InsertedIDs
	}
	return ids, translateErr(err)
}

// Find implements [domain.Collection].
func (c *Collection) Find(ctx context.Context, filter any, opts domain.FindOptions) (domain.Cursor, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	cur, err := c.coll.Find(ctx, filterOrEmpty(filter), findOptions(opts))
	if err != nil {
		return nil, translateErr(err)
	}
	return cur, nil
}

// FindOneAndUpdate implements [domain.Collection].
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	return decodeSingle(c.coll.FindOneAndUpdate(ctx, filterOrEmpty(filter), update, findOneAndUpdateOptions(opts)))
}

// FindOneAndReplace implements [domain.Collection].
func (c *Collection) FindOneAndReplace(ctx context.Context, filter, replacement any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	return decodeSingle(c.coll.FindOneAndReplace(ctx, filterOrEmpty(filter), replacement, findOneAndReplaceOptions(opts)))
}

// FindOneAndDelete implements [domain.Collection].
func (c *Collection) FindOneAndDelete(ctx context.Context, filter any, opts domain.FindOneAndModifyOptions) (map[string]any, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	return decodeSingle(c.coll.FindOneAndDelete(ctx, filterOrEmpty(filter), findOneAndDeleteOptions(opts)))
}

// DeleteOne implements [domain.Collection].
func (c *Collection) DeleteOne(ctx context.Context, filter any, opts domain.DeleteOptions) (*domain.DeleteResult, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteOne(ctx, filterOrEmpty(filter))
	if err != nil {
		return nil, translateErr(err)
	}
	return &domain.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// DeleteMany implements [domain.Collection].
func (c *Collection) DeleteMany(ctx context.Context, filter any, opts domain.DeleteOptions) (*domain.DeleteResult, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.DeleteMany(ctx, filterOrEmpty(filter))
	if err != nil {
		return nil, translateErr(err)
	}
	return &domain.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// UpdateOne implements [domain.Collection].
func (c *Collection) UpdateOne(ctx context.Context, filter, update any, opts domain.UpdateOptions) (*domain.UpdateResult, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateOne(ctx, filterOrEmpty(filter), update, updateOneOptions(opts))
	if err != nil {
		return nil, translateErr(err)
	}
	return updateResult(res), nil
}

// UpdateMany implements [domain.Collection].
func (c *Collection) UpdateMany(ctx context.Context, filter, update any, opts domain.UpdateOptions) (*domain.UpdateResult, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	res, err := c.coll.UpdateMany(ctx, filterOrEmpty(filter), update, updateManyOptions(opts))
	if err != nil {
		return nil, translateErr(err)
	}
	return updateResult(res), nil
}

// CountDocuments implements [domain.Collection].
func (c *Collection) CountDocuments(ctx context.Context, filter any, opts domain.CountOptions) (int64, error) {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return 0, err
	}
	n, err := c.coll.CountDocuments(ctx, filterOrEmpty(filter), countOptions(opts))
	return n, translateErr(err)
}

// BulkWrite implements [domain.Collection]. An empty batch is a no-op.
func (c *Collection) BulkWrite(ctx context.Context, models []domain.WriteModel, opts domain.BulkWriteOptions) (*domain.BulkWriteResult, error) {
	if len(models) == 0 {
		return &domain.BulkWriteResult{UpsertedIDs: map[int64]any{}}, nil
	}
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	wms := make([]mongo.WriteModel, len(models))
	for i, m := range models {
		if wms[i], err = writeModel(m); err != nil {
			return nil, err
		}
	}
	res, err := c.coll.BulkWrite(ctx, wms, options.BulkWrite().SetOrdered(opts.Ordered))
	if res == nil {
		return nil, translateErr(err)
	}
	out := &domain.BulkWriteResult{
		InsertedCount: res.InsertedCount,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		DeletedCount:  res.DeletedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedIDs:   res.UpsertedIDs,
	}
	if out.UpsertedIDs == nil {
		out.UpsertedIDs = map[int64]any{}
	}
	return out, translateErr(err)
}

// CreateIndexes implements [domain.Collection].
func (c *Collection) CreateIndexes(ctx context.Context, indexes []domain.IndexModel, opts domain.IndexOptions) ([]string, error) {
	if len(indexes) == 0 {
		return nil, nil
	}
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return nil, err
	}
	models := make([]mongo.IndexModel, len(indexes))
	for i, m := range indexes {
		models[i] = indexModel(m)
	}
	names, err := c.coll.Indexes().CreateMany(ctx, models)
	return names, translateErr(err)
}

// Drop implements [domain.Collection].
func (c *Collection) Drop(ctx context.Context, opts domain.DropOptions) error {
	ctx, err := withSession(ctx, opts.Session)
	if err != nil {
		return err
	}
	return translateErr(c.coll.Drop(ctx))
}

// Unwrap returns the driver collection.
func (c *Collection) Unwrap() *mongo.Collection {
	return c.coll
}

func filterOrEmpty(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func updateResult(res *mongo.UpdateResult) *domain.UpdateResult {
	return &domain.UpdateResult{
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}
}

func decodeSingle(res *mongo.SingleResult) (map[string]any, error) {
	var raw bson.M
	if err := res.Decode(&raw); err != nil {
		return nil, translateErr(err)
	}
	return data.Document(raw)
}
