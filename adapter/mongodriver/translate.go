package mongodriver

import (
	"fmt"
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func findOptions(o domain.FindOptions) *options.FindOptionsBuilder {
	b := options.Find()
	if len(o.Projection) > 0 {
		b.SetProjection(o.Projection)
	}
	if len(o.Sort) > 0 {
		b.SetSort(o.Sort)
	}
	if o.Skip > 0 {
		b.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		b.SetLimit(o.Limit)
	}
	return b
}

func returnDocument(after bool) options.ReturnDocument {
	if after {
		return options.After
	}
	return options.Before
}

func findOneAndUpdateOptions(o domain.FindOneAndModifyOptions) *options.FindOneAndUpdateOptionsBuilder {
	b := options.FindOneAndUpdate().
		SetUpsert(o.Upsert).
		SetReturnDocument(returnDocument(o.ReturnAfter))
	if len(o.Projection) > 0 {
		b.SetProjection(o.Projection)
	}
	if len(o.Sort) > 0 {
		b.SetSort(o.Sort)
	}
	if len(o.ArrayFilters) > 0 {
		b.SetArrayFilters(o.ArrayFilters)
	}
	return b
}

func findOneAndReplaceOptions(o domain.FindOneAndModifyOptions) *options.FindOneAndReplaceOptionsBuilder {
	b := options.FindOneAndReplace().
		SetUpsert(o.Upsert).
		SetReturnDocument(returnDocument(o.ReturnAfter))
	if len(o.Projection) > 0 {
		b.SetProjection(o.Projection)
	}
	if len(o.Sort) > 0 {
		b.SetSort(o.Sort)
	}
	return b
}

func findOneAndDeleteOptions(o domain.FindOneAndModifyOptions) *options.FindOneAndDeleteOptionsBuilder {
	b := options.FindOneAndDelete()
	if len(o.Projection) > 0 {
		b.SetProjection(o.Projection)
	}
	if len(o.Sort) > 0 {
		b.SetSort(o.Sort)
	}
	return b
}

func updateOneOptions(o domain.UpdateOptions) *options.UpdateOneOptionsBuilder {
	b := options.UpdateOne().SetUpsert(o.Upsert)
	if len(o.ArrayFilters) > 0 {
		b.SetArrayFilters(o.ArrayFilters)
	}
	return b
}

func updateManyOptions(o domain.UpdateOptions) *options.UpdateManyOptionsBuilder {
	b := options.UpdateMany().SetUpsert(o.Upsert)
	if len(o.ArrayFilters) > 0 {
		b.SetArrayFilters(o.ArrayFilters)
	}
	return b
}

func countOptions(o domain.CountOptions) *options.CountOptionsBuilder {
	b := options.Count()
	if o.Skip > 0 {
		b.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		b.SetLimit(o.Limit)
	}
	return b
}

// writeModel translates a compiled bulk operation into its driver model.
func writeModel(m domain.WriteModel) (mongo.WriteModel, error) {
	switch m.Kind {
	case domain.WriteInsertOne:
		return mongo.NewInsertOneModel().SetDocument(m.Document), nil
	case domain.WriteUpdateOne:
		b := mongo.NewUpdateOneModel().SetFilter(m.Filter).SetUpdate(m.Update).SetUpsert(m.Upsert)
		if len(m.ArrayFilters) > 0 {
			b.SetArrayFilters(m.ArrayFilters)
		}
		return b, nil
	case domain.WriteUpdateMany:
		b := mongo.NewUpdateManyModel().SetFilter(m.Filter).SetUpdate(m.Update).SetUpsert(m.Upsert)
		if len(m.ArrayFilters) > 0 {
			b.SetArrayFilters(m.ArrayFilters)
		}
		return b, nil
	case domain.WriteReplaceOne:
		return mongo.NewReplaceOneModel().SetFilter(m.Filter).SetReplacement(m.Document).SetUpsert(m.Upsert), nil
	case domain.WriteDeleteOne:
		return mongo.NewDeleteOneModel().SetFilter(m.Filter), nil
	case domain.WriteDeleteMany:
		return mongo.NewDeleteManyModel().SetFilter(m.Filter), nil
	}
	return nil, fmt.Errorf("mongodriver: unknown write model %s", m.Kind)
}

// indexModel translates an index definition. TTL durations are rounded up to
// whole seconds.
func indexModel(m domain.IndexModel) mongo.IndexModel {
	b := options.Index().SetName(m.GeneratedName())
	if m.Unique {
		b.SetUnique(true)
	}
	if m.Sparse {
		b.SetSparse(true)
	}
	if m.ExpireAfter > 0 {
		secs := (m.ExpireAfter + time.Second - 1) / time.Second
		b.SetExpireAfterSeconds(int32(secs))
	}
	if len(m.PartialFilter) > 0 {
		b.SetPartialFilterExpression(m.PartialFilter)
	}
	return mongo.IndexModel{Keys: m.Keys, Options: b}
}
