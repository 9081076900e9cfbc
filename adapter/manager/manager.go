// Package manager runs typed CRUD operations for the documents of a bound
// schema. Filters and sorts are compiled on every call and the ambient
// session of the context is forwarded to every driver call.
package manager

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/binder"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/bulk"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/expression"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/schema"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/session"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Objects is the document manager of a schema.
type Objects struct {
	schema   *schema.Schema
	registry *binder.Registry
}

// New returns the manager of s. The binding is looked up on every call, so a
// manager may be created before [binder.InitialCollections] runs.
func New(s *schema.Schema, opts ...ManagerOption) *Objects {
	o := &Objects{schema: s, registry: binder.Default}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Schema returns the managed schema.
func (o *Objects) Schema() *schema.Schema { return o.schema }

func (o *Objects) collection() (domain.Collection, error) {
	b, err := o.registry.Lookup(o.schema)
	if err != nil {
		return nil, err
	}
	return b.Collection, nil
}

func (o *Objects) logger(op string) *zap.Logger {
	return o.registry.Logger().With(zap.String("schema", o.schema.Name()), zap.String("op", op))
}

// compile compiles filter and logs the result at debug level.
func (o *Objects) compile(op string, filter any, fields ...zap.Field) (any, error) {
	compiled, err := expression.CompileFilter(filter)
	if err != nil {
		return nil, err
	}
	o.logger(op).Debug("query", append([]zap.Field{zap.Any("filter", compiled)}, fields...)...)
	return compiled, nil
}

func sessionOf(ctx context.Context) domain.Session {
	sess, _ := session.From(ctx)
	return sess
}

func (o *Objects) checkDocument(doc *schema.Document) error {
	if doc == nil {
		return fmt.Errorf("nil %s document", o.schema.Name())
	}
	if doc.Schema() != o.schema {
		return &domain.ErrConfiguration{
			Schema: o.schema.Name(),
			Reason: fmt.Sprintf("cannot store a %s document", doc.Schema().Name()),
		}
	}
	return nil
}

func (o *Objects) load(raw map[string]any) (*schema.Document, error) {
	return o.schema.LoadPartial(raw)
}

// InsertOne inserts doc and stores the id assigned by the driver in it.
func (o *Objects) InsertOne(ctx context.Context, doc *schema.Document) (any, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	if err := o.checkDocument(doc); err != nil {
		return nil, err
	}
	native, err := doc.Native()
	if err != nil {
		return nil, err
	}
	id, err := coll.InsertOne(ctx, native, domain.InsertOptions{Session: sessionOf(ctx)})
	if err != nil {
		return nil, err
	}
	if err := doc.SetID(id); err != nil {
		return nil, err
	}
	return id, nil
}

// InsertMany inserts docs and stores the ids assigned by the driver in them.
// Inserts are ordered unless [WithOrdered] says otherwise.
func (o *Objects) InsertMany(ctx context.Context, docs []*schema.Document, opts ...Option) ([]any, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	options := newOptions(opts)
	natives := make([]any, len(docs))
	for n, doc := range docs {
		if err := o.checkDocument(doc); err != nil {
			return nil, err
		}
		if natives[n], err = doc.Native(); err != nil {
			return nil, err
		}
	}
	ids, err := coll.InsertMany(ctx, natives, domain.InsertOptions{Ordered: options.ordered, Session: sessionOf(ctx)})
	for n, id := range ids {
		if n < len(docs) && id != nil {
			if setErr := docs[n].SetID(id); setErr != nil {
				return ids, errors.Join(err, setErr)
			}
		}
	}
	return ids, err
}

func (o *Objects) findOptions(ctx context.Context, options options) domain.FindOptions {
	return domain.FindOptions{
		Projection: options.projection,
		Sort:       options.compileSort(),
		Skip:       options.skip,
		Limit:      options.limit,
		Session:    sessionOf(ctx),
	}
}

// Find returns the documents matching filter. The query runs when the
// sequence is ranged over, again for every range. Filter is an expression, a
// native document or nil for every document. Results are loaded partially.
func (o *Objects) Find(ctx context.Context, filter any, opts ...Option) iter.Seq2[*schema.Document, error] {
	return func(yield func(*schema.Document, error) bool) {
		coll, err := o.collection()
		if err != nil {
			yield(nil, err)
			return
		}
		fopts := o.findOptions(ctx, newOptions(opts))
		compiled, err := o.compile("find", filter, zap.Any("sort", fopts.Sort))
		if err != nil {
			yield(nil, err)
			return
		}

		cur, err := coll.Find(ctx, compiled, fopts)
		if err != nil {
			yield(nil, err)
			return
		}
		defer cur.Close(context.WithoutCancel(ctx))

		for cur.Next(ctx) {
			var raw bson.M
			if err := cur.Decode(&raw); err != nil {
				yield(nil, err)
				return
			}
			doc, err := o.load(raw)
			if !yield(doc, err) || err != nil {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// FindOne returns the first document matching filter, or nil when there is
// none.
func (o *Objects) FindOne(ctx context.Context, filter any, opts ...Option) (*schema.Document, error) {
	for doc, err := range o.Find(ctx, filter, append(opts[:len(opts):len(opts)], WithLimit(1))...) {
		return doc, err
	}
	return nil, nil
}

func (o *Objects) modifyOptions(ctx context.Context, options options) (domain.FindOneAndModifyOptions, error) {
	arrayFilters, err := expression.CompileFilters(options.arrayFilters)
	if err != nil {
		return domain.FindOneAndModifyOptions{}, err
	}
	return domain.FindOneAndModifyOptions{
		ReturnAfter:  options.after,
		Upsert:       options.upsert,
		Projection:   options.projection,
		Sort:         options.compileSort(),
		ArrayFilters: arrayFilters,
		Session:      sessionOf(ctx),
	}, nil
}

func (o *Objects) modified(raw map[string]any, err error) (*schema.Document, error) {
	if errors.Is(err, domain.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o.load(raw)
}

// FindOneAndUpdate updates the first document matching filter and returns it
// as it was before the update, or after it with [WithAfterDocument]. It
// returns nil when nothing matched.
func (o *Objects) FindOneAndUpdate(ctx context.Context, filter, update any, opts ...Option) (*schema.Document, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	compiled, err := o.compile("findOneAndUpdate", filter)
	if err != nil {
		return nil, err
	}
	mopts, err := o.modifyOptions(ctx, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return o.modified(coll.FindOneAndUpdate(ctx, compiled, update, mopts))
}

// FindOneAndReplace replaces the first document matching filter with doc.
// The returned document follows the rules of [Objects.FindOneAndUpdate].
func (o *Objects) FindOneAndReplace(ctx context.Context, filter any, doc *schema.Document, opts ...Option) (*schema.Document, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	if err := o.checkDocument(doc); err != nil {
		return nil, err
	}
	compiled, err := o.compile("findOneAndReplace", filter)
	if err != nil {
		return nil, err
	}
	native, err := doc.Native()
	if err != nil {
		return nil, err
	}
	mopts, err := o.modifyOptions(ctx, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return o.modified(coll.FindOneAndReplace(ctx, compiled, native, mopts))
}

// FindOneAndDelete deletes the first document matching filter and returns
// it, or nil when nothing matched.
func (o *Objects) FindOneAndDelete(ctx context.Context, filter any, opts ...Option) (*schema.Document, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	compiled, err := o.compile("findOneAndDelete", filter)
	if err != nil {
		return nil, err
	}
	mopts, err := o.modifyOptions(ctx, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return o.modified(coll.FindOneAndDelete(ctx, compiled, mopts))
}

func (o *Objects) delete(ctx context.Context, filter any, many bool) (*domain.DeleteResult, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	op := "deleteOne"
	if many {
		op = "deleteMany"
	}
	compiled, err := o.compile(op, filter)
	if err != nil {
		return nil, err
	}
	dopts := domain.DeleteOptions{Session: sessionOf(ctx)}
	if many {
		return coll.DeleteMany(ctx, compiled, dopts)
	}
	return coll.DeleteOne(ctx, compiled, dopts)
}

// DeleteOne deletes the first document matching filter.
func (o *Objects) DeleteOne(ctx context.Context, filter any) (*domain.DeleteResult, error) {
	return o.delete(ctx, filter, false)
}

// DeleteMany deletes every document matching filter.
func (o *Objects) DeleteMany(ctx context.Context, filter any) (*domain.DeleteResult, error) {
	return o.delete(ctx, filter, true)
}

func (o *Objects) update(ctx context.Context, filter, update any, many bool, opts []Option) (*domain.UpdateResult, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	op := "updateOne"
	if many {
		op = "updateMany"
	}
	compiled, err := o.compile(op, filter)
	if err != nil {
		return nil, err
	}
	options := newOptions(opts)
	arrayFilters, err := expression.CompileFilters(options.arrayFilters)
	if err != nil {
		return nil, err
	}
	uopts := domain.UpdateOptions{Upsert: options.upsert, ArrayFilters: arrayFilters, Session: sessionOf(ctx)}
	if many {
		return coll.UpdateMany(ctx, compiled, update, uopts)
	}
	return coll.UpdateOne(ctx, compiled, update, uopts)
}

// UpdateOne applies update to the first document matching filter. The update
// document is passed to the driver unmodified.
func (o *Objects) UpdateOne(ctx context.Context, filter, update any, opts ...Option) (*domain.UpdateResult, error) {
	return o.update(ctx, filter, update, false, opts)
}

// UpdateMany applies update to every document matching filter.
func (o *Objects) UpdateMany(ctx context.Context, filter, update any, opts ...Option) (*domain.UpdateResult, error) {
	return o.update(ctx, filter, update, true, opts)
}

// CountDocuments counts the documents matching filter, honouring
// [WithSkip] and [WithLimit].
func (o *Objects) CountDocuments(ctx context.Context, filter any, opts ...Option) (int64, error) {
	coll, err := o.collection()
	if err != nil {
		return 0, err
	}
	compiled, err := o.compile("countDocuments", filter)
	if err != nil {
		return 0, err
	}
	options := newOptions(opts)
	return coll.CountDocuments(ctx, compiled, domain.CountOptions{
		Skip:    options.skip,
		Limit:   options.limit,
		Session: sessionOf(ctx),
	})
}

// BulkWrite compiles ops in order and runs them as a single driver batch.
// On partial failure the driver error is returned with the result it
// reported.
func (o *Objects) BulkWrite(ctx context.Context, ops []bulk.Operation, opts ...Option) (*domain.BulkWriteResult, error) {
	coll, err := o.collection()
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op == nil {
			continue
		}
		for _, doc := range op.Documents() {
			if err := o.checkDocument(doc); err != nil {
				return nil, err
			}
		}
	}
	models, err := bulk.Compile(ops...)
	if err != nil {
		return nil, err
	}
	options := newOptions(opts)
	o.logger("bulkWrite").Debug("batch", zap.Int("models", len(models)), zap.Bool("ordered", options.ordered))
	return coll.BulkWrite(ctx, models, domain.BulkWriteOptions{Ordered: options.ordered, Session: sessionOf(ctx)})
}

// Drop drops the collection. The schema stays bound and its collection is
// created again by the next write, without the indexes.
func (o *Objects) Drop(ctx context.Context) error {
	coll, err := o.collection()
	if err != nil {
		return err
	}
	return coll.Drop(ctx, domain.DropOptions{Session: sessionOf(ctx)})
}

// UseSession runs fn with sess as the ambient session.
func (o *Objects) UseSession(ctx context.Context, sess domain.Session, fn func(ctx context.Context) error) error {
	return session.UseSession(ctx, sess, fn)
}

// UseTransaction runs fn in a transaction on the database the schema is bound
// to. See [session.UseTransaction].
func (o *Objects) UseTransaction(ctx context.Context, fn func(ctx context.Context) error, opts ...session.Option) error {
	b, err := o.registry.Lookup(o.schema)
	if err != nil {
		return err
	}
	return session.UseTransaction(ctx, b.Database, fn, opts...)
}
