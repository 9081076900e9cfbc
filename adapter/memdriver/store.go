package memdriver

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const idIndexName = "_id_"

var (
	// ErrArrayFilters is returned when an update carries array filters.
	// Filtered positional updates are not supported in memory.
	ErrArrayFilters = errors.New("array filters are not supported by the in-memory driver")
	// ErrUpdateOperators is returned when an update document is empty or
	// has fields that are not update operators.
	ErrUpdateOperators = errors.New("update document must contain only update operators")
	// ErrReplacementOperators is returned when a replacement document has
	// update operators.
	ErrReplacementOperators = errors.New("replacement document cannot contain update operators")
	// ErrIDArray is returned when a document _id is an array.
	ErrIDArray = errors.New("_id cannot be an array")
	// ErrIndexConflict is returned when creating an index with the name of
	// an existing index but a different definition.
	ErrIndexConflict = errors.New("index already exists with a different definition")
	// ErrTTLCompound is returned for TTL indexes with more than one key.
	ErrTTLCompound = errors.New("TTL indexes must have a single key")
)

// store holds the documents of a collection in insertion order, along with
// its indexes. The _id index is always the first one.
type store struct {
	docs    []data.M
	indexes []domain.Index
}

func isOperatorDoc(doc data.M) bool {
	if len(doc) == 0 {
		return false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func hasOperator(doc data.M) bool {
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// expired reports whether a TTL index of s has expired doc. Arrays of dates
// expire with their earliest date.
func (c *Collection) expired(s *store, doc data.M, now time.Time) bool {
	for _, idx := range s.indexes {
		model := idx.Model()
		if model.ExpireAfter <= 0 || len(model.Keys) != 1 {
			continue
		}
		addr, err := c.db.fieldNavigator.GetAddress(model.Keys[0].Key)
		if err != nil {
			continue
		}
		fields, _, err := c.db.fieldNavigator.GetField(doc, addr...)
		if err != nil {
			continue
		}
		var earliest time.Time
		for _, f := range fields {
			v, _ := f.Get()
			values := []any{v}
			if l, ok := v.([]any); ok {
				values = l
			}
			for _, item := range values {
				if t, ok := item.(time.Time); ok && (earliest.IsZero() || t.Before(earliest)) {
					earliest = t
				}
			}
		}
		if !earliest.IsZero() && !now.Before(earliest.Add(model.ExpireAfter)) {
			return true
		}
	}
	return false
}

func (c *Collection) hasTTL(s *store) bool {
	return slices.ContainsFunc(s.indexes, func(idx domain.Index) bool {
		return idx.Model().ExpireAfter > 0
	})
}

// visible returns the documents of s that have not expired.
func (c *Collection) visible(s *store) []data.M {
	if !c.hasTTL(s) {
		return s.docs
	}
	now := c.db.timeGetter.GetTime()
	return slices.DeleteFunc(slices.Clone(s.docs), func(doc data.M) bool {
		return c.expired(s, doc, now)
	})
}

// purge removes expired documents from s.
func (c *Collection) purge(s *store) error {
	if !c.hasTTL(s) {
		return nil
	}
	now := c.db.timeGetter.GetTime()
	var positions []int
	for n, doc := range s.docs {
		if c.expired(s, doc, now) {
			positions = append(positions, n)
		}
	}
	return c.removeDocs(s, positions)
}

// insertDoc assigns an _id to doc when it has none and adds it to s.
func (c *Collection) insertDoc(s *store, raw any) (data.M, error) {
	doc, err := data.Document(raw)
	if err != nil {
		return nil, err
	}
	if err := data.CheckKeys(doc); err != nil {
		return nil, err
	}
	id, ok := doc[domain.IDKey]
	if !ok {
		if id, err = c.db.idGenerator.GenerateID(); err != nil {
			return nil, fmt.Errorf("generating _id: %w", err)
		}
		doc[domain.IDKey] = id
	}
	if _, isList := id.([]any); isList {
		return nil, ErrIDArray
	}

	for n, idx := range s.indexes {
		if err := idx.Insert(doc); err != nil {
			for _, prev := range s.indexes[:n] {
				_ = prev.Remove(doc)
			}
			return nil, err
		}
	}
	s.docs = append(s.docs, doc)
	return doc, nil
}

// removeDocs removes the documents at positions from s.
func (c *Collection) removeDocs(s *store, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	removed := make([]data.M, len(positions))
	remove := make(map[int]bool, len(positions))
	for n, p := range positions {
		removed[n] = s.docs[p]
		remove[p] = true
	}
	var errs []error
	for _, idx := range s.indexes {
		if err := idx.Remove(removed...); err != nil {
			errs = append(errs, err)
		}
	}
	kept := s.docs[:0]
	for n, doc := range s.docs {
		if !remove[n] {
			kept = append(kept, doc)
		}
	}
	clear(s.docs[len(kept):])
	s.docs = kept
	return errors.Join(errs...)
}

// replaceDocs swaps the documents at positions by the new versions in
// pairs. Nothing changes when an index rejects one of them.
func (c *Collection) replaceDocs(s *store, positions []int, pairs []domain.Update) error {
	if len(pairs) == 0 {
		return nil
	}
	for n, idx := range s.indexes {
		if err := idx.UpdateMultipleDocs(pairs...); err != nil {
			revert := make([]domain.Update, len(pairs))
			for i, p := range pairs {
				revert[i] = domain.Update{OldDoc: p.NewDoc, NewDoc: p.OldDoc}
			}
			for _, prev := range s.indexes[:n] {
				_ = prev.UpdateMultipleDocs(revert...)
			}
			return err
		}
	}
	for n, p := range positions {
		s.docs[p] = pairs[n].NewDoc
	}
	return nil
}

// match returns the positions of the documents of docs matching filter,
// ordered by sort. A positive limit caps the result.
func (c *Collection) match(docs []data.M, filter data.M, sort bson.D, limit int64) ([]int, error) {
	if len(sort) > 0 {
		return c.sortedMatch(docs, filter, sort, limit)
	}
	var res []int
	for n, doc := range docs {
		ok, err := c.db.matcher.Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		res = append(res, n)
		if limit > 0 && int64(len(res)) == limit {
			break
		}
	}
	return res, nil
}

func (c *Collection) sortedMatch(docs []data.M, filter data.M, sort bson.D, limit int64) ([]int, error) {
	found, err := c.db.querier.Query(docs, domain.Query{Filter: filter, Sort: sort, Limit: limit})
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64][]int, len(docs))
	for n, doc := range docs {
		h, err := c.db.hasher.Hash(doc[domain.IDKey])
		if err != nil {
			return nil, err
		}
		byID[h] = append(byID[h], n)
	}

	res := make([]int, 0, len(found))
	for _, doc := range found {
		id := doc[domain.IDKey]
		h, err := c.db.hasher.Hash(id)
		if err != nil {
			return nil, err
		}
		p := slices.IndexFunc(byID[h], func(n int) bool {
			comp, err := c.db.comparer.Compare(docs[n][domain.IDKey], id)
			return err == nil && comp == 0
		})
		if p < 0 {
			return nil, fmt.Errorf("document with _id %v vanished while sorting", id)
		}
		res = append(res, byID[h][p])
	}
	return res, nil
}
