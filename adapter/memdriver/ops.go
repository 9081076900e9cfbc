package memdriver

import (
	"fmt"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// prepareUpdate normalizes the filter and update of an update or replace
// operation.
func (c *Collection) prepareUpdate(filter, update any, replace bool, arrayFilters []any) (data.M, data.M, error) {
	if len(arrayFilters) > 0 {
		return nil, nil, ErrArrayFilters
	}
	f, err := data.Document(filter)
	if err != nil {
		return nil, nil, fmt.Errorf("filter: %w", err)
	}
	u, err := data.Document(update)
	if err != nil {
		return nil, nil, fmt.Errorf("update: %w", err)
	}
	if replace && hasOperator(u) {
		return nil, nil, ErrReplacementOperators
	}
	if !replace && !isOperatorDoc(u) {
		return nil, nil, ErrUpdateOperators
	}
	return f, u, nil
}

func (c *Collection) update(s *store, f, u data.M, many, upsert bool) (*domain.UpdateResult, error) {
	var limit int64 = 1
	if many {
		limit = 0
	}
	positions, err := c.match(s.docs, f, nil, limit)
	if err != nil {
		return nil, err
	}

	res := &domain.UpdateResult{}
	if len(positions) == 0 {
		if !upsert {
			return res, nil
		}
		doc, err := c.upsert(s, f, u)
		if err != nil {
			return res, err
		}
		res.UpsertedCount = 1
		res.UpsertedID = doc[domain.IDKey]
		return res, nil
	}

	res.MatchedCount = int64(len(positions))
	_, modified, err := c.modify(s, positions, u)
	if err != nil {
		return res, err
	}
	res.ModifiedCount = modified
	return res, nil
}

// modify applies u to the documents at positions and returns their new
// versions along with how many of them actually changed.
func (c *Collection) modify(s *store, positions []int, u data.M) ([]data.M, int64, error) {
	newDocs := make([]data.M, len(positions))
	changed := make([]int, 0, len(positions))
	pairs := make([]domain.Update, 0, len(positions))
	for n, p := range positions {
		old := s.docs[p]
		doc, err := c.db.modifier.Modify(old, u)
		if err != nil {
			return nil, 0, err
		}
		if err := data.CheckKeys(doc); err != nil {
			return nil, 0, err
		}
		if comp, err := c.db.comparer.Compare(old, doc); err == nil && comp == 0 {
			newDocs[n] = old
			continue
		}
		newDocs[n] = doc
		changed = append(changed, p)
		pairs = append(pairs, domain.Update{OldDoc: old, NewDoc: doc})
	}
	if err := c.replaceDocs(s, changed, pairs); err != nil {
		return nil, 0, err
	}
	return newDocs, int64(len(pairs)), nil
}

func (c *Collection) upsert(s *store, f, u data.M) (data.M, error) {
	doc, err := c.db.modifier.Upsert(f, u)
	if err != nil {
		return nil, err
	}
	return c.insertDoc(s, doc)
}

func (c *Collection) delete(s *store, filter any, many bool) (int64, error) {
	f, err := data.Document(filter)
	if err != nil {
		return 0, fmt.Errorf("filter: %w", err)
	}
	var limit int64 = 1
	if many {
		limit = 0
	}
	positions, err := c.match(s.docs, f, nil, limit)
	if err != nil {
		return 0, err
	}
	if err := c.removeDocs(s, positions); err != nil {
		return 0, err
	}
	return int64(len(positions)), nil
}

// apply runs the model at position n of a bulk write and adds its counts to
// res.
func (c *Collection) apply(s *store, n int, m domain.WriteModel, res *domain.BulkWriteResult) error {
	switch m.Kind {
	case domain.WriteInsertOne:
		if _, err := c.insertDoc(s, m.Document); err != nil {
			return err
		}
		res.InsertedCount++
		return nil
	case domain.WriteDeleteOne, domain.WriteDeleteMany:
		deleted, err := c.delete(s, m.Filter, m.Kind == domain.WriteDeleteMany)
		res.DeletedCount += deleted
		return err
	case domain.WriteUpdateOne, domain.WriteUpdateMany, domain.WriteReplaceOne:
		update := m.Update
		if m.Kind == domain.WriteReplaceOne {
			update = m.Document
		}
		f, u, err := c.prepareUpdate(m.Filter, update, m.Kind == domain.WriteReplaceOne, m.ArrayFilters)
		if err != nil {
			return err
		}
		r, err := c.update(s, f, u, m.Kind == domain.WriteUpdateMany, m.Upsert)
		if r != nil {
			res.MatchedCount += r.MatchedCount
			res.ModifiedCount += r.ModifiedCount
			res.UpsertedCount += r.UpsertedCount
			if r.UpsertedCount > 0 {
				if res.UpsertedIDs == nil {
					res.UpsertedIDs = make(map[int64]any)
				}
				res.UpsertedIDs[int64(n)] = r.UpsertedID
			}
		}
		return err
	default:
		return fmt.Errorf("unknown write model kind %d", m.Kind)
	}
}
