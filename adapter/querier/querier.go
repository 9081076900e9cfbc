// Package querier contains the default [domain.Querier] implementation.
package querier

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/projector"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// ErrSortDirection is returned when a sort criterion is neither 1 nor -1.
var ErrSortDirection = errors.New("sort direction must be 1 or -1")

// Querier implements [domain.Querier].
type Querier struct {
	mtchr domain.Matcher
	cmpr  domain.Comparer
	fn    domain.FieldNavigator
	proj  domain.Projector
}

// NewQuerier returns a new implementation of [domain.Querier].
func NewQuerier(opts ...Option) domain.Querier {
	q := Querier{}
	for _, opt := range opts {
		opt(&q)
	}
	if q.cmpr == nil {
		q.cmpr = comparer.NewComparer()
	}
	if q.fn == nil {
		q.fn = fieldnavigator.NewFieldNavigator()
	}
	if q.proj == nil {
		q.proj = projector.NewProjector(projector.WithFieldNavigator(q.fn))
	}
	if q.mtchr == nil {
		q.mtchr = matcher.NewMatcher(
			matcher.WithComparer(q.cmpr),
			matcher.WithFieldNavigator(q.fn),
		)
	}
	return &q
}

type criterion struct {
	addr  []string
	order int
}

// Query implements [domain.Querier]. Documents are returned in input order
// unless q.Sort is set. A Limit of zero returns every document.
func (q *Querier) Query(docs []map[string]any, query domain.Query) ([]map[string]any, error) {
	criteria, err := q.criteria(query)
	if err != nil {
		return nil, err
	}

	res, err := q.filter(docs, query, criteria == nil)
	if err != nil {
		return nil, err
	}

	if criteria != nil {
		sorted, err := q.sort(res, criteria)
		if err != nil {
			return nil, fmt.Errorf("sorting: %w", err)
		}
		res = q.skipAndLimit(sorted, query.Skip, query.Limit)
	}

	res, err = q.proj.Project(res, query.Projection)
	if err != nil {
		return nil, fmt.Errorf("projecting: %w", err)
	}
	return res, nil
}

func (q *Querier) criteria(query domain.Query) ([]criterion, error) {
	if len(query.Sort) == 0 {
		return nil, nil
	}
	res := make([]criterion, len(query.Sort))
	for n, e := range query.Sort {
		addr, err := q.fn.GetAddress(e.Key)
		if err != nil {
			return nil, fmt.Errorf("getting address: %w", err)
		}
		order, ok := direction(e.Value)
		if !ok {
			return nil, fmt.Errorf("%w: %q got %v", ErrSortDirection, e.Key, e.Value)
		}
		res[n] = criterion{addr: addr, order: order}
	}
	return res, nil
}

func direction(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case int:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	default:
		return 0, false
	}
	switch f {
	case 1:
		return 1, true
	case -1:
		return -1, true
	}
	return 0, false
}

// filter collects the matching documents. When streaming is set, skip and
// limit are applied while reading.
func (q *Querier) filter(docs []map[string]any, query domain.Query, streaming bool) ([]map[string]any, error) {
	var skipped int64
	res := make([]map[string]any, 0, len(docs))

	for _, doc := range docs {
		if len(query.Filter) > 0 {
			matches, err := q.mtchr.Match(doc, query.Filter)
			if err != nil {
				return nil, fmt.Errorf("matching document: %w", err)
			}
			if !matches {
				continue
			}
		}
		if streaming {
			if skipped < query.Skip {
				skipped++
				continue
			}
			if query.Limit > 0 && int64(len(res)) == query.Limit {
				break
			}
		}
		res = append(res, doc)
	}
	return res, nil
}

func (q *Querier) sort(docs []map[string]any, criteria []criterion) ([]map[string]any, error) {
	res := slices.Clone(docs)
	var err error
	slices.SortStableFunc(res, func(a, b map[string]any) int {
		if err != nil {
			return 0
		}
		for _, crit := range criteria {
			comp, cErr := q.compareByCriterion(a, b, crit)
			if cErr != nil {
				err = cErr
				return 0
			}
			if comp != 0 {
				return comp
			}
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *Querier) compareByCriterion(a, b map[string]any, crit criterion) (int, error) {
	keyA, err := q.sortKey(a, crit)
	if err != nil {
		return 0, err
	}
	keyB, err := q.sortKey(b, crit)
	if err != nil {
		return 0, err
	}

	comp, err := q.cmpr.Compare(keyA, keyB)
	if err != nil {
		return 0, fmt.Errorf("comparing: %w", err)
	}
	return comp * crit.order, nil
}

// sortKey returns the value a document is ordered by. Arrays sort by their
// smallest item when ascending and by their largest when descending.
func (q *Querier) sortKey(doc map[string]any, crit criterion) (any, error) {
	fields, expanded, err := q.fn.GetField(doc, crit.addr...)
	if err != nil {
		return nil, fmt.Errorf("getting field: %w", err)
	}

	var candidates []domain.Getter
	if expanded {
		for _, f := range fields {
			candidates = append(candidates, f)
		}
	} else {
		v, ok := fields[0].Get()
		list, isList := v.([]any)
		if !ok || !isList || len(list) == 0 {
			return fields[0], nil
		}
		for _, item := range list {
			candidates = append(candidates, fieldnavigator.Value(item))
		}
	}

	var best domain.Getter
	for _, c := range candidates {
		if _, ok := c.Get(); !ok {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		comp, err := q.cmpr.Compare(c, best)
		if err != nil {
			return nil, fmt.Errorf("comparing: %w", err)
		}
		if comp*crit.order < 0 {
			best = c
		}
	}
	if best == nil {
		return fieldnavigator.Missing(), nil
	}
	return best, nil
}

func (q *Querier) skipAndLimit(docs []map[string]any, skip, limit int64) []map[string]any {

	length := int64(len(docs))

	skip = max(skip, 0)      // skip cannot be negative
	skip = min(skip, length) // cannot skip more than length

	if limit <= 0 { // zero limit returns everything
		return docs[skip:]
	}
	return docs[skip:min(skip+limit, length)]
}
