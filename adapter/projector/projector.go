// Package projector contains the default [domain.Projector] implementation.
package projector

import (
	"errors"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

var (
	// ErrMixOmitType is returned when user provides a projection object
	// with mixed "omit" and "show" operators.
	ErrMixOmitType = errors.New("can't both keep and omit fields except for _id")
)

// Projector implements [domain.Projector].
type Projector struct {
	fn domain.FieldNavigator
}

// Option changes a [Projector] built by [NewProjector].
type Option func(*Projector)

// WithFieldNavigator replaces the navigator used to read projected paths.
func WithFieldNavigator(fn domain.FieldNavigator) Option {
	return func(p *Projector) { p.fn = fn }
}

// NewProjector returns a new implementation of [domain.Projector].
func NewProjector(opts ...Option) domain.Projector {
	p := Projector{}
	for _, opt := range opts {
		opt(&p)
	}
	if p.fn == nil {
		p.fn = fieldnavigator.NewFieldNavigator()
	}
	return &p
}

// Project implements [domain.Projector]. The returned documents never share
// memory with docs.
func (q *Projector) Project(docs []map[string]any, proj map[string]any) ([]map[string]any, error) {
	if len(proj) == 0 {
		return data.CloneAll(docs), nil
	}

	id, idMentioned := proj[domain.IDKey]
	keepID := !idMentioned || isTruthy(id)
	projection := make([][]string, 0, len(proj))

	fields := 0
	oneFields := 0
	for field, value := range proj {
		if field == domain.IDKey {
			continue
		}
		fields++
		if isTruthy(value) {
			oneFields++
		}
		addr, err := q.fn.GetAddress(field)
		if err != nil {
			return nil, err
		}
		projection = append(projection, addr)
	}
	if oneFields > 0 && oneFields != fields {
		return nil, ErrMixOmitType
	}

	res := make([]map[string]any, len(docs))
	for n, doc := range docs {
		var projected data.M
		var err error
		if oneFields > 0 {
			projected, err = q.positiveProject(doc, projection)
		} else {
			projected, err = q.negativeProject(doc, projection)
		}
		if err != nil {
			return nil, err
		}

		if id, ok := doc[domain.IDKey]; keepID && ok {
			projected[domain.IDKey] = data.Clone(id)
		} else if !keepID {
			delete(projected, domain.IDKey)
		}
		res[n] = projected
	}

	return res, nil
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func (q *Projector) positiveProject(doc data.M, p [][]string) (data.M, error) {
	res := make(data.M)

	for _, field := range p {
		values, expanded, err := q.fn.GetField(doc, field...)
		if err != nil {
			return nil, err
		}
		fieldValues, ok := q.readFields(values, expanded)
		if !ok {
			continue
		}
		created, err := q.fn.EnsureField(res, field...)
		if err != nil {
			return nil, err
		}
		for _, c := range created {
			c.Set(data.Clone(fieldValues))
		}
	}
	return res, nil
}

func (q *Projector) readFields(f []domain.GetSetter, expanded bool) (any, bool) {
	if !expanded {
		return f[0].Get()
	}
	res := make([]any, 0, len(f))
	for _, field := range f {
		if value, ok := field.Get(); ok {
			res = append(res, value)
		}
	}
	return res, true
}

func (q *Projector) negativeProject(doc data.M, p [][]string) (data.M, error) {
	res := data.Clone(doc).(data.M)
	for _, field := range p {
		values, _, err := q.fn.GetField(res, field...)
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			value.Unset()
		}
	}
	return res, nil
}
