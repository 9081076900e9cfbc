package expression

import (
	"github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Compile implements [Expression]. Comparing with a container using [Eq] or
// [Ne] compiles to a membership test ($in or $nin).
func (c Compare) Compile() bson.M {
	path := string(c.Path)
	switch c.Op {
	case Regex:
		p, _ := c.Value.(Pattern)
		cond := bson.M{string(Regex): p.Expr}
		if p.Options != "" {
			cond["$options"] = p.Options
		}
		return bson.M{path: cond}
	case Eq:
		if isContainer(c.Value) {
			return bson.M{path: bson.M{string(In): c.Value}}
		}
	case Ne:
		if isContainer(c.Value) {
			return bson.M{path: bson.M{string(Nin): c.Value}}
		}
	}
	return bson.M{path: bson.M{string(c.Op): c.Value}}
}

// Compile implements [Expression].
func (l Logical) Compile() bson.M {
	switch len(l.Items) {
	case 0:
		return bson.M{}
	case 1:
		return l.Items[0].Compile()
	}
	items := make(bson.A, len(l.Items))
	for n, item := range l.Items {
		items[n] = item.Compile()
	}
	return bson.M{string(l.Op): items}
}

// Compile implements [Expression].
func (n Negation) Compile() bson.M {
	return bson.M{"$nor": bson.A{n.Expr.Compile()}}
}

// Compile implements [Expression]. The returned document is a deep copy of
// the wrapped query.
func (r Raw) Compile() bson.M {
	if r.Query == nil {
		return bson.M{}
	}
	return Clone(r.Query).(bson.M)
}

// Compile compiles e, returning an empty document for a nil expression.
func Compile(e Expression) bson.M {
	if e == nil {
		return bson.M{}
	}
	return e.Compile()
}

// CompileFilter compiles a filter argument. Expressions are compiled, native
// documents (bson.M, bson.D or map[string]any) are passed through and nil
// matches everything.
func CompileFilter(filter any) (any, error) {
	switch f := filter.(type) {
	case nil:
		return bson.M{}, nil
	case Expression:
		return f.Compile(), nil
	case bson.M, bson.D, map[string]any:
		return f, nil
	default:
		return nil, &domain.ErrFilterType{Kind: "filter", Value: filter}
	}
}

// CompileFilters compiles each filter with [CompileFilter]. An empty list
// compiles to nil.
func CompileFilters(filters []any) ([]any, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	res := make([]any, len(filters))
	for n, f := range filters {
		c, err := CompileFilter(f)
		if err != nil {
			return nil, err
		}
		res[n] = c
	}
	return res, nil
}

// Clone deep copies native documents and arrays. Other values are returned
// as they are.
func Clone(v any) any {
	switch t := v.(type) {
	case bson.M:
		res := make(bson.M, len(t))
		for k, item := range t {
			res[k] = Clone(item)
		}
		return res
	case map[string]any:
		res := make(map[string]any, len(t))
		for k, item := range t {
			res[k] = Clone(item)
		}
		return res
	case bson.D:
		res := make(bson.D, len(t))
		for n, e := range t {
			res[n] = bson.E{Key: e.Key, Value: Clone(e.Value)}
		}
		return res
	case bson.A:
		res := make(bson.A, len(t))
		for n, item := range t {
			res[n] = Clone(item)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, item := range t {
			res[n] = Clone(item)
		}
		return res
	default:
		return v
	}
}

// isContainer reports whether v is a list operand. Byte slices and arrays
// (binary data, object ids) and ordered documents are scalars here.
func isContainer(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(bson.D); ok {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}
