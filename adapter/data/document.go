// Package data normalizes values into the representation stored by the
// in-memory driver. Documents become map[string]any, arrays become []any,
// integers become int64 and floats become float64. BSON scalar types are kept,
// except bson.DateTime, which becomes a UTC time.Time with millisecond
// precision.
package data

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	goreflect "github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TagName is the struct tag read when normalizing structs.
const TagName = "bson"

var timeTyp = goreflect.TypeOf(time.Time{})

// M is a normalized document.
type M = map[string]any

// Document normalizes in, which must be a document. A nil input returns an
// empty document.
func Document(in any) (M, error) {
	if in == nil {
		return M{}, nil
	}
	v, err := Normalize(in)
	if err != nil {
		return nil, err
	}
	switch doc := v.(type) {
	case M:
		return doc, nil
	case nil:
		return M{}, nil
	default:
		return nil, fmt.Errorf("expected a document, got %T", in)
	}
}

// Normalize returns a normalized deep copy of v.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bson.Null, bson.Undefined:
		return nil, nil
	case M:
		return normalizeMap(t)
	case bson.M:
		return normalizeMap(t)
	case bson.D:
		res := make(M, len(t))
		for _, e := range t {
			value, err := Normalize(e.Value)
			if err != nil {
				return nil, err
			}
			res[e.Key] = value
		}
		return res, nil
	case []any:
		return normalizeList(t)
	case bson.A:
		return normalizeList(t)
	case string, bool, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint:
		return normalizeUint(uint64(t)), nil
	case uint64:
		return normalizeUint(t), nil
	case float32:
		return float64(t), nil
	case time.Time:
		return t.UTC().Truncate(time.Millisecond), nil
	case bson.DateTime:
		return t.Time().UTC(), nil
	case []byte:
		return slices.Clone(t), nil
	case bson.ObjectID, bson.Decimal128, bson.Binary, bson.Regex, bson.Timestamp,
		bson.MinKey, bson.MaxKey, *regexp.Regexp:
		return t, nil
	}
	return parseReflect(goreflect.ValueNoEscapeOf(v))
}

func normalizeMap[T ~map[string]any](m T) (M, error) {
	res := make(M, len(m))
	for k, item := range m {
		value, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		res[k] = value
	}
	return res, nil
}

func normalizeList[T ~[]any](l T) ([]any, error) {
	res := make([]any, len(l))
	for n, item := range l {
		value, err := Normalize(item)
		if err != nil {
			return nil, err
		}
		res[n] = value
	}
	return res, nil
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}

func parseReflect(r goreflect.Value) (any, error) {
	for r.Kind() == reflect.Pointer || r.Kind() == goreflect.Interface {
		if r.IsNil() {
			return nil, nil
		}
		r = r.Elem()
	}
	switch r.Kind() {
	case goreflect.Invalid:
		return nil, nil
	case goreflect.Struct:
		if r.Type() == timeTyp {
			return Normalize(r.Interface())
		}
		return parseStruct(r)
	case goreflect.Map:
		if r.IsNil() {
			return nil, nil
		}
		return parseMapReflect(r)
	case goreflect.Slice:
		if r.IsNil() {
			return nil, nil
		}
		fallthrough
	case goreflect.Array:
		if r.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, r.Len())
			for i := range b {
				b[i] = byte(r.Index(i).Uint())
			}
			return b, nil
		}
		return parseList(r)
	case goreflect.String:
		return r.String(), nil
	case goreflect.Bool:
		return r.Bool(), nil
	case goreflect.Int, goreflect.Int8, goreflect.Int16, goreflect.Int32, goreflect.Int64:
		return r.Int(), nil
	case goreflect.Uint, goreflect.Uint8, goreflect.Uint16, goreflect.Uint32, goreflect.Uint64:
		return normalizeUint(r.Uint()), nil
	case goreflect.Float32, goreflect.Float64:
		return r.Float(), nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", r.Type().String())
	}
}

func parseStruct(r goreflect.Value) (M, error) {
	typ := r.Type()
	res := make(M, r.NumField())
	for n := range r.NumField() {
		field := typ.Field(n)
		if field.PkgPath != "" {
			continue
		}
		name := strings.ToLower(field.Name)
		var tagSegments []string
		if tag, ok := field.Tag.Lookup(TagName); ok {
			if tag == "-" {
				continue
			}
			tagSegments = strings.Split(tag, ",")
			if tagSegments[0] != "" {
				name = tagSegments[0]
			}
			tagSegments = tagSegments[1:]
		}
		fieldValue := r.Field(n)
		if slices.Contains(tagSegments, "omitempty") && fieldValue.IsZero() {
			continue
		}
		value, err := parseReflect(fieldValue)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.Name, err)
		}
		if slices.Contains(tagSegments, "inline") {
			if inner, ok := value.(M); ok {
				for k, v := range inner {
					res[k] = v
				}
				continue
			}
		}
		res[name] = value
	}
	return res, nil
}

func parseMapReflect(r goreflect.Value) (M, error) {
	if r.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("document keys must be strings, got %s", r.Type().Key().String())
	}
	res := make(M, r.Len())
	for _, k := range r.MapKeys() {
		value, err := parseReflect(r.MapIndex(k))
		if err != nil {
			return nil, err
		}
		res[k.String()] = value
	}
	return res, nil
}

func parseList(r goreflect.Value) ([]any, error) {
	res := make([]any, r.Len())
	for i := range res {
		value, err := Normalize(r.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		res[i] = value
	}
	return res, nil
}

// Clone deep copies a normalized value.
func Clone(v any) any {
	switch t := v.(type) {
	case M:
		res := make(M, len(t))
		for k, item := range t {
			res[k] = Clone(item)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for n, item := range t {
			res[n] = Clone(item)
		}
		return res
	case []byte:
		return slices.Clone(t)
	default:
		return v
	}
}

// CloneAll deep copies every document of docs.
func CloneAll(docs []M) []M {
	res := make([]M, len(docs))
	for n, doc := range docs {
		res[n] = Clone(doc).(M)
	}
	return res
}

// CheckKeys fails when a key of doc, or of a document nested in it, starts
// with '$' or contains '.'.
func CheckKeys(doc M) error {
	for k, v := range doc {
		if strings.HasPrefix(k, "$") {
			return &domain.ErrFieldName{Field: k, Reason: "field names cannot begin with '$'"}
		}
		if strings.ContainsRune(k, '.') {
			return &domain.ErrFieldName{Field: k, Reason: "field names cannot contain '.'"}
		}
		if err := checkValue(v); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(v any) error {
	switch t := v.(type) {
	case M:
		return CheckKeys(t)
	case []any:
		for _, item := range t {
			if err := checkValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}
