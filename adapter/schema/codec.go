package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Codec converts raw values into typed field values and back. Raw values are
// either JSON-safe (as produced by [Document.Dump] or decoded from JSON) or
// native driver values.
type Codec interface {
	// Kind names the type in validation errors.
	Kind() string
	// Load validates and converts raw. Path is the dotted path used in
	// errors.
	Load(path string, raw any, partial bool) (any, error)
	// Dump converts a loaded value back to a raw value. With native set,
	// driver types (object ids, dates, decimals) are kept.
	Dump(v any, native bool) (any, error)
}

// Built-in codecs.
var (
	StringType   Codec = stringCodec{}
	IntegerType  Codec = integerCodec{}
	FloatType    Codec = floatCodec{}
	BooleanType  Codec = booleanCodec{}
	DecimalType  Codec = decimalCodec{}
	DateTimeType Codec = dateTimeCodec{}
	ObjectIDType Codec = objectIDCodec{}
	DictType     Codec = dictCodec{}
)

func typeError(path string, c Codec, raw any) error {
	return &domain.ErrValidation{
		Path:     path,
		Expected: c.Kind(),
		Actual:   typeName(raw),
		Reason:   "invalid type",
	}
}

func dumpError(c Codec, v any) error {
	return fmt.Errorf("cannot dump %s as %s", typeName(v), c.Kind())
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

type stringCodec struct{}

func (stringCodec) Kind() string { return "string" }

func (c stringCodec) Load(path string, raw any, _ bool) (any, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return nil, typeError(path, c, raw)
}

func (c stringCodec) Dump(v any, _ bool) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, dumpError(c, v)
}

type integerCodec struct{}

func (integerCodec) Kind() string { return "integer" }

func (c integerCodec) Load(path string, raw any, _ bool) (any, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), nil
		}
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	case float32:
		return c.fromFloat(path, float64(n), raw)
	case float64:
		return c.fromFloat(path, n, raw)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	return nil, typeError(path, c, raw)
}

// fromFloat accepts integral floats, as produced by JSON decoders.
func (c integerCodec) fromFloat(path string, f float64, raw any) (any, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, typeError(path, c, raw)
	}
	return int64(f), nil
}

func (c integerCodec) Dump(v any, _ bool) (any, error) {
	if i, ok := v.(int64); ok {
		return i, nil
	}
	return nil, dumpError(c, v)
}

type floatCodec struct{}

func (floatCodec) Kind() string { return "float" }

func (c floatCodec) Load(path string, raw any, _ bool) (any, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, nil
		}
	}
	if i, err := IntegerType.Load(path, raw, false); err == nil {
		return float64(i.(int64)), nil
	}
	return nil, typeError(path, c, raw)
}

func (c floatCodec) Dump(v any, _ bool) (any, error) {
	if f, ok := v.(float64); ok {
		return f, nil
	}
	return nil, dumpError(c, v)
}

type booleanCodec struct{}

func (booleanCodec) Kind() string { return "boolean" }

func (c booleanCodec) Load(path string, raw any, _ bool) (any, error) {
	if b, ok := raw.(bool); ok {
		return b, nil
	}
	return nil, typeError(path, c, raw)
}

func (c booleanCodec) Dump(v any, _ bool) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, dumpError(c, v)
}

type decimalCodec struct{}

func (decimalCodec) Kind() string { return "decimal" }

func (c decimalCodec) Load(path string, raw any, _ bool) (any, error) {
	var text string
	switch n := raw.(type) {
	case bson.Decimal128:
		return n, nil
	case string:
		text = strings.TrimSpace(n)
	case json.Number:
		text = n.String()
	case float64:
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		i, err := IntegerType.Load(path, raw, false)
		if err != nil {
			return nil, typeError(path, c, raw)
		}
		text = strconv.FormatInt(i.(int64), 10)
	}
	d, err := bson.ParseDecimal128(text)
	if err != nil {
		return nil, &domain.ErrValidation{Path: path, Expected: c.Kind(), Actual: strconv.Quote(text), Reason: "not a valid decimal"}
	}
	return d, nil
}

func (c decimalCodec) Dump(v any, native bool) (any, error) {
	d, ok := v.(bson.Decimal128)
	if !ok {
		return nil, dumpError(c, v)
	}
	if native {
		return d, nil
	}
	return d.String(), nil
}

type dateTimeCodec struct{}

func (dateTimeCodec) Kind() string { return "datetime" }

func (c dateTimeCodec) Load(path string, raw any, _ bool) (any, error) {
	switch t := raw.(type) {
	case time.Time:
		return t.UTC(), nil
	case bson.DateTime:
		return t.Time().UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, &domain.ErrValidation{Path: path, Expected: "RFC 3339 " + c.Kind(), Actual: strconv.Quote(t), Reason: "not a valid datetime"}
		}
		return parsed.UTC(), nil
	}
	return nil, typeError(path, c, raw)
}

func (c dateTimeCodec) Dump(v any, native bool) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, dumpError(c, v)
	}
	if native {
		return t, nil
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

type objectIDCodec struct{}

func (objectIDCodec) Kind() string { return "object id" }

func (c objectIDCodec) Load(path string, raw any, _ bool) (any, error) {
	switch id := raw.(type) {
	case bson.ObjectID:
		return id, nil
	case string:
		parsed, err := bson.ObjectIDFromHex(id)
		if err != nil {
			return nil, &domain.ErrValidation{Path: path, Expected: c.Kind(), Actual: strconv.Quote(id), Reason: "not a valid object id"}
		}
		return parsed, nil
	}
	return nil, typeError(path, c, raw)
}

func (c objectIDCodec) Dump(v any, native bool) (any, error) {
	id, ok := v.(bson.ObjectID)
	if !ok {
		return nil, dumpError(c, v)
	}
	if native {
		return id, nil
	}
	return id.Hex(), nil
}

type dictCodec struct{}

func (dictCodec) Kind() string { return "dict" }

func (c dictCodec) Load(path string, raw any, _ bool) (any, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, typeError(path, c, raw)
	}
	return normalize(m), nil
}

func (c dictCodec) Dump(v any, _ bool) (any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, dumpError(c, v)
	}
	return normalize(m), nil
}

// literalCodec accepts a closed set of values.
type literalCodec[T comparable] struct {
	values []T
}

// LiteralType returns a codec accepting only the given values.
func LiteralType[T comparable](values ...T) Codec {
	return literalCodec[T]{values: values}
}

func (c literalCodec[T]) Kind() string {
	parts := make([]string, len(c.values))
	for n, v := range c.values {
		parts[n] = fmt.Sprintf("%#v", v)
	}
	return "one of [" + strings.Join(parts, ", ") + "]"
}

func (c literalCodec[T]) Load(path string, raw any, _ bool) (any, error) {
	v, ok := raw.(T)
	if !ok {
		v, ok = c.convert(raw)
	}
	if !ok {
		return nil, typeError(path, c, raw)
	}
	for _, allowed := range c.values {
		if v == allowed {
			return v, nil
		}
	}
	return nil, &domain.ErrValidation{Path: path, Expected: c.Kind(), Actual: fmt.Sprintf("%#v", v), Reason: "value not allowed"}
}

// convert brings numbers and strings of another Go type to T. Drivers widen
// or narrow integers and JSON decoders produce floats.
func (c literalCodec[T]) convert(raw any) (T, bool) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	target := reflect.Zero(t)

	var src reflect.Value
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := IntegerType.Load("", raw, false)
		if err != nil || target.OverflowInt(i.(int64)) {
			return zero, false
		}
		src = reflect.ValueOf(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := IntegerType.Load("", raw, false)
		if err != nil || i.(int64) < 0 || target.OverflowUint(uint64(i.(int64))) {
			return zero, false
		}
		src = reflect.ValueOf(i)
	case reflect.Float32, reflect.Float64:
		f, err := FloatType.Load("", raw, false)
		if err != nil || target.OverflowFloat(f.(float64)) {
			return zero, false
		}
		src = reflect.ValueOf(f)
	case reflect.String:
		str, ok := raw.(string)
		if !ok {
			return zero, false
		}
		src = reflect.ValueOf(str)
	default:
		return zero, false
	}
	v, ok := src.Convert(t).Interface().(T)
	return v, ok
}

func (c literalCodec[T]) Dump(v any, _ bool) (any, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	return nil, dumpError(c, v)
}

// unionCodec tries each candidate in order.
type unionCodec struct {
	candidates []Codec
}

// UnionType returns a codec loading a value with the first candidate that
// accepts it.
func UnionType(candidates ...Codec) Codec {
	return unionCodec{candidates: candidates}
}

func (c unionCodec) Kind() string {
	parts := make([]string, len(c.candidates))
	for n, cand := range c.candidates {
		parts[n] = cand.Kind()
	}
	return strings.Join(parts, " | ")
}

func (c unionCodec) Load(path string, raw any, partial bool) (any, error) {
	for _, cand := range c.candidates {
		if v, err := cand.Load(path, raw, partial); err == nil {
			return v, nil
		}
	}
	return nil, typeError(path, c, raw)
}

func (c unionCodec) Dump(v any, native bool) (any, error) {
	for _, cand := range c.candidates {
		if d, ok := cand.(documentCodec); ok {
			doc, isDoc := v.(*Document)
			if !isDoc {
				continue
			}
			target, err := d.target.resolve()
			if err != nil {
				return nil, err
			}
			if doc.schema != target {
				continue
			}
		}
		if res, err := cand.Dump(v, native); err == nil {
			return res, nil
		}
	}
	return nil, dumpError(c, v)
}

// documentCodec loads embedded documents of a schema.
type documentCodec struct {
	target Target
}

// DocumentType returns a codec for embedded documents of target.
func DocumentType(target Target) Codec {
	return documentCodec{target: target}
}

func (c documentCodec) Kind() string {
	return "document " + c.target.targetName()
}

func (c documentCodec) Load(path string, raw any, partial bool) (any, error) {
	s, err := c.target.resolve()
	if err != nil {
		return nil, err
	}
	if doc, ok := raw.(*Document); ok {
		if doc.schema != s {
			return nil, typeError(path, c, raw)
		}
		m, err := doc.dump(true)
		if err != nil {
			return nil, err
		}
		raw = m
	}
	m, ok := asMap(raw)
	if !ok {
		return nil, typeError(path, c, raw)
	}
	return s.load(path, m, partial)
}

func (c documentCodec) Dump(v any, native bool) (any, error) {
	doc, ok := v.(*Document)
	if !ok {
		return nil, dumpError(c, v)
	}
	return doc.dump(native)
}

// listCodec loads arrays element by element.
type listCodec struct {
	elem Codec
}

// ListType returns a codec for arrays of elem.
func ListType(elem Codec) Codec {
	return listCodec{elem: elem}
}

func (c listCodec) Kind() string { return "list of " + c.elem.Kind() }

func (c listCodec) Load(path string, raw any, partial bool) (any, error) {
	items, ok := asList(raw)
	if !ok {
		return nil, typeError(path, c, raw)
	}
	res := make([]any, len(items))
	var errs []error
	for n, item := range items {
		v, err := c.elem.Load(joinPath(path, strconv.Itoa(n)), item, partial)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res[n] = v
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	return res, nil
}

func (c listCodec) Dump(v any, native bool) (any, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, dumpError(c, v)
	}
	res := make([]any, len(items))
	for n, item := range items {
		d, err := c.elem.Dump(item, native)
		if err != nil {
			return nil, err
		}
		res[n] = d
	}
	return res, nil
}

// asMap accepts the document representations produced by drivers and JSON
// decoders.
func asMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case bson.M:
		return map[string]any(m), true
	case bson.D:
		res := make(map[string]any, len(m))
		for _, e := range m {
			res[e.Key] = e.Value
		}
		return res, true
	default:
		return nil, false
	}
}

// asList accepts any slice or array except binary data.
func asList(raw any) ([]any, bool) {
	switch l := raw.(type) {
	case []any:
		return l, true
	case bson.A:
		return []any(l), true
	case nil, []byte, bson.D:
		return nil, false
	}
	v := reflect.ValueOf(raw)
	if k := v.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, false
	}
	if v.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	res := make([]any, v.Len())
	for n := range res {
		res[n] = v.Index(n).Interface()
	}
	return res, true
}

// normalize deep copies a document, turning driver containers into plain
// maps and slices.
func normalize(m map[string]any) map[string]any {
	res := make(map[string]any, len(m))
	for k, v := range m {
		res[k] = normalizeValue(v)
	}
	return res
}

func normalizeValue(v any) any {
	if m, ok := asMap(v); ok {
		return normalize(m)
	}
	switch l := v.(type) {
	case []any, bson.A:
		items, _ := asList(l)
		res := make([]any, len(items))
		for n, item := range items {
			res[n] = normalizeValue(item)
		}
		return res
	}
	return v
}
