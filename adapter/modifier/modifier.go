// Package modifier contains a [domain.Modifier] implementation to apply native
// update documents to normalized documents.
package modifier

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"math/big"
	"regexp"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrMixedOperators is returned when user provides an update query with
	// mixed use of normal fields and dollar fields.
	ErrMixedOperators = errors.New("cannot mix modifiers and normal fields")
	// ErrNonObject is returned when a modifier value passed by user is not
	// an object.
	ErrNonObject = errors.New("modifier value must be an object")
	// ErrInvalidPushField is returned when user passes some field other
	// than $each, $slice and $position when using $push modifier.
	ErrInvalidPushField = errors.New("can only use $slice and $position in conjunction with $each when $push to array")
	// ErrInvalidAddToSetField is returned when user passes some field other
	// than $each when using $addToSet modifier.
	ErrInvalidAddToSetField = errors.New("cannot use another field in conjunction with $each")
)

// ErrModFieldType is returned when a modification function runs on a document
// field of a type that is not accepted.
type ErrModFieldType struct {
	Mod    string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModFieldType) Error() string {
	return fmt.Sprintf("%s expects %s field, got %T", e.Mod, e.Want, e.Actual)
}

// ErrModArgType is returned when a modification function is called with an
// argument of a type that is not accepted.
type ErrModArgType struct {
	Mod    string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModArgType) Error() string {
	return fmt.Sprintf("%s expects %s arg, got %T", e.Mod, e.Want, e.Actual)
}

// ErrUnknownModifier is returned when the user specifies a modification query
// with a modification procedure that is not known by the current implementation
// of [Modifier].
type ErrUnknownModifier struct {
	Name string
}

// Error implements [error].
func (e ErrUnknownModifier) Error() string {
	return fmt.Sprintf("unknown modifier %q", e.Name)
}

type modFunc func(data.M, []string, any) error

type pushProps struct {
	each     []any
	slice    *int64
	position *int64
}

// Modifier implements [domain.Modifier].
type Modifier struct {
	comp           domain.Comparer
	fieldNavigator domain.FieldNavigator
	matcher        domain.Matcher
	timeGetter     domain.TimeGetter
	mods           map[string]modFunc
}

// NewModifier returns a new implementation of [domain.Modifier].
func NewModifier(options ...Option) domain.Modifier {
	m := &Modifier{
		comp:           comparer.NewComparer(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
		timeGetter:     timegetter.NewTimeGetter(),
	}
	for _, option := range options {
		option(m)
	}
	if m.matcher == nil {
		m.matcher = matcher.NewMatcher(
			matcher.WithComparer(m.comp),
			matcher.WithFieldNavigator(m.fieldNavigator),
		)
	}

	m.mods = map[string]modFunc{
		"$set":         m.set,
		"$setOnInsert": m.setOnInsert,
		"$unset":       m.unset,
		"$inc":         m.inc,
		"$mul":         m.mul,
		"$push":        m.push,
		"$addToSet":    m.addToSet,
		"$pop":         m.pop,
		"$pull":        m.pull,
		"$max":         m.max,
		"$min":         m.min,
		"$rename":      m.rename,
		"$currentDate": m.currentDate,
	}

	return m
}

// Modify implements [domain.Modifier]. $setOnInsert is only applied by
// [Modifier.Upsert].
func (m *Modifier) Modify(obj map[string]any, mod map[string]any) (map[string]any, error) {
	return m.modify(obj, mod, false)
}

// Upsert implements [domain.Modifier].
func (m *Modifier) Upsert(filter map[string]any, mod map[string]any) (map[string]any, error) {
	base := make(data.M)
	if err := m.seed(base, filter); err != nil {
		return nil, err
	}
	return m.modify(base, mod, true)
}

func (m *Modifier) modify(obj data.M, mod data.M, insert bool) (data.M, error) {
	modQry, replace, err := m.modQuery(mod)
	if err != nil {
		return nil, err
	}

	if replace {
		return m.replaceMod(obj, modQry)
	}

	return m.dollarMod(obj, modQry, insert)
}

func (m *Modifier) modQuery(mod data.M) (data.M, bool, error) {
	query, err := data.Document(mod)
	if err != nil {
		return nil, false, err
	}
	dollarFields := 0
	for k := range query {
		if strings.HasPrefix(k, "$") {
			dollarFields++
		}
	}
	if dollarFields != 0 && dollarFields != len(query) {
		return nil, false, ErrMixedOperators
	}
	return query, dollarFields == 0, nil
}

func (m *Modifier) checkID(obj data.M, newDoc data.M) error {
	oldID, had := obj[domain.IDKey]
	if !had {
		return nil
	}
	newID, has := newDoc[domain.IDKey]
	if !has {
		return domain.ErrCannotModifyID
	}
	c, err := m.comp.Compare(oldID, newID)
	if err != nil {
		return err
	}
	if c != 0 {
		return domain.ErrCannotModifyID
	}
	return nil
}

func (m *Modifier) replaceMod(obj data.M, qry data.M) (data.M, error) {
	newDoc := data.Clone(qry).(data.M)
	if id, ok := obj[domain.IDKey]; ok {
		if _, ok := newDoc[domain.IDKey]; !ok {
			newDoc[domain.IDKey] = id
		}
	}
	if err := m.checkID(obj, newDoc); err != nil {
		return nil, err
	}
	return newDoc, nil
}

func (m *Modifier) dollarMod(obj data.M, qry data.M, insert bool) (data.M, error) {

	for modName, arg := range qry {
		if _, ok := m.mods[modName]; !ok {
			return nil, ErrUnknownModifier{Name: modName}
		}
		if _, ok := arg.(data.M); !ok {
			return nil, ErrNonObject
		}
	}

	docCopy := data.Clone(obj).(data.M)

	for _, modName := range slices.Sorted(maps.Keys(qry)) {
		if modName == "$setOnInsert" && !insert {
			continue
		}
		fn := m.mods[modName]
		args := qry[modName].(data.M)
		for _, key := range slices.Sorted(maps.Keys(args)) {
			addr, err := m.fieldNavigator.GetAddress(key)
			if err != nil {
				return nil, err
			}
			if err := fn(docCopy, addr, args[key]); err != nil {
				return nil, fmt.Errorf("modifying field %q: %w", key, err)
			}
		}
	}

	if err := m.checkID(obj, docCopy); err != nil {
		return nil, err
	}

	return docCopy, nil
}

// seed copies the equality clauses of filter into doc.
func (m *Modifier) seed(doc data.M, filter data.M) error {
	filter, err := data.Document(filter)
	if err != nil {
		return err
	}
	for _, key := range slices.Sorted(maps.Keys(filter)) {
		value := filter[key]
		if key == "$and" {
			subs, _ := value.([]any)
			for _, sub := range subs {
				if subDoc, ok := sub.(data.M); ok {
					if err := m.seed(doc, subDoc); err != nil {
						return err
					}
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			continue
		}

		if ops, ok := value.(data.M); ok && m.isOperatorDoc(ops) {
			eq, ok := ops["$eq"]
			if !ok {
				continue
			}
			value = eq
		}
		switch value.(type) {
		case bson.Regex, *regexp.Regexp:
			continue
		}

		addr, err := m.fieldNavigator.GetAddress(key)
		if err != nil {
			return err
		}
		if err := m.set(doc, addr, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Modifier) isOperatorDoc(d data.M) bool {
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return len(d) > 0
}

// exists reports whether addr points to a set value in obj.
func (m *Modifier) exists(obj data.M, addr []string) (bool, error) {
	fields, _, err := m.fieldNavigator.GetField(obj, addr...)
	if err != nil {
		return false, err
	}
	for _, field := range fields {
		if _, defined := field.Get(); defined {
			return true, nil
		}
	}
	return false, nil
}

func (m *Modifier) set(obj data.M, addr []string, arg any) error {
	fields, err := m.fieldNavigator.EnsureField(obj, addr...)
	if err != nil {
		return err
	}
	for _, field := range fields {
		field.Set(data.Clone(arg))
	}
	return nil
}

func (m *Modifier) setOnInsert(obj data.M, addr []string, arg any) error {
	return m.set(obj, addr, arg)
}

func (m *Modifier) unset(obj data.M, addr []string, _ any) error {
	fields, _, err := m.fieldNavigator.GetField(obj, addr...)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if _, defined := field.Get(); defined {
			field.Unset()
		}
	}
	return nil
}

func (m *Modifier) rename(obj data.M, addr []string, arg any) error {
	target, ok := arg.(string)
	if !ok {
		return ErrModArgType{Mod: "$rename", Want: "string", Actual: arg}
	}
	targetAddr, err := m.fieldNavigator.GetAddress(target)
	if err != nil {
		return err
	}
	if slices.Equal(addr, targetAddr) {
		return ErrModArgType{Mod: "$rename", Want: "different field", Actual: arg}
	}
	fields, expanded, err := m.fieldNavigator.GetField(obj, addr...)
	if err != nil {
		return err
	}
	if expanded {
		return ErrModFieldType{Mod: "$rename", Want: "non-array", Actual: []any{}}
	}
	value, defined := fields[0].Get()
	if !defined {
		return nil
	}
	fields[0].Unset()
	return m.set(obj, targetAddr, value)
}

func (m *Modifier) currentDate(obj data.M, addr []string, arg any) error {
	now := m.timeGetter.GetTime()
	var value any = now
	switch t := arg.(type) {
	case bool:
	case data.M:
		switch t["$type"] {
		case "date":
		case "timestamp":
			value = bson.Timestamp{T: uint32(now.Unix()), I: 1}
		default:
			return ErrModArgType{Mod: "$currentDate", Want: `"date" or "timestamp" $type`, Actual: t["$type"]}
		}
	default:
		return ErrModArgType{Mod: "$currentDate", Want: "boolean or document", Actual: arg}
	}
	return m.set(obj, addr, value)
}

func (m *Modifier) inc(obj data.M, addr []string, v any) error {
	return m.arith("$inc", obj, addr, v, v, (*big.Float).Add, func(a, b int64) (int64, bool) {
		s := a + b
		return s, (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0)
	})
}

func (m *Modifier) mul(obj data.M, addr []string, v any) error {
	var zero any = int64(0)
	switch v.(type) {
	case float64:
		zero = 0.0
	case bson.Decimal128:
		zero = bson.NewDecimal128(0x3040000000000000, 0)
	}
	return m.arith("$mul", obj, addr, v, zero, (*big.Float).Mul, func(a, b int64) (int64, bool) {
		if a == 0 || b == 0 {
			return 0, false
		}
		p := a * b
		overflow := p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64)
		return p, overflow
	})
}

// arith applies a numeric operation to each addressed field. Missing fields are
// set to missing. int64 results overflowing fall back to float64, and any
// Decimal128 operand makes the result a Decimal128.
func (m *Modifier) arith(
	mod string, obj data.M, addr []string, arg, missing any,
	bigOp func(z, x, y *big.Float) *big.Float,
	intOp func(a, b int64) (res int64, overflow bool),
) error {
	if !m.isNumber(arg) {
		return ErrModArgType{Mod: mod, Want: "number", Actual: arg}
	}
	existed, err := m.exists(obj, addr)
	if err != nil {
		return err
	}
	fields, err := m.fieldNavigator.EnsureField(obj, addr...)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if !existed {
			field.Set(missing)
			continue
		}
		value, _ := field.Get()
		if !m.isNumber(value) {
			return ErrModFieldType{Mod: mod, Want: "number", Actual: value}
		}
		res, err := m.compute(value, arg, bigOp, intOp)
		if err != nil {
			return err
		}
		field.Set(res)
	}
	return nil
}

func (m *Modifier) compute(a, b any, bigOp func(z, x, y *big.Float) *big.Float, intOp func(a, b int64) (int64, bool)) (any, error) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		if res, overflow := intOp(ai, bi); !overflow {
			return res, nil
		}
	}

	_, aDec := a.(bson.Decimal128)
	_, bDec := b.(bson.Decimal128)
	if aDec || bDec {
		x, err := m.bigFloat(a)
		if err != nil {
			return nil, err
		}
		y, err := m.bigFloat(b)
		if err != nil {
			return nil, err
		}
		res := bigOp(new(big.Float).SetPrec(113), x, y)
		return bson.ParseDecimal128(res.Text('g', 34))
	}

	x, _ := m.bigFloat(a)
	y, _ := m.bigFloat(b)
	res, _ := bigOp(new(big.Float), x, y).Float64()
	return res, nil
}

func (m *Modifier) isNumber(v any) bool {
	switch v.(type) {
	case int64, float64, bson.Decimal128:
		return true
	default:
		return false
	}
}

func (m *Modifier) bigFloat(v any) (*big.Float, error) {
	switch n := v.(type) {
	case int64:
		return new(big.Float).SetInt64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("cannot operate on %v", n)
		}
		return big.NewFloat(n), nil
	case bson.Decimal128:
		f, _, err := big.ParseFloat(n.String(), 10, 113, big.ToNearestEven)
		if err != nil {
			return nil, fmt.Errorf("cannot operate on %s: %w", n, err)
		}
		return f, nil
	default:
		return nil, ErrModFieldType{Mod: "arithmetic", Want: "number", Actual: v}
	}
}

func (m *Modifier) asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

// arrayFields returns the addressed arrays, creating an empty one for unset
// fields when ensure is true.
func (m *Modifier) arrayFields(mod string, obj data.M, addr []string, ensure bool) ([]domain.GetSetter, error) {
	var fields []domain.GetSetter
	var err error
	if ensure {
		var existed bool
		if existed, err = m.exists(obj, addr); err != nil {
			return nil, err
		}
		if fields, err = m.fieldNavigator.EnsureField(obj, addr...); err != nil {
			return nil, err
		}
		if !existed {
			for _, field := range fields {
				field.Set([]any{})
			}
		}
	} else if fields, _, err = m.fieldNavigator.GetField(obj, addr...); err != nil {
		return nil, err
	}

	res := make([]domain.GetSetter, 0, len(fields))
	for _, field := range fields {
		value, defined := field.Get()
		if !defined {
			continue
		}
		if _, ok := value.([]any); !ok {
			return nil, ErrModFieldType{Mod: mod, Want: "array", Actual: value}
		}
		res = append(res, field)
	}
	return res, nil
}

func (m *Modifier) push(obj data.M, addr []string, v any) error {
	props, err := m.pushProperties(v)
	if err != nil {
		return err
	}

	fields, err := m.arrayFields("$push", obj, addr, true)
	if err != nil {
		return err
	}
	for _, field := range fields {
		value, _ := field.Get()
		array := slices.Clone(value.([]any))

		pos := int64(len(array))
		if props.position != nil {
			pos = *props.position
			if pos < 0 {
				pos = max(0, int64(len(array))+pos)
			}
			pos = min(pos, int64(len(array)))
		}
		array = slices.Insert(array, int(pos), data.Clone(props.each).([]any)...)

		if props.slice != nil {
			if s := *props.slice; s >= 0 {
				array = array[:min(int(s), len(array))]
			} else {
				array = array[len(array)-min(int(-s), len(array)):]
			}
		}

		field.Set(array)
	}
	return nil
}

func (m *Modifier) pushProperties(v any) (pushProps, error) {
	d, ok := v.(data.M)
	if !ok {
		return pushProps{each: []any{v}}, nil
	}
	each, hasEach := d["$each"]
	if !hasEach {
		for k := range d {
			if strings.HasPrefix(k, "$") {
				return pushProps{}, ErrInvalidPushField
			}
		}
		return pushProps{each: []any{v}}, nil
	}

	var props pushProps
	if props.each, ok = each.([]any); !ok {
		return props, ErrModArgType{Mod: "$each", Want: "array", Actual: each}
	}
	for k, arg := range d {
		switch k {
		case "$each":
		case "$slice", "$position":
			n, ok := m.asInt(arg)
			if !ok {
				return props, ErrModArgType{Mod: k, Want: "integer", Actual: arg}
			}
			if k == "$slice" {
				props.slice = &n
			} else {
				props.position = &n
			}
		default:
			return props, ErrInvalidPushField
		}
	}
	return props, nil
}

func (m *Modifier) addToSet(obj data.M, addr []string, v any) error {
	values := []any{v}
	if d, ok := v.(data.M); ok {
		if each, hasEach := d["$each"]; hasEach {
			if len(d) > 1 {
				return ErrInvalidAddToSetField
			}
			if values, ok = each.([]any); !ok {
				return ErrModArgType{Mod: "$each", Want: "array", Actual: each}
			}
		}
	}

	fields, err := m.arrayFields("$addToSet", obj, addr, true)
	if err != nil {
		return err
	}

	for _, field := range fields {
		value, _ := field.Get()
		array := slices.Clone(value.([]any))

		for _, value := range values {
			shouldAdd := true
			for _, item := range array {
				c, err := m.comp.Compare(value, item)
				if err != nil {
					return err
				}
				if c == 0 {
					shouldAdd = false
					break
				}
			}
			if shouldAdd {
				array = append(array, data.Clone(value))
			}
		}
		field.Set(array)
	}

	return nil
}

func (m *Modifier) pop(obj data.M, addr []string, v any) error {
	num, ok := m.asInt(v)
	if !ok || (num != 1 && num != -1) {
		return ErrModArgType{Mod: "$pop", Want: "1 or -1", Actual: v}
	}

	fields, err := m.arrayFields("$pop", obj, addr, false)
	if err != nil {
		return err
	}

	for _, field := range fields {
		value, _ := field.Get()
		l := value.([]any)
		if len(l) == 0 {
			continue
		}
		if num < 0 {
			field.Set(slices.Clone(l[1:]))
		} else {
			field.Set(slices.Clone(l[:len(l)-1]))
		}
	}
	return nil
}

func (m *Modifier) pull(obj data.M, addr []string, v any) error {
	fields, err := m.arrayFields("$pull", obj, addr, false)
	if err != nil {
		return err
	}

	for _, field := range fields {
		value, _ := field.Get()
		l := value.([]any)

		res := make([]any, 0, len(l))
		for _, item := range l {
			matches, err := m.matcher.Match(item, v)
			if err != nil {
				return err
			}
			if !matches {
				res = append(res, item)
			}
		}
		field.Set(res)

	}
	return nil
}

func (m *Modifier) max(obj data.M, addr []string, v any) error {
	return m.bound(obj, addr, v, func(c int) bool { return c < 0 })
}

func (m *Modifier) min(obj data.M, addr []string, v any) error {
	return m.bound(obj, addr, v, func(c int) bool { return c > 0 })
}

// bound sets each addressed field to v when it is missing or when
// replace(compare(field, v)) is true.
func (m *Modifier) bound(obj data.M, addr []string, v any, replace func(int) bool) error {
	existed, err := m.exists(obj, addr)
	if err != nil {
		return err
	}
	fields, err := m.fieldNavigator.EnsureField(obj, addr...)
	if err != nil {
		return err
	}

	for _, field := range fields {
		if !existed {
			field.Set(data.Clone(v))
			continue
		}
		value, _ := field.Get()
		comp, err := m.comp.Compare(value, v)
		if err != nil {
			return err
		}
		if replace(comp) {
			field.Set(data.Clone(v))
		}
	}

	return nil
}
