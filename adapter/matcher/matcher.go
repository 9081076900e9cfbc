// Package matcher contains the default implementation of [domain.Matcher]
// evaluating native query documents over normalized documents.
package matcher

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// DefaultRegexCacheSize is the number of compiled patterns kept by a Matcher.
const DefaultRegexCacheSize = 512

var (
	// ErrMixedOperators is returned when user provides a query with mixed
	// use of normal fields and operators.
	ErrMixedOperators = errors.New("cannot mix operators and normal fields")
	// ErrOptionsWithoutRegex is returned when $options is used without
	// $regex.
	ErrOptionsWithoutRegex = errors.New("$options needs a $regex")
)

// ErrUnknownOperator is returned when user provides an unknown dollar field.
type ErrUnknownOperator struct {
	Operator string
}

// Error implements [error].
func (e ErrUnknownOperator) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// ErrCompArgType is returned when a comparison operator is called with an
// argument of invalid type.
type ErrCompArgType struct {
	Comp   string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrCompArgType) Error() string {
	return fmt.Sprintf(
		"%s value should be of type %s, got %T",
		e.Comp, e.Want, e.Actual,
	)
}

// Matcher implements [domain.Matcher].
type Matcher struct {
	comparer       domain.Comparer
	fieldNavigator domain.FieldNavigator
	regexCacheSize int
	regexes        *lru.TwoQueueCache[string, *regexp.Regexp]
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(options ...Option) domain.Matcher {

	m := &Matcher{
		comparer:       comparer.NewComparer(),
		fieldNavigator: fieldnavigator.NewFieldNavigator(),
		regexCacheSize: DefaultRegexCacheSize,
	}

	for _, option := range options {
		option(m)
	}

	if m.regexCacheSize > 0 {
		// only fails for non-positive sizes
		m.regexes, _ = lru.New2Q[string, *regexp.Regexp](m.regexCacheSize)
	}

	return m
}

// Match implements [domain.Matcher]. Documents are matched against field
// queries. Any other value, or a query made only of operators, is matched as a
// single field, which is how array items are matched by $pull and $elemMatch.
func (m *Matcher) Match(value any, query any) (bool, error) {
	if query == nil {
		return true, nil
	}
	qry, err := data.Normalize(query)
	if err != nil {
		return false, err
	}

	if q, ok := qry.(data.M); ok && !m.isOperatorDoc(q) {
		doc, ok := value.(data.M)
		if !ok {
			return false, nil
		}
		return m.matchDoc(doc, q)
	}

	values := []domain.GetSetter{fieldnavigator.Value(value)}
	return m.matchField(values, false, qry)
}

// isOperatorDoc reports whether every key of q is a field operator.
func (m *Matcher) isOperatorDoc(q data.M) bool {
	if len(q) == 0 {
		return false
	}
	for k := range q {
		if !strings.HasPrefix(k, "$") || m.isLogicOp(k) {
			return false
		}
	}
	return true
}

// isLogicOp reports whether k is an operator applied to the whole document.
func (m *Matcher) isLogicOp(k string) bool {
	return k == "$and" || k == "$or" || k == "$nor" || k == "$expr"
}

func (m *Matcher) matchDoc(doc data.M, query data.M) (bool, error) {
	for _, key := range slices.Sorted(maps.Keys(query)) {
		value := query[key]
		var matches bool
		var err error
		switch key {
		case "$and":
			matches, err = m.matchLogicOp(doc, key, value, true)
		case "$or":
			matches, err = m.matchLogicOp(doc, key, value, false)
		case "$nor":
			matches, err = m.matchLogicOp(doc, key, value, false)
			matches = !matches
		case "$expr":
			matches, err = m.matchExpr(doc, value)
		default:
			if strings.HasPrefix(key, "$") {
				return false, ErrUnknownOperator{Operator: key}
			}
			matches, err = m.matchRule(doc, key, value)
		}
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

// matchLogicOp returns whether all (or any, when all is false) of the
// subqueries in value match doc.
func (m *Matcher) matchLogicOp(doc data.M, name string, value any, all bool) (bool, error) {
	subs, ok := value.([]any)
	if !ok || len(subs) == 0 {
		return false, ErrCompArgType{Comp: name, Want: "non-empty list", Actual: value}
	}
	for _, sub := range subs {
		q, ok := sub.(data.M)
		if !ok {
			return false, ErrCompArgType{Comp: name, Want: "list of documents", Actual: sub}
		}
		matches, err := m.matchDoc(doc, q)
		if err != nil {
			return false, err
		}
		if matches != all {
			return matches, nil
		}
	}
	return all, nil
}

func (m *Matcher) matchRule(doc data.M, field string, cond any) (bool, error) {
	addr, err := m.fieldNavigator.GetAddress(field)
	if err != nil {
		return false, err
	}
	values, expanded, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return false, err
	}
	return m.matchField(values, expanded, cond)
}

func (m *Matcher) matchField(values []domain.GetSetter, expanded bool, cond any) (bool, error) {
	ops, ok := cond.(data.M)
	if !ok || len(ops) == 0 {
		return m.eq(values, cond)
	}

	dollar := 0
	for k := range ops {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	if dollar == 0 {
		return m.eq(values, cond)
	}
	if dollar != len(ops) {
		return false, ErrMixedOperators
	}

	for _, op := range slices.Sorted(maps.Keys(ops)) {
		matches, err := m.matchOp(values, expanded, op, ops[op], ops)
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) matchOp(values []domain.GetSetter, expanded bool, op string, arg any, ops data.M) (bool, error) {
	switch op {
	case "$eq":
		return m.eq(values, arg)
	case "$ne":
		matches, err := m.eq(values, arg)
		return !matches && err == nil, err
	case "$lt":
		return m.matchList(values, arg, func(c int) bool { return c < 0 })
	case "$lte":
		return m.matchList(values, arg, func(c int) bool { return c <= 0 })
	case "$gt":
		return m.matchList(values, arg, func(c int) bool { return c > 0 })
	case "$gte":
		return m.matchList(values, arg, func(c int) bool { return c >= 0 })
	case "$in":
		return m.in(values, op, arg)
	case "$nin":
		matches, err := m.in(values, op, arg)
		return !matches && err == nil, err
	case "$all":
		return m.all(values, arg)
	case "$exists":
		return m.exists(values, arg), nil
	case "$regex":
		rgx, err := m.makeRegex(arg, ops["$options"])
		if err != nil {
			return false, err
		}
		return m.regex(values, rgx), nil
	case "$options":
		if _, ok := ops["$regex"]; !ok {
			return false, ErrOptionsWithoutRegex
		}
		return true, nil
	case "$size":
		return m.size(values, arg)
	case "$elemMatch":
		return m.elemMatch(values, arg)
	case "$not":
		return m.not(values, expanded, arg)
	default:
		return false, ErrUnknownOperator{Operator: op}
	}
}

// eq matches a value equal to target, an array holding an item equal to it,
// or, when target is nil, a missing value.
func (m *Matcher) eq(values []domain.GetSetter, target any) (bool, error) {
	if rgx, ok, err := m.asRegex(target); ok || err != nil {
		return err == nil && m.regex(values, rgx), err
	}
	for _, value := range values {
		actual, ok := value.Get()
		if !ok {
			if target == nil {
				return true, nil
			}
			continue
		}
		if matches, err := m.equals(actual, target); err != nil || matches {
			return matches, err
		}
		arr, ok := actual.([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			if matches, err := m.equals(item, target); err != nil || matches {
				return matches, err
			}
		}
	}
	return false, nil
}

func (m *Matcher) equals(a, b any) (bool, error) {
	c, err := m.comparer.Compare(a, b)
	if err != nil {
		return false, err
	}
	return c == 0, nil
}

// matchList checks values, and the items of array values, against arg with
// a range comparison. Only comparable types are checked.
func (m *Matcher) matchList(values []domain.GetSetter, arg any, test func(int) bool) (bool, error) {
	check := func(v any) (bool, error) {
		if !m.comparer.Comparable(v, arg) {
			return false, nil
		}
		c, err := m.comparer.Compare(v, arg)
		if err != nil {
			return false, err
		}
		return test(c), nil
	}

	for _, value := range values {
		actual, ok := value.Get()
		if !ok {
			continue
		}
		if matches, err := check(actual); err != nil || matches {
			return matches, err
		}
		arr, ok := actual.([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			if matches, err := check(item); err != nil || matches {
				return matches, err
			}
		}
	}
	return false, nil
}

func (m *Matcher) in(values []domain.GetSetter, op string, arg any) (bool, error) {
	list, ok := arg.([]any)
	if !ok {
		return false, ErrCompArgType{Comp: op, Want: "list", Actual: arg}
	}
	for _, item := range list {
		if matches, err := m.eq(values, item); err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) all(values []domain.GetSetter, arg any) (bool, error) {
	list, ok := arg.([]any)
	if !ok {
		return false, ErrCompArgType{Comp: "$all", Want: "list", Actual: arg}
	}
	if len(list) == 0 {
		return false, nil
	}
	for _, item := range list {
		if matches, err := m.eq(values, item); err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) exists(values []domain.GetSetter, arg any) bool {
	exists := false
	for _, value := range values {
		if _, ok := value.Get(); ok {
			exists = true
			break
		}
	}
	return exists == m.isTruthy(arg)
}

func (m *Matcher) isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func (m *Matcher) regex(values []domain.GetSetter, rgx *regexp.Regexp) bool {
	for _, value := range values {
		actual, ok := value.Get()
		if !ok {
			continue
		}
		if str, ok := actual.(string); ok && rgx.MatchString(str) {
			return true
		}
		arr, _ := actual.([]any)
		for _, item := range arr {
			if str, ok := item.(string); ok && rgx.MatchString(str) {
				return true
			}
		}
	}
	return false
}

// asRegex returns the compiled pattern of regular expression values.
func (m *Matcher) asRegex(v any) (*regexp.Regexp, bool, error) {
	switch v.(type) {
	case bson.Regex, *regexp.Regexp:
		rgx, err := m.makeRegex(v, nil)
		return rgx, true, err
	default:
		return nil, false, nil
	}
}

func (m *Matcher) makeRegex(v any, options any) (*regexp.Regexp, error) {
	var pattern, flags string
	switch t := v.(type) {
	case string:
		pattern = t
	case bson.Regex:
		pattern, flags = t.Pattern, t.Options
	case *regexp.Regexp:
		if options == nil {
			return t, nil
		}
		pattern = t.String()
	default:
		return nil, ErrCompArgType{Comp: "$regex", Want: "string or regex", Actual: v}
	}
	if options != nil {
		opts, ok := options.(string)
		if !ok {
			return nil, ErrCompArgType{Comp: "$options", Want: "string", Actual: options}
		}
		flags = opts
	}

	for _, f := range flags {
		if !strings.ContainsRune("ims", f) {
			return nil, fmt.Errorf("unsupported regex option %q", f)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}

	if m.regexes != nil {
		if rgx, ok := m.regexes.Get(pattern); ok {
			return rgx, nil
		}
	}
	rgx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if m.regexes != nil {
		m.regexes.Add(pattern, rgx)
	}
	return rgx, nil
}

func (m *Matcher) size(values []domain.GetSetter, arg any) (bool, error) {
	size, ok := m.asInt(arg)
	if !ok {
		return false, ErrCompArgType{Comp: "$size", Want: "integer", Actual: arg}
	}
	for _, value := range values {
		actual, _ := value.Get()
		if arr, ok := actual.([]any); ok && int64(len(arr)) == size {
			return true, nil
		}
	}
	return false, nil
}

func (m *Matcher) asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true
		}
	}
	return 0, false
}

func (m *Matcher) elemMatch(values []domain.GetSetter, arg any) (bool, error) {
	query, ok := arg.(data.M)
	if !ok {
		return false, ErrCompArgType{Comp: "$elemMatch", Want: "document", Actual: arg}
	}
	operators := m.isOperatorDoc(query)

	for _, value := range values {
		actual, _ := value.Get()
		arr, ok := actual.([]any)
		if !ok {
			continue
		}
		for _, item := range arr {
			var matches bool
			var err error
			if operators {
				gs := []domain.GetSetter{fieldnavigator.Value(item)}
				matches, err = m.matchField(gs, false, query)
			} else if doc, isDoc := item.(data.M); isDoc {
				matches, err = m.matchDoc(doc, query)
			}
			if err != nil || matches {
				return matches, err
			}
		}
	}
	return false, nil
}

func (m *Matcher) not(values []domain.GetSetter, expanded bool, arg any) (bool, error) {
	switch t := arg.(type) {
	case bson.Regex, *regexp.Regexp:
	case data.M:
		if !m.isOperatorDoc(t) {
			return false, ErrCompArgType{Comp: "$not", Want: "operator document", Actual: arg}
		}
	default:
		return false, ErrCompArgType{Comp: "$not", Want: "operator document", Actual: arg}
	}
	matches, err := m.matchField(values, expanded, arg)
	return !matches && err == nil, err
}
