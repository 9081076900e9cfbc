// Package comparer contains the default [domain.Comparer] implementation. It
// orders values the way the document database orders BSON types: unset values
// first, then null, numbers, strings, documents, arrays, binary data, object
// ids, booleans, dates, timestamps and regular expressions.
package comparer

import (
	"bytes"
	"cmp"
	"fmt"
	"maps"
	"math"
	"math/big"
	"regexp"
	"slices"
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type rank int

const (
	rankUnknown rank = iota
	rankMinKey
	rankNull
	rankNumber
	rankString
	rankDocument
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankTimestamp
	rankRegex
	rankMaxKey
)

// Comparer implements domain.Comparer.
type Comparer struct{}

// NewComparer returns a new implementation of domain.Comparer.
func NewComparer() domain.Comparer {
	return &Comparer{}
}

// Comparable implements domain.Comparer. Range operators only compare values
// of the same scalar type bracket.
func (c *Comparer) Comparable(a, b any) bool {
	if !c.isSet(a) || !c.isSet(b) {
		return false
	}
	ra, rb := c.rank(c.getVal(a)), c.rank(c.getVal(b))
	if ra != rb {
		return false
	}
	switch ra {
	case rankNumber, rankString, rankBinary, rankObjectID, rankBool, rankDate, rankTimestamp:
		return true
	default:
		return false
	}
}

// Compare implements domain.Comparer.
func (c *Comparer) Compare(a any, b any) (int, error) {

	// [domain.Getter]. Unset values are lower than anything else.
	if !c.isSet(a) {
		if !c.isSet(b) {
			return 0, nil
		}
		return -1, nil
	}
	if !c.isSet(b) {
		return 1, nil
	}

	a, b = c.getVal(a), c.getVal(b)

	ra, rb := c.rank(a), c.rank(b)
	if ra == rankUnknown || rb == rankUnknown {
		return 0, fmt.Errorf("cannot compare unexpected types %T and %T", a, b)
	}
	if ra != rb {
		return cmp.Compare(ra, rb), nil
	}

	switch ra {
	case rankNumber:
		return c.compareNumbers(a, b), nil
	case rankString:
		return cmp.Compare(a.(string), b.(string)), nil
	case rankDocument:
		return c.compareDoc(c.asDoc(a), c.asDoc(b))
	case rankArray:
		return c.compareArray(c.asArray(a), c.asArray(b))
	case rankBinary:
		return c.compareBinary(a, b), nil
	case rankObjectID:
		oa, ob := a.(bson.ObjectID), b.(bson.ObjectID)
		return bytes.Compare(oa[:], ob[:]), nil
	case rankBool:
		return c.compareBool(a.(bool), b.(bool)), nil
	case rankDate:
		return a.(time.Time).Compare(b.(time.Time)), nil
	case rankTimestamp:
		ta, tb := a.(bson.Timestamp), b.(bson.Timestamp)
		if comp := cmp.Compare(ta.T, tb.T); comp != 0 {
			return comp, nil
		}
		return cmp.Compare(ta.I, tb.I), nil
	case rankRegex:
		pa, oa := c.regex(a)
		pb, ob := c.regex(b)
		if comp := cmp.Compare(pa, pb); comp != 0 {
			return comp, nil
		}
		return cmp.Compare(oa, ob), nil
	default:
		// MinKey, MaxKey and null are equal to themselves
		return 0, nil
	}
}

func (c *Comparer) rank(v any) rank {
	switch v.(type) {
	case nil:
		return rankNull
	case bson.MinKey:
		return rankMinKey
	case bson.MaxKey:
		return rankMaxKey
	case string:
		return rankString
	case map[string]any, bson.M, bson.D:
		return rankDocument
	case []any, bson.A:
		return rankArray
	case []byte, bson.Binary:
		return rankBinary
	case bson.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case time.Time:
		return rankDate
	case bson.Timestamp:
		return rankTimestamp
	case bson.Regex, *regexp.Regexp:
		return rankRegex
	}
	if _, ok := c.asNumber(v); ok {
		return rankNumber
	}
	return rankUnknown
}

func (c *Comparer) compareNumbers(a, b any) int {
	na, _ := c.asNumber(a)
	nb, _ := c.asNumber(b)
	// NaN sorts before every other number
	switch {
	case na == nil && nb == nil:
		return 0
	case na == nil:
		return -1
	case nb == nil:
		return 1
	}
	return na.Cmp(nb)
}

func (c *Comparer) compareArray(a, b []any) (int, error) {
	minLength := min(len(a), len(b))

	var comp int
	var err error
	for i := range minLength {
		comp, err = c.Compare(a[i], b[i])
		if err != nil {
			return 0, err
		}

		if comp != 0 {
			return comp, nil
		}
	}

	// Common section was identical, longest one wins
	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) compareBool(a, b bool) int {
	if a == b {
		return 0
	}
	if a {
		return 1
	}
	return -1
}

func (c *Comparer) compareBinary(a, b any) int {
	sa, da := c.binary(a)
	sb, db := c.binary(b)
	if comp := cmp.Compare(len(da), len(db)); comp != 0 {
		return comp
	}
	if comp := cmp.Compare(sa, sb); comp != 0 {
		return comp
	}
	return bytes.Compare(da, db)
}

func (c *Comparer) compareDoc(a, b map[string]any) (int, error) {
	aKeys := slices.Sorted(maps.Keys(a))
	bKeys := slices.Sorted(maps.Keys(b))

	var comp int
	var err error
	for i := range min(len(aKeys), len(bKeys)) {
		if comp = cmp.Compare(aKeys[i], bKeys[i]); comp != 0 {
			return comp, nil
		}
		comp, err = c.Compare(a[aKeys[i]], b[bKeys[i]])
		if err != nil {
			return 0, err
		}

		if comp != 0 {
			return comp, nil
		}
	}

	return cmp.Compare(len(a), len(b)), nil
}

func (c *Comparer) asNumber(v any) (*big.Float, bool) {
	r := big.NewFloat(0)
	switch n := v.(type) {
	case int:
		r.SetInt64(int64(n))
	case int8:
		r.SetInt64(int64(n))
	case int16:
		r.SetInt64(int64(n))
	case int32:
		r.SetInt64(int64(n))
	case int64:
		r.SetInt64(n)
	case uint:
		r.SetUint64(uint64(n))
	case uint8:
		r.SetUint64(uint64(n))
	case uint16:
		r.SetUint64(uint64(n))
	case uint32:
		r.SetUint64(uint64(n))
	case uint64:
		r.SetUint64(n)
	case float32:
		return c.fromFloat(float64(n)), true
	case float64:
		return c.fromFloat(n), true
	case bson.Decimal128:
		f, _, err := big.ParseFloat(n.String(), 10, 113, big.ToNearestEven)
		if err != nil {
			// NaN or a malformed value
			return nil, true
		}
		return f, true
	default:
		return nil, false
	}
	return r, true
}

// fromFloat returns nil for NaN, which big.Float cannot represent.
func (c *Comparer) fromFloat(f float64) *big.Float {
	if math.IsNaN(f) {
		return nil
	}
	return big.NewFloat(f)
}

func (c *Comparer) asDoc(v any) map[string]any {
	switch d := v.(type) {
	case bson.M:
		return d
	case bson.D:
		res := make(map[string]any, len(d))
		for _, e := range d {
			res[e.Key] = e.Value
		}
		return res
	default:
		return v.(map[string]any)
	}
}

func (c *Comparer) asArray(v any) []any {
	if a, ok := v.(bson.A); ok {
		return a
	}
	return v.([]any)
}

func (c *Comparer) binary(v any) (byte, []byte) {
	if b, ok := v.(bson.Binary); ok {
		return b.Subtype, b.Data
	}
	return 0, v.([]byte)
}

func (c *Comparer) regex(v any) (string, string) {
	if r, ok := v.(bson.Regex); ok {
		return r.Pattern, r.Options
	}
	return v.(*regexp.Regexp).String(), ""
}

func (c *Comparer) isSet(v any) bool {
	if g, ok := v.(domain.Getter); ok {
		_, isSet := g.Get()
		return isSet
	}
	return true
}

func (c *Comparer) getVal(v any) any {
	if g, ok := v.(domain.Getter); ok {
		val, _ := g.Get()
		return val
	}
	return v
}
