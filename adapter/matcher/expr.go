package matcher

import (
	"errors"
	"math"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
)

// ErrDivideByZero is returned by $divide and $mod with a zero divisor.
var ErrDivideByZero = errors.New("cannot divide by zero")

// matchExpr evaluates an aggregation expression over doc. Documents match
// when the result is truthy.
func (m *Matcher) matchExpr(doc data.M, expr any) (bool, error) {
	res, err := m.evaluate(doc, expr)
	if err != nil {
		return false, err
	}
	return m.isTruthy(res), nil
}

// evaluate supports field paths ("$a.b"), $literal, arithmetic, comparison
// and boolean operators. Missing fields evaluate to nil.
func (m *Matcher) evaluate(doc data.M, expr any) (any, error) {
	switch t := expr.(type) {
	case string:
		if path, ok := strings.CutPrefix(t, "$"); ok {
			return m.lookup(doc, path)
		}
		return t, nil
	case []any:
		res := make([]any, len(t))
		for n, item := range t {
			v, err := m.evaluate(doc, item)
			if err != nil {
				return nil, err
			}
			res[n] = v
		}
		return res, nil
	case data.M:
		if len(t) == 1 {
			for op, arg := range t {
				if strings.HasPrefix(op, "$") {
					return m.evaluateOp(doc, op, arg)
				}
			}
		}
		res := make(data.M, len(t))
		for k, item := range t {
			v, err := m.evaluate(doc, item)
			if err != nil {
				return nil, err
			}
			res[k] = v
		}
		return res, nil
	default:
		return t, nil
	}
}

func (m *Matcher) lookup(doc data.M, path string) (any, error) {
	addr, err := m.fieldNavigator.GetAddress(path)
	if err != nil {
		return nil, err
	}
	values, expanded, err := m.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return nil, err
	}
	if !expanded {
		v, _ := values[0].Get()
		return v, nil
	}
	res := make([]any, 0, len(values))
	for _, value := range values {
		if v, ok := value.Get(); ok {
			res = append(res, v)
		}
	}
	return res, nil
}

func (m *Matcher) evaluateOp(doc data.M, op string, arg any) (any, error) {
	if op == "$literal" {
		return arg, nil
	}
	args, err := m.evaluateArgs(doc, op, arg)
	if err != nil {
		return nil, err
	}
	switch op {
	case "$add", "$multiply":
		return m.fold(op, args)
	case "$subtract", "$divide", "$mod":
		if len(args) != 2 {
			return nil, ErrCompArgType{Comp: op, Want: "two arguments", Actual: arg}
		}
		return m.binary(op, args[0], args[1])
	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		if len(args) != 2 {
			return nil, ErrCompArgType{Comp: op, Want: "two arguments", Actual: arg}
		}
		c, err := m.comparer.Compare(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return compareResult(op, c), nil
	case "$and":
		for _, a := range args {
			if !m.isTruthy(a) {
				return false, nil
			}
		}
		return true, nil
	case "$or":
		for _, a := range args {
			if m.isTruthy(a) {
				return true, nil
			}
		}
		return false, nil
	case "$not":
		if len(args) != 1 {
			return nil, ErrCompArgType{Comp: op, Want: "one argument", Actual: arg}
		}
		return !m.isTruthy(args[0]), nil
	default:
		return nil, ErrUnknownOperator{Operator: op}
	}
}

// evaluateArgs evaluates the arguments of op. A single argument may be given
// without the enclosing list.
func (m *Matcher) evaluateArgs(doc data.M, op string, arg any) ([]any, error) {
	list, ok := arg.([]any)
	if !ok {
		list = []any{arg}
	}
	res, err := m.evaluate(doc, list)
	if err != nil {
		return nil, err
	}
	return res.([]any), nil
}

func compareResult(op string, c int) bool {
	switch op {
	case "$eq":
		return c == 0
	case "$ne":
		return c != 0
	case "$gt":
		return c > 0
	case "$gte":
		return c >= 0
	case "$lt":
		return c < 0
	default:
		return c <= 0
	}
}

// fold applies $add or $multiply. Any nil operand makes the result nil.
func (m *Matcher) fold(op string, args []any) (any, error) {
	var acc any = int64(0)
	if op == "$multiply" {
		acc = int64(1)
	}
	for _, a := range args {
		if a == nil {
			return nil, nil
		}
		var err error
		if acc, err = m.binary(op, acc, a); err != nil || acc == nil {
			return acc, err
		}
	}
	return acc, nil
}

// binary applies an arithmetic operator to two numbers. Integers stay
// integers except for $divide and on overflow.
func (m *Matcher) binary(op string, a, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	fa, aOk := toFloat(a)
	fb, bOk := toFloat(b)
	if !aOk || !bOk {
		actual := a
		if aOk {
			actual = b
		}
		return nil, ErrCompArgType{Comp: op, Want: "number", Actual: actual}
	}

	if aInt && bInt {
		switch op {
		case "$add":
			if r := ia + ib; (r > ia) == (ib > 0) {
				return r, nil
			}
		case "$subtract":
			if r := ia - ib; (r < ia) == (ib > 0) {
				return r, nil
			}
		case "$multiply":
			if ia == 0 || ib == 0 {
				return int64(0), nil
			}
			if r := ia * ib; r/ib == ia && !(ia == -1 && ib == math.MinInt64) && !(ib == -1 && ia == math.MinInt64) {
				return r, nil
			}
		case "$mod":
			if ib == 0 {
				return nil, ErrDivideByZero
			}
			return ia % ib, nil
		}
	}

	switch op {
	case "$add":
		return fa + fb, nil
	case "$subtract":
		return fa - fb, nil
	case "$multiply":
		return fa * fb, nil
	case "$divide":
		if fb == 0 {
			return nil, ErrDivideByZero
		}
		return fa / fb, nil
	default:
		if fb == 0 {
			return nil, ErrDivideByZero
		}
		return math.Mod(fa, fb), nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
