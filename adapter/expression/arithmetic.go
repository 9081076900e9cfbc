package expression

import (
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ArithmeticOperator is an aggregation arithmetic operator.
type ArithmeticOperator string

// Arithmetic operators.
const (
	OpAdd      ArithmeticOperator = "$add"
	OpSubtract ArithmeticOperator = "$subtract"
	OpMultiply ArithmeticOperator = "$multiply"
	OpDivide   ArithmeticOperator = "$divide"
	OpMod      ArithmeticOperator = "$mod"
)

// Arithmetic is a value computed from fields and constants, such as
// price * quantity. It is not a filter: comparing it builds a [Computed]
// expression.
//
// Operands may be field references ([Ref]), other Arithmetic values or
// constants.
type Arithmetic struct {
	Op       ArithmeticOperator
	Operands []any
}

// Compute applies op to operands. It is the way to put a constant on the left
// side, as in Compute(OpSubtract, 100, discount).
func Compute(op ArithmeticOperator, operands ...any) Arithmetic {
	return Arithmetic{Op: op, Operands: append([]any{}, operands...)}
}

func (a Arithmetic) with(op ArithmeticOperator, v any) Arithmetic {
	if a.Op == op && (op == OpAdd || op == OpMultiply) {
		return Compute(op, append(append([]any{}, a.Operands...), v)...)
	}
	return Compute(op, a, v)
}

// Add returns a + v.
func (a Arithmetic) Add(v any) Arithmetic { return a.with(OpAdd, v) }

// Subtract returns a - v.
func (a Arithmetic) Subtract(v any) Arithmetic { return a.with(OpSubtract, v) }

// Multiply returns a * v.
func (a Arithmetic) Multiply(v any) Arithmetic { return a.with(OpMultiply, v) }

// Divide returns a / v.
func (a Arithmetic) Divide(v any) Arithmetic { return a.with(OpDivide, v) }

// Mod returns the remainder of a / v.
func (a Arithmetic) Mod(v any) Arithmetic { return a.with(OpMod, v) }

// Eq matches documents where a equals v.
func (a Arithmetic) Eq(v any) Expression { return Computed{Left: a, Op: Eq, Right: v} }

// Ne matches documents where a differs from v.
func (a Arithmetic) Ne(v any) Expression { return Computed{Left: a, Op: Ne, Right: v} }

// Gt matches documents where a is greater than v.
func (a Arithmetic) Gt(v any) Expression { return Computed{Left: a, Op: Gt, Right: v} }

// Gte matches documents where a is greater than or equal to v.
func (a Arithmetic) Gte(v any) Expression { return Computed{Left: a, Op: Gte, Right: v} }

// Lt matches documents where a is lower than v.
func (a Arithmetic) Lt(v any) Expression { return Computed{Left: a, Op: Lt, Right: v} }

// Lte matches documents where a is lower than or equal to v.
func (a Arithmetic) Lte(v any) Expression { return Computed{Left: a, Op: Lte, Right: v} }

// Operand returns the aggregation expression computing a.
func (a Arithmetic) Operand() any {
	items := make(bson.A, len(a.Operands))
	for n, item := range a.Operands {
		items[n] = operand(item)
	}
	return bson.M{string(a.Op): items}
}

// Add returns p + v.
func (p Path) Add(v any) Arithmetic { return Compute(OpAdd, p, v) }

// Subtract returns p - v.
func (p Path) Subtract(v any) Arithmetic { return Compute(OpSubtract, p, v) }

// Multiply returns p * v.
func (p Path) Multiply(v any) Arithmetic { return Compute(OpMultiply, p, v) }

// Divide returns p / v.
func (p Path) Divide(v any) Arithmetic { return Compute(OpDivide, p, v) }

// Mod returns the remainder of p / v.
func (p Path) Mod(v any) Arithmetic { return Compute(OpMod, p, v) }

// Computed compares two aggregation operands and compiles to a $expr query.
// It is built by comparing an [Arithmetic] value, or a path with one.
type Computed struct {
	Left  any
	Op    Operator
	Right any
}

// Compile implements [Expression].
func (c Computed) Compile() bson.M {
	return bson.M{"$expr": bson.M{string(c.Op): bson.A{operand(c.Left), operand(c.Right)}}}
}

// And implements [Expression].
func (c Computed) And(others ...Expression) Expression { return And(append([]Expression{c}, others...)...) }

// Or implements [Expression].
func (c Computed) Or(others ...Expression) Expression { return Or(append([]Expression{c}, others...)...) }

// Not implements [Expression]. Aggregation comparisons order every value,
// missing ones included, so each operator has an exact opposite.
func (c Computed) Not() Expression {
	if neg, ok := negations[c.Op]; ok && c.Op != In && c.Op != Nin {
		return Computed{Left: c.Left, Op: neg, Right: c.Right}
	}
	return Negation{Expr: c}
}

func (Computed) node() {}

// operand renders v as an aggregation operand. Field references become "$path"
// and strings starting with "$" are escaped with $literal.
func operand(v any) any {
	switch t := v.(type) {
	case Arithmetic:
		return t.Operand()
	case Ref:
		return "$" + string(t.FieldPath())
	case string:
		if strings.HasPrefix(t, "$") {
			return bson.M{"$literal": t}
		}
		return t
	default:
		return Clone(v)
	}
}
