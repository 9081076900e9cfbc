// Package expression contains the filter and sort expression trees built from
// field paths, and their compilation into native query documents.
//
// Expressions are immutable values. Combining them with [And], [Or] or
// [Expression.Not] always builds new nodes, so the same expression can be
// reused in any number of queries:
//
//	adults := expression.Path("age").Gte(18)
//	filter := adults.And(expression.Path("name").StartsWith("A", false))
//	filter.Compile() // {"$and": [{"age": {"$gte": 18}}, {"name": {"$regex": "^A"}}]}
package expression

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Operator is a comparison operator, named after its native query key.
type Operator string

// Comparison operators.
const (
	Eq     Operator = "$eq"
	Ne     Operator = "$ne"
	Gt     Operator = "$gt"
	Gte    Operator = "$gte"
	Lt     Operator = "$lt"
	Lte    Operator = "$lte"
	In     Operator = "$in"
	Nin    Operator = "$nin"
	Exists Operator = "$exists"
	Regex  Operator = "$regex"
)

var negations = map[Operator]Operator{
	Eq:  Ne,
	Ne:  Eq,
	Gt:  Lte,
	Lte: Gt,
	Lt:  Gte,
	Gte: Lt,
	In:  Nin,
	Nin: In,
}

// LogicalOperator joins the items of a [Logical] node.
type LogicalOperator string

// Logical operators.
const (
	OpAnd LogicalOperator = "$and"
	OpOr  LogicalOperator = "$or"
)

func (o LogicalOperator) flip() LogicalOperator {
	if o == OpAnd {
		return OpOr
	}
	return OpAnd
}

// Expression is a node of a filter tree. The set of implementations is closed:
// [Compare], [Computed], [Logical], [Negation] and [Raw].
type Expression interface {
	// Compile returns the native query document. It never mutates the
	// tree and returns equal documents on every call.
	Compile() bson.M
	// And combines the expression with others in a conjunction.
	And(...Expression) Expression
	// Or combines the expression with others in a disjunction.
	Or(...Expression) Expression
	// Not returns the negated expression.
	Not() Expression

	node()
}

// Compare compares the value at Path with Value.
type Compare struct {
	Path  Path
	Op    Operator
	Value any
}

// Logical is a conjunction or disjunction of its items. With no items it
// matches every document.
type Logical struct {
	Op    LogicalOperator
	Items []Expression
}

// Negation matches the documents its inner expression does not match. It is
// only built for nodes without a direct negated form.
type Negation struct {
	Expr Expression
}

// Raw wraps a native query fragment so it can be combined with typed
// expressions.
type Raw struct {
	Query bson.M
}

// Pattern is the operand of a [Regex] comparison.
type Pattern struct {
	Expr    string
	Options string
}

// FromQuery returns a [Raw] expression over q.
func FromQuery(q bson.M) Raw {
	return Raw{Query: q}
}

// And returns the conjunction of items. Nil items are skipped, nested
// conjunctions are flattened and a single item is returned unchanged.
func And(items ...Expression) Expression {
	return combine(OpAnd, items)
}

// Or returns the disjunction of items, following the same rules as [And].
func Or(items ...Expression) Expression {
	return combine(OpOr, items)
}

// Not returns the negation of e.
func Not(e Expression) Expression {
	if e == nil {
		return nil
	}
	return e.Not()
}

func combine(op LogicalOperator, items []Expression) Expression {
	flat := make([]Expression, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case nil:
			continue
		case Logical:
			if t.Op == op {
				flat = append(flat, t.Items...)
				continue
			}
		}
		flat = append(flat, item)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return Logical{Op: op, Items: flat}
}

// And implements [Expression].
func (c Compare) And(others ...Expression) Expression { return And(append([]Expression{c}, others...)...) }

// Or implements [Expression].
func (c Compare) Or(others ...Expression) Expression { return Or(append([]Expression{c}, others...)...) }

// Not implements [Expression]. Operators with a direct opposite are swapped,
// regular expressions are wrapped in a [Negation].
func (c Compare) Not() Expression {
	if neg, ok := negations[c.Op]; ok {
		return Compare{Path: c.Path, Op: neg, Value: c.Value}
	}
	if c.Op == Exists {
		b, _ := c.Value.(bool)
		return Compare{Path: c.Path, Op: Exists, Value: !b}
	}
	return Negation{Expr: c}
}

func (Compare) node() {}

// And implements [Expression].
func (l Logical) And(others ...Expression) Expression { return And(append([]Expression{l}, others...)...) }

// Or implements [Expression].
func (l Logical) Or(others ...Expression) Expression { return Or(append([]Expression{l}, others...)...) }

// Not implements [Expression] using De Morgan's laws. An empty node matches
// every document, so its negation is a [Negation] matching none.
func (l Logical) Not() Expression {
	if len(l.Items) == 0 {
		return Negation{Expr: l}
	}
	items := make([]Expression, len(l.Items))
	for n, item := range l.Items {
		items[n] = item.Not()
	}
	return Logical{Op: l.Op.flip(), Items: items}
}

func (Logical) node() {}

// And implements [Expression].
func (n Negation) And(others ...Expression) Expression { return And(append([]Expression{n}, others...)...) }

// Or implements [Expression].
func (n Negation) Or(others ...Expression) Expression { return Or(append([]Expression{n}, others...)...) }

// Not implements [Expression]. Negating a negation returns the inner
// expression.
func (n Negation) Not() Expression { return n.Expr }

func (Negation) node() {}

// And implements [Expression].
func (r Raw) And(others ...Expression) Expression { return And(append([]Expression{r}, others...)...) }

// Or implements [Expression].
func (r Raw) Or(others ...Expression) Expression { return Or(append([]Expression{r}, others...)...) }

// Not implements [Expression].
func (r Raw) Not() Expression { return Negation{Expr: r} }

func (Raw) node() {}
