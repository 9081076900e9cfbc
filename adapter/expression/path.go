package expression

import (
	"regexp"
	"strconv"
)

// Path is the dotted path of a document field, as used in native queries.
// Schema fields embed a Path, so every method here is available on them.
type Path string

// Ref is implemented by anything that refers to a field path.
type Ref interface {
	FieldPath() Path
}

// FieldPath implements [Ref].
func (p Path) FieldPath() Path { return p }

// String returns the dotted path.
func (p Path) String() string { return string(p) }

// Sub re-roots ref under p, so that Path("wallet").Sub(Path("balance")) is
// "wallet.balance".
func (p Path) Sub(ref Ref) Path {
	sub := ref.FieldPath()
	if p == "" {
		return sub
	}
	if sub == "" {
		return p
	}
	return p + "." + sub
}

// At returns the path of the i-th element of the array at p.
func (p Path) At(i int) Path {
	return p.Sub(Path(strconv.Itoa(i)))
}

// Eq matches documents whose value at p equals v. When v is a slice, it
// matches documents whose value is any of its elements.
func (p Path) Eq(v any) Expression { return p.compare(Eq, v) }

// Ne is the negation of [Path.Eq].
func (p Path) Ne(v any) Expression { return p.compare(Ne, v) }

// Gt matches values greater than v.
func (p Path) Gt(v any) Expression { return p.compare(Gt, v) }

// Gte matches values greater than or equal to v.
func (p Path) Gte(v any) Expression { return p.compare(Gte, v) }

// Lt matches values lower than v.
func (p Path) Lt(v any) Expression { return p.compare(Lt, v) }

// Lte matches values lower than or equal to v.
func (p Path) Lte(v any) Expression { return p.compare(Lte, v) }

// compare builds a [Computed] expression when v is another field or an
// [Arithmetic] value, and a [Compare] otherwise.
func (p Path) compare(op Operator, v any) Expression {
	switch v.(type) {
	case Arithmetic, Ref:
		return Computed{Left: p, Op: op, Right: v}
	}
	return Compare{Path: p, Op: op, Value: v}
}

// In matches values equal to any of values.
func (p Path) In(values ...any) Expression {
	return Compare{Path: p, Op: In, Value: append([]any{}, values...)}
}

// Nin matches values different from every one of values.
func (p Path) Nin(values ...any) Expression {
	return Compare{Path: p, Op: Nin, Value: append([]any{}, values...)}
}

// Exists matches documents where p is set, or unset when exists is false.
func (p Path) Exists(exists bool) Expression {
	return Compare{Path: p, Op: Exists, Value: exists}
}

// Matches matches strings against a regular expression with native options
// ("i", "m", "s", "x").
func (p Path) Matches(expr string, options string) Expression {
	return Compare{Path: p, Op: Regex, Value: Pattern{Expr: expr, Options: options}}
}

// Contains matches strings containing s.
func (p Path) Contains(s string, ignoreCase bool) Expression {
	return p.Matches(regexp.QuoteMeta(s), caseOption(ignoreCase))
}

// StartsWith matches strings starting with s.
func (p Path) StartsWith(s string, ignoreCase bool) Expression {
	return p.Matches("^"+regexp.QuoteMeta(s), caseOption(ignoreCase))
}

// EndsWith matches strings ending with s.
func (p Path) EndsWith(s string, ignoreCase bool) Expression {
	return p.Matches(regexp.QuoteMeta(s)+"$", caseOption(ignoreCase))
}

func caseOption(ignoreCase bool) string {
	if ignoreCase {
		return "i"
	}
	return ""
}

// Asc returns an ascending sort marker on p.
func (p Path) Asc() Order { return Order{Path: p, Direction: Ascending} }

// Desc returns a descending sort marker on p.
func (p Path) Desc() Order { return Order{Path: p, Direction: Descending} }
