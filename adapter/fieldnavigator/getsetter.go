package fieldnavigator

import "github.com/vinicius-lino-figueiredo/gedm/domain"

// AtKey returns the location of key in doc. The key does not need to exist.
func AtKey(doc map[string]any, key string) domain.GetSetter {
	return keySlot{doc: doc, key: key}
}

// AtIndex returns the location of position i of list. Positions out of range
// are never set.
func AtIndex(list []any, i int) domain.GetSetter {
	return indexSlot{list: list, i: i}
}

// Value returns a read-only location holding v.
func Value(v any) domain.GetSetter {
	return constant{v: v}
}

// Missing returns the location of a value that does not exist.
func Missing() domain.GetSetter {
	return missing{}
}

type keySlot struct {
	doc map[string]any
	key string
}

func (s keySlot) Get() (any, bool) {
	v, ok := s.doc[s.key]
	return v, ok
}

func (s keySlot) Set(v any) { s.doc[s.key] = v }

func (s keySlot) Unset() { delete(s.doc, s.key) }

type indexSlot struct {
	list []any
	i    int
}

func (s indexSlot) valid() bool { return s.i >= 0 && s.i < len(s.list) }

func (s indexSlot) Get() (any, bool) {
	if !s.valid() {
		return nil, false
	}
	return s.list[s.i], true
}

func (s indexSlot) Set(v any) {
	if s.valid() {
		s.list[s.i] = v
	}
}

// Unset nulls the position, arrays keep their length.
func (s indexSlot) Unset() { s.Set(nil) }

type constant struct{ v any }

func (c constant) Get() (any, bool) { return c.v, true }
func (constant) Set(any)            {}
func (constant) Unset()             {}

type missing struct{}

func (missing) Get() (any, bool) { return nil, false }
func (missing) Set(any)          {}
func (missing) Unset()           {}
