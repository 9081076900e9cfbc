// Package fieldnavigator contains the default implementation of
// [domain.FieldNavigator], walking dotted paths over normalized documents.
package fieldnavigator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// FieldNavigator implements [domain.FieldNavigator].
type FieldNavigator struct{}

// NewFieldNavigator returns a new instance of [domain.FieldNavigator].
func NewFieldNavigator() domain.FieldNavigator {
	return &FieldNavigator{}
}

// GetAddress implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetAddress(field string) ([]string, error) {
	parts := strings.Split(field, ".")
	if slices.Contains(parts, "") {
		return nil, fmt.Errorf("invalid field path %q", field)
	}
	return parts, nil
}

// GetField implements [domain.FieldNavigator].
func (fn *FieldNavigator) GetField(obj any, fieldParts ...string) ([]domain.GetSetter, bool, error) {
	return fn.getField(obj, fieldParts, false)
}

// EnsureField implements [domain.FieldNavigator].
func (fn *FieldNavigator) EnsureField(obj any, fieldParts ...string) ([]domain.GetSetter, error) {
	res, _, err := fn.getField(obj, fieldParts, true)
	return res, err
}

type step struct {
	v          any
	expandable bool
	gs         domain.GetSetter
}

func (fn *FieldNavigator) getField(obj any, fieldParts []string, ensure bool) ([]domain.GetSetter, bool, error) {
	invalid := []domain.GetSetter{Missing()}
	if obj == nil {
		return invalid, false, nil
	}

	if len(fieldParts) == 0 {
		return []domain.GetSetter{Value(obj)}, false, nil
	}

	var (
		// has to be a list to include expanded queries
		curr = []step{{v: obj, expandable: true}}
		// set to true when continuing a query for every item in a list
		expanded = false
	)

	for idx, part := range fieldParts {
		last := idx == len(fieldParts)-1
		for n := 0; n < len(curr); n++ {
			item := curr[n]

			switch t := item.v.(type) {
			case map[string]any:
				if _, ok := t[part]; !ok {
					if !ensure {
						if !expanded {
							return invalid, false, nil
						}
						curr[n] = step{expandable: true, gs: Missing()}
						continue
					}
					if last {
						t[part] = nil
					} else {
						t[part] = map[string]any{}
					}
				} else if ensure && !last && t[part] == nil {
					t[part] = map[string]any{}
				}
				curr[n] = step{
					v:          t[part],
					expandable: true,
					gs:         AtKey(t, part),
				}
			case []any:
				i, err := strconv.Atoi(part)
				if err != nil || i < 0 {
					if ensure {
						return nil, false, fmt.Errorf("cannot create field %q in array", part)
					}
					expanded = true

					if !item.expandable {
						curr[n] = step{expandable: true, gs: Missing()}
						continue
					}

					tv := make([]step, len(t))
					for nn, v := range t {
						tv[nn] = step{v: v, expandable: false, gs: AtIndex(t, nn)}
					}

					// expanding the list in place, then rerunning
					// the current position on its first item
					curr = slices.Concat(curr[:n:n], tv, curr[n+1:])
					n--
					continue
				}

				if i >= len(t) {
					if ensure && item.gs == nil {
						return nil, false, fmt.Errorf("cannot grow root array")
					}
					if !ensure {
						if !expanded {
							return invalid, false, nil
						}
						curr[n] = step{expandable: true, gs: Missing()}
						continue
					}
					grown := make([]any, i+1)
					copy(grown, t)
					t = grown
					item.gs.Set(t)
				}
				if ensure && t[i] == nil && !last {
					t[i] = map[string]any{}
				}
				curr[n] = step{
					v:          t[i],
					expandable: true,
					gs:         AtIndex(t, i),
				}
			default:
				if ensure && item.v != nil {
					return nil, false, fmt.Errorf("cannot create field %q in value of type %T", part, item.v)
				}
				if !expanded {
					return invalid, false, nil
				}
				curr[n] = step{expandable: true, gs: Missing()}
			}
		}
	}

	res := make([]domain.GetSetter, len(curr))
	for n, v := range curr {
		res[n] = v.gs
	}

	return res, expanded, nil
}
