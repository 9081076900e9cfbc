// Package index contains the default [domain.Index] implementation, an
// ordered tree keyed by the indexed values and holding the hash of each
// document _id.
package index

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/unbalanced"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/hasher"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// ErrInvalidModel is returned by [NewIndex] for unusable index definitions.
var ErrInvalidModel = errors.New("invalid index model")

// Index implements [domain.Index].
type Index struct {
	model  domain.IndexModel
	name   string
	fields [][]string
	// Exported to allow testing. Should not be a problem because Index is
	// used as interface.
	Tree           bst.BST[any, uint64]
	comparer       domain.Comparer
	hasher         domain.Hasher
	fieldNavigator domain.FieldNavigator
	matcher        domain.Matcher
}

// NewIndex returns a new implementation of [domain.Index].
func NewIndex(model domain.IndexModel, options ...Option) (domain.Index, error) {
	i := &Index{model: model, name: model.GeneratedName()}
	for _, option := range options {
		option(i)
	}
	if i.comparer == nil {
		i.comparer = comparer.NewComparer()
	}
	if i.hasher == nil {
		i.hasher = hasher.NewHasher()
	}
	if i.fieldNavigator == nil {
		i.fieldNavigator = fieldnavigator.NewFieldNavigator()
	}
	if i.matcher == nil && len(model.PartialFilter) > 0 {
		i.matcher = matcher.NewMatcher(
			matcher.WithComparer(i.comparer),
			matcher.WithFieldNavigator(i.fieldNavigator),
		)
	}

	if len(model.Keys) == 0 {
		return nil, fmt.Errorf("%w: no keys", ErrInvalidModel)
	}
	seen := make(map[string]bool, len(model.Keys))
	for _, k := range model.Keys {
		if seen[k.Key] {
			return nil, fmt.Errorf("%w: repeated key %q", ErrInvalidModel, k.Key)
		}
		seen[k.Key] = true
		addr, err := i.fieldNavigator.GetAddress(k.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
		}
		i.fields = append(i.fields, addr)
	}

	i.Tree = i.newTree()
	return i, nil
}

func (i *Index) newTree() bst.BST[any, uint64] {
	var c bst.Comparer[any, uint64] = &treeComparer{comparer: i.comparer}
	return unbalanced.NewBST(i.model.Unique, 8, c)
}

// Model implements [domain.Index].
func (i *Index) Model() domain.IndexModel {
	return i.model
}

// GetNumberOfKeys implements [domain.Index].
func (i *Index) GetNumberOfKeys() int {
	return i.Tree.GetNumberOfKeys()
}

// Reset implements [domain.Index].
func (i *Index) Reset(docs ...map[string]any) error {
	i.Tree = i.newTree()
	return i.Insert(docs...)
}

type entry struct {
	key any
	id  uint64
}

// Insert implements [domain.Index].
func (i *Index) Insert(docs ...map[string]any) error {
	inserted := make([]entry, 0, len(docs))

	var err error
DocInsertion:
	for _, d := range docs {
		var entries []entry
		entries, err = i.entries(d)
		if err != nil {
			break
		}
		for _, e := range entries {
			if err = i.Tree.Insert(e.key, e.id); err != nil {
				if v := (bst.ErrUniqueViolated{}); errors.As(err, &v) {
					err = &domain.ErrConstraintViolated{Index: i.name, Key: e.key}
				}
				break DocInsertion
			}
			inserted = append(inserted, e)
		}
	}
	if err != nil {
		nErrs := make([]error, 1, len(inserted)+1)
		nErrs[0] = err
		for _, e := range inserted {
			if err := i.delete(e.key, e.id); err != nil {
				nErrs = append(nErrs, err)
			}
		}
		return errors.Join(nErrs...)
	}
	return nil
}

// Remove implements [domain.Index].
func (i *Index) Remove(docs ...map[string]any) error {
	var errs []error
	for _, d := range docs {
		entries, err := i.entries(d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if err := i.delete(e.key, e.id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Update implements [domain.Index].
func (i *Index) Update(oldDoc, newDoc map[string]any) error {
	return i.UpdateMultipleDocs(domain.Update{OldDoc: oldDoc, NewDoc: newDoc})
}

// UpdateMultipleDocs implements [domain.Index].
func (i *Index) UpdateMultipleDocs(pairs ...domain.Update) error {
	for n, pair := range pairs {
		if err := i.Remove(pair.OldDoc); err != nil {
			for _, p := range pairs[:n] {
				_ = i.Insert(p.OldDoc)
			}
			return err
		}
	}

	for n, pair := range pairs {
		if err := i.Insert(pair.NewDoc); err != nil {
			for _, p := range pairs[:n] {
				_ = i.Remove(p.NewDoc)
			}
			for _, p := range pairs {
				_ = i.Insert(p.OldDoc)
			}
			return err
		}
	}
	return nil
}

// delete removes id from key. The tree loses the subtrees of a key with two
// children when unlinking it, so those keys are dropped by rebuilding.
func (i *Index) delete(key any, id uint64) error {
	node, err := i.Tree.Search(key)
	if err != nil || node == nil {
		return err
	}
	if node.Lower == nil || node.Greater == nil || len(node.Values) != 1 {
		return i.Tree.Delete(key, &id)
	}
	if node.Values[0] != id {
		return nil
	}
	return i.rebuild(node)
}

// rebuild replaces the tree with a copy without skip. Keys are inserted
// parents first so the copy keeps the shape of the original.
func (i *Index) rebuild(skip *bst.Node[any, uint64]) error {
	root := skip
	for root.Parent != nil {
		root = root.Parent
	}
	tree := i.newTree()
	var copyNode func(n *bst.Node[any, uint64]) error
	copyNode = func(n *bst.Node[any, uint64]) error {
		if n == nil {
			return nil
		}
		if n != skip {
			for _, v := range n.Values {
				if err := tree.Insert(n.Key, v); err != nil {
					return err
				}
			}
		}
		if err := copyNode(n.Lower); err != nil {
			return err
		}
		return copyNode(n.Greater)
	}
	if err := copyNode(root); err != nil {
		return err
	}
	i.Tree = tree
	return nil
}

// entries returns the keys of doc paired with the hash of its _id. Documents
// left out by the sparse flag or the partial filter have no entries.
func (i *Index) entries(doc map[string]any) ([]entry, error) {
	if i.matcher != nil {
		ok, err := i.matcher.Match(doc, i.model.PartialFilter)
		if err != nil {
			return nil, fmt.Errorf("matching partial filter: %w", err)
		}
		if !ok {
			return nil, nil
		}
	}

	keys, err := i.getKeys(doc)
	if err != nil || len(keys) == 0 {
		return nil, err
	}

	id, err := i.hasher.Hash(doc[domain.IDKey])
	if err != nil {
		return nil, fmt.Errorf("hashing _id: %w", err)
	}

	res := make([]entry, len(keys))
	for n, k := range keys {
		res[n] = entry{key: k, id: id}
	}
	return res, nil
}

func (i *Index) getKeys(doc map[string]any) ([]any, error) {
	// When a dotted field path references multiple array elements, each
	// element is treated as an individual key and inserted separately into
	// the index
	if len(i.fields) != 1 {
		return i.getKeysMultiField(doc)
	}

	values, set, err := i.readField(doc, i.fields[0])
	if err != nil {
		return nil, err
	}
	if i.model.Sparse && !set {
		return nil, nil
	}

	var keys []any
	for _, v := range values {
		if l, ok := v.([]any); ok {
			keys = append(keys, l...)
		} else {
			keys = append(keys, v)
		}
	}
	if len(keys) == 0 {
		return []any{nil}, nil
	}

	slices.SortFunc(keys, i.compareThings)
	return slices.CompactFunc(keys, func(a, b any) bool { return i.compareThings(a, b) == 0 }), nil
}

func (i *Index) getKeysMultiField(doc map[string]any) ([]any, error) {
	var containsKey bool
	k := make([]any, len(i.fields))
	for n, field := range i.fields {
		values, set, err := i.readField(doc, field)
		if err != nil {
			return nil, err
		}
		if set { // if undefined, treat as nil
			k[n] = values[0]
		}
		containsKey = containsKey || set
	}
	if i.model.Sparse && !containsKey {
		return nil, nil
	}
	return []any{k}, nil
}

// readField returns the values found at addr and whether any of them is set.
func (i *Index) readField(doc map[string]any, addr []string) ([]any, bool, error) {
	fields, _, err := i.fieldNavigator.GetField(doc, addr...)
	if err != nil {
		return nil, false, err
	}
	res := make([]any, 0, len(fields))
	var set bool
	for _, f := range fields {
		v, ok := f.Get()
		set = set || ok
		res = append(res, v)
	}
	return res, set, nil
}

func (i *Index) compareThings(a any, b any) int {
	comp, _ := i.comparer.Compare(a, b)
	return comp
}

type treeComparer struct {
	comparer domain.Comparer
}

// CompareKeys implements [bst.Comparer].
func (tc *treeComparer) CompareKeys(a any, b any) (int, error) {
	return tc.comparer.Compare(a, b)
}

// CompareValues implements [bst.Comparer].
func (tc *treeComparer) CompareValues(a uint64, b uint64) (bool, error) {
	return a == b, nil
}
