// Package decoder contains the default [domain.Decoder] implementation used by
// in-process drivers to hand normalized documents to callers.
package decoder

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/goccy/go-reflect"
	"github.com/mitchellh/mapstructure"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	// ErrTargetNil is returned when decoding into nil.
	ErrTargetNil = errors.New("decode target is nil")
	// ErrNonPointer is returned when decoding into a non pointer value.
	ErrNonPointer = errors.New("decode target must be a pointer")
)

// ErrDecode wraps failures of the underlying decoder.
type ErrDecode struct {
	Target any
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode into %T", e.Target)
}

// Decoder implements [domain.Decoder].
type Decoder struct{}

// NewDecoder returns a new implementation of [domain.Decoder].
func NewDecoder() domain.Decoder {
	return &Decoder{}
}

// Decode implements [domain.Decoder]. Documents are deep copied into map and
// bson.D targets, every other target is filled by matching "bson" struct tags.
func (d *Decoder) Decode(source any, target any) error {
	if target == nil {
		return ErrTargetNil
	}

	value := reflect.ValueNoEscapeOf(target)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return ErrNonPointer
	}

	switch t := target.(type) {
	case *bson.M:
		doc, err := d.document(source)
		if err != nil {
			return err
		}
		*t = doc
		return nil
	case *map[string]any:
		doc, err := d.document(source)
		if err != nil {
			return err
		}
		*t = doc
		return nil
	case *bson.D:
		doc, err := d.document(source)
		if err != nil {
			return err
		}
		*t = d.ordered(doc)
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: data.TagName,
		Result:  target,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data.Clone(source)); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode{Target: target}, err)
	}
	return nil
}

func (d *Decoder) document(source any) (map[string]any, error) {
	if source == nil {
		return nil, nil
	}
	doc, ok := source.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: source is %T", ErrDecode{}, source)
	}
	return data.Clone(doc).(map[string]any), nil
}

// ordered converts doc and every document nested in it to bson.D with keys in
// lexical order, keeping _id first.
func (d *Decoder) ordered(doc map[string]any) bson.D {
	keys := slices.SortedFunc(maps.Keys(doc), func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == domain.IDKey:
			return -1
		case b == domain.IDKey:
			return 1
		case a < b:
			return -1
		default:
			return 1
		}
	})
	res := make(bson.D, len(keys))
	for n, k := range keys {
		res[n] = bson.E{Key: k, Value: d.orderedValue(doc[k])}
	}
	return res
}

func (d *Decoder) orderedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return d.ordered(t)
	case []any:
		res := make(bson.A, len(t))
		for n, item := range t {
			res[n] = d.orderedValue(item)
		}
		return res
	default:
		return v
	}
}
