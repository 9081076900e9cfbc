// Package hasher contains a [domain.Hasher] for normalized document values.
// Values that the database considers equal, such as int64(1) and float64(1),
// have the same hash.
package hasher

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Hasher implements [domain.Hasher].
type Hasher struct{}

// NewHasher returns a new implementation of [domain.Hasher].
func NewHasher() domain.Hasher {
	return &Hasher{}
}

// tagged keeps values of different types with the same representation apart.
type tagged struct {
	Kind  string
	Value any
}

// Hash implements domain.Hasher.
func (h *Hasher) Hash(value any) (uint64, error) {
	canonical, err := h.canonicalize(value)
	if err != nil {
		return 0, err
	}
	return hashstructure.Hash(canonical, hashstructure.FormatV2, nil)
}

func (h *Hasher) canonicalize(a any) (tagged, error) {
	switch t := a.(type) {
	case nil:
		return tagged{Kind: "null"}, nil
	case bson.MinKey:
		return tagged{Kind: "minKey"}, nil
	case bson.MaxKey:
		return tagged{Kind: "maxKey"}, nil
	case int64:
		return tagged{Kind: "number", Value: t}, nil
	case float64:
		if t == math.Trunc(t) && t >= math.MinInt64 && t < math.MaxInt64 {
			return tagged{Kind: "number", Value: int64(t)}, nil
		}
		if math.IsNaN(t) {
			return tagged{Kind: "number", Value: "NaN"}, nil
		}
		return tagged{Kind: "number", Value: t}, nil
	case bson.Decimal128:
		return tagged{Kind: "decimal", Value: t.String()}, nil
	case string:
		return tagged{Kind: "string", Value: t}, nil
	case bool:
		return tagged{Kind: "bool", Value: t}, nil
	case time.Time:
		return tagged{Kind: "date", Value: t.UnixMilli()}, nil
	case bson.ObjectID:
		return tagged{Kind: "objectID", Value: t.Hex()}, nil
	case []byte:
		return tagged{Kind: "binary", Value: fmt.Sprintf("0:%x", t)}, nil
	case bson.Binary:
		return tagged{Kind: "binary", Value: fmt.Sprintf("%d:%x", t.Subtype, t.Data)}, nil
	case bson.Timestamp:
		return tagged{Kind: "timestamp", Value: uint64(t.T)<<32 | uint64(t.I)}, nil
	case bson.Regex:
		return tagged{Kind: "regex", Value: "/" + t.Pattern + "/" + t.Options}, nil
	case *regexp.Regexp:
		return tagged{Kind: "regex", Value: "/" + t.String() + "/"}, nil
	case map[string]any:
		fields := make(map[string]tagged, len(t))
		for k, v := range t {
			c, err := h.canonicalize(v)
			if err != nil {
				return tagged{}, err
			}
			fields[k] = c
		}
		return tagged{Kind: "document", Value: fields}, nil
	case []any:
		items := make([]tagged, len(t))
		for n, v := range t {
			c, err := h.canonicalize(v)
			if err != nil {
				return tagged{}, err
			}
			items[n] = c
		}
		return tagged{Kind: "array", Value: items}, nil
	default:
		return tagged{}, fmt.Errorf("cannot hash value of type %T", a)
	}
}
