package expression

import (
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Direction is the native sort direction.
type Direction int

// Sort directions.
const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Order is a sort marker: a path and a direction.
type Order struct {
	Path      Path
	Direction Direction
}

// CompileSort compiles orders to a native sort document in the given order.
// Repeated paths are kept as given.
func CompileSort(orders ...Order) bson.D {
	res := make(bson.D, len(orders))
	for n, o := range orders {
		res[n] = bson.E{Key: string(o.Path), Value: int(o.Direction)}
	}
	return res
}

// CompileSortSpec compiles a sort argument: an [Order], a slice of them or a
// native bson.D. Nil means no sort.
func CompileSortSpec(sort any) (bson.D, error) {
	switch s := sort.(type) {
	case nil:
		return nil, nil
	case Order:
		return CompileSort(s), nil
	case []Order:
		return CompileSort(s...), nil
	case bson.D:
		return s, nil
	default:
		return nil, &domain.ErrFilterType{Kind: "sort", Value: sort}
	}
}
