package modifier

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type M = data.M
type A = []any

// matcherMock implements [domain.Matcher].
type matcherMock struct {
	mock.Mock
}

// Match implements [domain.Matcher].
func (g *matcherMock) Match(obj any, qry any) (bool, error) {
	call := g.Called(obj, qry)
	return call.Bool(0), call.Error(1)
}

type ModifierTestSuite struct {
	suite.Suite
	modifier *Modifier
	now      time.Time
}

func (s *ModifierTestSuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.modifier = NewModifier(
		WithTimeGetter(timegetter.Fixed(s.now)),
	).(*Modifier)
}

func (s *ModifierTestSuite) modify(obj M, mod M) M {
	res, err := s.modifier.Modify(obj, mod)
	s.Require().NoError(err)
	return res
}

// Queries not containing any modifier just replace the document by the
// contents of the query but keep its _id
func (s *ModifierTestSuite) TestModifyDoc() {
	obj := M{"some": "thing", "_id": "keepit"}
	t := s.modify(obj, M{"replace": "done", "bloup": A{1, 8}})
	s.Equal(M{"replace": "done", "bloup": A{int64(1), int64(8)}, "_id": "keepit"}, t)
	s.Equal(M{"some": "thing", "_id": "keepit"}, obj)
}

// Cannot change the _id of a document.
func (s *ModifierTestSuite) TestModifyID() {
	obj := M{"some": "thing", "_id": "keepit"}

	_, err := s.modifier.Modify(obj, M{"_id": "donttryit"})
	s.ErrorIs(err, domain.ErrCannotModifyID)

	_, err = s.modifier.Modify(obj, M{"$set": M{"_id": "donttryit"}})
	s.ErrorIs(err, domain.ErrCannotModifyID)

	_, err = s.modifier.Modify(obj, M{"$unset": M{"_id": ""}})
	s.ErrorIs(err, domain.ErrCannotModifyID)

	// same value is fine
	t := s.modify(obj, M{"_id": "keepit", "some": "other"})
	s.Equal(M{"_id": "keepit", "some": "other"}, t)
}

func (s *ModifierTestSuite) TestMixCopyModify() {
	_, err := s.modifier.Modify(M{}, M{"$set": M{"a": 1}, "b": 2})
	s.ErrorIs(err, ErrMixedOperators)
}

func (s *ModifierTestSuite) TestInexistentModifier() {
	_, err := s.modifier.Modify(M{}, M{"$inexistent": M{"a": 1}})
	s.ErrorIs(err, ErrUnknownModifier{Name: "$inexistent"})

	_, err = s.modifier.Modify(M{}, M{"$set": 1})
	s.ErrorIs(err, ErrNonObject)
}

func (s *ModifierTestSuite) TestSet() {
	obj := M{"some": "thing", "say": "hi", "nested": M{"a": "b"}, "arr": A{"x"}}
	t := s.modify(obj, M{"$set": M{
		"some":     "changed",
		"nested.a": "c",
		"new.deep": true,
		"arr.2":    "z",
	}})
	s.Equal(M{
		"some":   "changed",
		"say":    "hi",
		"nested": M{"a": "c"},
		"new":    M{"deep": true},
		"arr":    A{"x", nil, "z"},
	}, t)
	s.Equal(M{"a": "b"}, obj["nested"])
}

func (s *ModifierTestSuite) TestSetFailedGetAddress() {
	_, err := s.modifier.Modify(M{}, M{"$set": M{"a..b": 1}})
	s.Error(err)

	_, err = s.modifier.Modify(M{"a": "str"}, M{"$set": M{"a.b": 1}})
	s.ErrorContains(err, `modifying field "a.b"`)
}

func (s *ModifierTestSuite) TestUnset() {
	obj := M{"yup": "yes", "nope": "no", "nested": M{"a": int64(1), "b": int64(2)}}
	t := s.modify(obj, M{"$unset": M{"nope": "", "nested.b": "", "missing": "", "nested.z.q": ""}})
	s.Equal(M{"yup": "yes", "nested": M{"a": int64(1)}}, t)
}

func (s *ModifierTestSuite) TestInc() {
	t := s.modify(M{"a": int64(5), "f": 1.5, "n": M{}}, M{"$inc": M{
		"a":    2,
		"f":    1,
		"n.c":  3,
		"miss": -1.5,
	}})
	s.Equal(M{"a": int64(7), "f": 2.5, "n": M{"c": int64(3)}, "miss": -1.5}, t)

	// overflow falls back to float
	t = s.modify(M{"a": int64(math.MaxInt64)}, M{"$inc": M{"a": 1}})
	s.IsType(float64(0), t["a"])

	_, err := s.modifier.Modify(M{"a": "str"}, M{"$inc": M{"a": 1}})
	s.ErrorAs(err, &ErrModFieldType{})

	_, err = s.modifier.Modify(M{"a": int64(1)}, M{"$inc": M{"a": "1"}})
	s.ErrorAs(err, &ErrModArgType{})
}

func (s *ModifierTestSuite) TestIncDecimal() {
	one, err := bson.ParseDecimal128("1.5")
	s.Require().NoError(err)
	t := s.modify(M{"a": int64(2)}, M{"$inc": M{"a": one}})
	s.Equal("3.5", t["a"].(bson.Decimal128).String())
}

func (s *ModifierTestSuite) TestMul() {
	t := s.modify(M{"a": int64(5), "f": 1.5}, M{"$mul": M{"a": 3, "f": 2, "miss": 4, "missf": 2.5}})
	s.Equal(M{"a": int64(15), "f": 3.0, "miss": int64(0), "missf": 0.0}, t)
}

func (s *ModifierTestSuite) TestPush() {
	t := s.modify(M{"arr": A{"hello"}}, M{"$push": M{"arr": "world", "new": "item", "obj": M{"a": 1}}})
	s.Equal(M{"arr": A{"hello", "world"}, "new": A{"item"}, "obj": A{M{"a": int64(1)}}}, t)

	_, err := s.modifier.Modify(M{"arr": "str"}, M{"$push": M{"arr": 1}})
	s.ErrorAs(err, &ErrModFieldType{})
}

func (s *ModifierTestSuite) TestPushEachSlicePosition() {
	obj := M{"arr": A{"a", "b"}}

	t := s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c", "d"}}}})
	s.Equal(A{"a", "b", "c", "d"}, t["arr"])

	t = s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c", "d"}, "$slice": 3}}})
	s.Equal(A{"a", "b", "c"}, t["arr"])

	t = s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c", "d"}, "$slice": -3}}})
	s.Equal(A{"b", "c", "d"}, t["arr"])

	t = s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c"}, "$slice": 0}}})
	s.Equal(A{}, t["arr"])

	t = s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c"}, "$position": 0}}})
	s.Equal(A{"c", "a", "b"}, t["arr"])

	t = s.modify(obj, M{"$push": M{"arr": M{"$each": A{"c"}, "$position": -1}}})
	s.Equal(A{"a", "c", "b"}, t["arr"])

	s.Equal(A{"a", "b"}, obj["arr"])

	_, err := s.modifier.Modify(obj, M{"$push": M{"arr": M{"$each": A{"c"}, "$unknown": 1}}})
	s.ErrorIs(err, ErrInvalidPushField)

	_, err = s.modifier.Modify(obj, M{"$push": M{"arr": M{"$slice": 1}}})
	s.ErrorIs(err, ErrInvalidPushField)

	_, err = s.modifier.Modify(obj, M{"$push": M{"arr": M{"$each": "c"}}})
	s.ErrorAs(err, &ErrModArgType{})

	_, err = s.modifier.Modify(obj, M{"$push": M{"arr": M{"$each": A{}, "$slice": 1.5}}})
	s.ErrorAs(err, &ErrModArgType{})
}

func (s *ModifierTestSuite) TestAddToSet() {
	obj := M{"arr": A{"hello", M{"b": int64(2)}}}

	t := s.modify(obj, M{"$addToSet": M{"arr": "world"}})
	s.Equal(A{"hello", M{"b": int64(2)}, "world"}, t["arr"])

	t = s.modify(obj, M{"$addToSet": M{"arr": "hello"}})
	s.Equal(A{"hello", M{"b": int64(2)}}, t["arr"])

	t = s.modify(obj, M{"$addToSet": M{"arr": M{"b": 2}}})
	s.Equal(A{"hello", M{"b": int64(2)}}, t["arr"])

	t = s.modify(obj, M{"$addToSet": M{"arr": M{"$each": A{"a", "hello", "a"}}}})
	s.Equal(A{"hello", M{"b": int64(2)}, "a"}, t["arr"])

	t = s.modify(M{}, M{"$addToSet": M{"arr": "x"}})
	s.Equal(A{"x"}, t["arr"])

	_, err := s.modifier.Modify(obj, M{"$addToSet": M{"arr": M{"$each": A{}, "$slice": 1}}})
	s.ErrorIs(err, ErrInvalidAddToSetField)

	_, err = s.modifier.Modify(M{"arr": 1}, M{"$addToSet": M{"arr": 1}})
	s.ErrorAs(err, &ErrModFieldType{})
}

func (s *ModifierTestSuite) TestPop() {
	obj := M{"arr": A{int64(1), int64(4), int64(8)}}

	t := s.modify(obj, M{"$pop": M{"arr": 1}})
	s.Equal(A{int64(1), int64(4)}, t["arr"])

	t = s.modify(obj, M{"$pop": M{"arr": -1}})
	s.Equal(A{int64(4), int64(8)}, t["arr"])

	t = s.modify(M{"arr": A{}}, M{"$pop": M{"arr": 1}})
	s.Equal(A{}, t["arr"])

	t = s.modify(M{}, M{"$pop": M{"arr": 1}})
	s.Equal(M{}, t)

	_, err := s.modifier.Modify(obj, M{"$pop": M{"arr": 0}})
	s.ErrorAs(err, &ErrModArgType{})

	_, err = s.modifier.Modify(M{"arr": "str"}, M{"$pop": M{"arr": 1}})
	s.ErrorAs(err, &ErrModFieldType{})
}

func (s *ModifierTestSuite) TestPull() {
	obj := M{"arr": A{"hello", "world", "hello"}, "nums": A{int64(2), int64(4), int64(8)}}

	t := s.modify(obj, M{"$pull": M{"arr": "hello"}})
	s.Equal(A{"world"}, t["arr"])

	t = s.modify(obj, M{"$pull": M{"nums": M{"$gte": 4}}})
	s.Equal(A{int64(2)}, t["nums"])

	t = s.modify(M{"docs": A{M{"a": int64(1), "b": int64(1)}, M{"a": int64(2)}}}, M{"$pull": M{"docs": M{"a": 1}}})
	s.Equal(A{M{"a": int64(2)}}, t["docs"])

	t = s.modify(M{}, M{"$pull": M{"arr": "x"}})
	s.Equal(M{}, t)

	_, err := s.modifier.Modify(M{"arr": 1}, M{"$pull": M{"arr": 1}})
	s.ErrorAs(err, &ErrModFieldType{})
}

func (s *ModifierTestSuite) TestPullMatcherError() {
	mt := new(matcherMock)
	s.modifier = NewModifier(WithMatcher(mt)).(*Modifier)
	errMatch := fmt.Errorf("match error")
	mt.On("Match", "a", "a").Return(false, errMatch).Once()

	_, err := s.modifier.Modify(M{"arr": A{"a"}}, M{"$pull": M{"arr": "a"}})
	s.ErrorIs(err, errMatch)
	mt.AssertExpectations(s.T())
}

func (s *ModifierTestSuite) TestMaxMin() {
	obj := M{"n": int64(5), "s": "b"}

	s.Equal(int64(10), s.modify(obj, M{"$max": M{"n": 10}})["n"])
	s.Equal(int64(5), s.modify(obj, M{"$max": M{"n": 1}})["n"])
	s.Equal(int64(1), s.modify(obj, M{"$min": M{"n": 1}})["n"])
	s.Equal(int64(5), s.modify(obj, M{"$min": M{"n": 10}})["n"])
	s.Equal("a", s.modify(obj, M{"$min": M{"s": "a"}})["s"])
	s.Equal(int64(3), s.modify(obj, M{"$min": M{"miss": 3}})["miss"])
	s.Equal(int64(3), s.modify(obj, M{"$max": M{"miss": 3}})["miss"])

	// null is lower than numbers
	s.Equal(int64(1), s.modify(M{"n": nil}, M{"$max": M{"n": 1}})["n"])
	s.Nil(s.modify(M{"n": nil}, M{"$min": M{"n": 1}})["n"])
}

func (s *ModifierTestSuite) TestRename() {
	t := s.modify(M{"a": int64(1), "n": M{"b": "x"}}, M{"$rename": M{"a": "z", "n.b": "y.c", "miss": "other"}})
	s.Equal(M{"z": int64(1), "n": M{}, "y": M{"c": "x"}}, t)

	_, err := s.modifier.Modify(M{"a": 1}, M{"$rename": M{"a": 1}})
	s.ErrorAs(err, &ErrModArgType{})

	_, err = s.modifier.Modify(M{"a": 1}, M{"$rename": M{"a": "a"}})
	s.ErrorAs(err, &ErrModArgType{})
}

func (s *ModifierTestSuite) TestCurrentDate() {
	t := s.modify(M{}, M{"$currentDate": M{
		"a": true,
		"b": M{"$type": "date"},
		"c": M{"$type": "timestamp"},
	}})
	s.Equal(s.now, t["a"])
	s.Equal(s.now, t["b"])
	s.Equal(bson.Timestamp{T: uint32(s.now.Unix()), I: 1}, t["c"])

	_, err := s.modifier.Modify(M{}, M{"$currentDate": M{"a": M{"$type": "x"}}})
	s.ErrorAs(err, &ErrModArgType{})
}

// $setOnInsert only applies to upserts.
func (s *ModifierTestSuite) TestSetOnInsert() {
	t := s.modify(M{"a": int64(1)}, M{"$setOnInsert": M{"b": 2}})
	s.Equal(M{"a": int64(1)}, t)

	t, err := s.modifier.Upsert(M{"a": 1}, M{"$setOnInsert": M{"b": 2}})
	s.NoError(err)
	s.Equal(M{"a": int64(1), "b": int64(2)}, t)
}

// Upserts start from the equality clauses of the filter.
func (s *ModifierTestSuite) TestUpsert() {
	t, err := s.modifier.Upsert(
		M{
			"a":    1,
			"b.c":  "x",
			"d":    M{"$eq": true},
			"e":    M{"$gt": 5},
			"r":    bson.Regex{Pattern: "^a"},
			"$and": A{M{"f": "y"}},
			"$or":  A{M{"g": 1}},
		},
		M{"$set": M{"h": 1}, "$inc": M{"a": 1}},
	)
	s.NoError(err)
	s.Equal(M{
		"a": int64(2),
		"b": M{"c": "x"},
		"d": true,
		"f": "y",
		"h": int64(1),
	}, t)

	// replacement keeps only the filter _id
	t, err = s.modifier.Upsert(M{"_id": 7, "a": 1}, M{"b": 2})
	s.NoError(err)
	s.Equal(M{"_id": int64(7), "b": int64(2)}, t)

	_, err = s.modifier.Upsert(M{"_id": 7}, M{"$set": M{"_id": 8}})
	s.ErrorIs(err, domain.ErrCannotModifyID)
}

func (s *ModifierTestSuite) TestErrorMessages() {
	s.Equal("$inc expects number field, got string", ErrModFieldType{Mod: "$inc", Want: "number", Actual: ""}.Error())
	s.Equal("$inc expects number arg, got string", ErrModArgType{Mod: "$inc", Want: "number", Actual: ""}.Error())
	s.Equal(`unknown modifier "$x"`, ErrUnknownModifier{Name: "$x"}.Error())
}

func TestModifierTestSuite(t *testing.T) {
	suite.Run(t, new(ModifierTestSuite))
}
