package matcher

import (
	"fmt"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type M = data.M

type A = []any

type fieldNavigatorMock struct{ mock.Mock }

// EnsureField implements [domain.FieldNavigator].
func (f *fieldNavigatorMock) EnsureField(obj any, addr ...string) ([]domain.GetSetter, error) {
	call := f.Called(obj, addr)
	return call.Get(0).([]domain.GetSetter), call.Error(1)
}

// GetAddress implements [domain.FieldNavigator].
func (f *fieldNavigatorMock) GetAddress(field string) ([]string, error) {
	call := f.Called(field)
	return call.Get(0).([]string), call.Error(1)
}

// GetField implements [domain.FieldNavigator].
func (f *fieldNavigatorMock) GetField(obj any, addr ...string) ([]domain.GetSetter, bool, error) {
	call := f.Called(obj, addr)
	return call.Get(0).([]domain.GetSetter), call.Bool(1), call.Error(2)
}

type comparerMock struct{ mock.Mock }

// Comparable implements [domain.Comparer].
func (c *comparerMock) Comparable(a any, b any) bool {
	return c.Called(a, b).Bool(0)
}

// Compare implements [domain.Comparer].
func (c *comparerMock) Compare(a any, b any) (int, error) {
	call := c.Called(a, b)
	return call.Int(0), call.Error(1)
}

type MatcherTestSuite struct {
	suite.Suite
	mtchr *Matcher
}

func (s *MatcherTestSuite) SetupTest() {
	s.mtchr = NewMatcher().(*Matcher)
}

// Can find documents with simple fields.
func (s *MatcherTestSuite) TestSimpleFieldEquality() {
	qry := M{"test": "yeah"}
	s.NotMatches(s.mtchr.Match(M{"test": "yea"}, qry))
	s.NotMatches(s.mtchr.Match(M{"test": "yeahh"}, qry))
	s.Matches(s.mtchr.Match(M{"test": "yeah"}, qry))
	s.Matches(s.mtchr.Match(M{"test": "yeah", "other": 1}, bson.D{{Key: "test", Value: "yeah"}}))
}

// Can find documents with the dot-notation.
func (s *MatcherTestSuite) TestCanFindDocumentsWithTheDotNotation() {
	doc := M{"test": M{"ooo": "yeah"}}
	s.NotMatches(s.mtchr.Match(doc, M{"test.ooo": "yea"}))
	s.NotMatches(s.mtchr.Match(doc, M{"test.oo": "yeah"}))
	s.NotMatches(s.mtchr.Match(doc, M{"tst.ooo": "yeah"}))
	s.Matches(s.mtchr.Match(doc, M{"test.ooo": "yeah"}))
}

// Null in a query matches null and missing fields.
func (s *MatcherTestSuite) TestNull() {
	s.Matches(s.mtchr.Match(M{"a": nil}, M{"a": nil}))
	s.Matches(s.mtchr.Match(M{}, M{"a": nil}))
	s.NotMatches(s.mtchr.Match(M{"a": 0}, M{"a": nil}))
	s.NotMatches(s.mtchr.Match(M{}, M{"a": M{"$ne": nil}}))
	s.Matches(s.mtchr.Match(M{"a": false}, M{"a": M{"$ne": nil}}))
}

// Nested objects are deep-equality matched and not treated as sub-queries.
func (s *MatcherTestSuite) TestNestedObjectsAreDeepEqualNotSubQuery() {
	s.Matches(s.mtchr.Match(M{"a": M{"b": 5}}, M{"a": M{"b": 5}}))
	s.NotMatches(s.mtchr.Match(M{"a": M{"b": 5, "c": 3}}, M{"a": M{"b": 5}}))
	s.NotMatches(s.mtchr.Match(M{"a": M{"b": 5}}, M{"a": M{"b": M{"$lt": 10}}}))

	_, err := s.mtchr.Match(M{"a": M{"b": 5}}, M{"a": M{"$or": A{M{"b": 10}}}})
	s.ErrorIs(err, ErrUnknownOperator{Operator: "$or"})
}

// Can match for field equality inside an array with the dot notation.
func (s *MatcherTestSuite) TestInsideArrayDotNotation() {
	doc := M{"a": true, "b": A{"node", "embedded", "database"}}
	s.NotMatches(s.mtchr.Match(doc, M{"b.1": "golang"}))
	s.Matches(s.mtchr.Match(doc, M{"b.1": "embedded"}))
	s.NotMatches(s.mtchr.Match(doc, M{"b.1": "database"}))
}

// An array field matches when an item or the whole array is equal.
func (s *MatcherTestSuite) TestArrayFieldEquality() {
	doc := M{"tags": A{"go", "db"}}
	s.Matches(s.mtchr.Match(doc, M{"tags": "go"}))
	s.Matches(s.mtchr.Match(doc, M{"tags": A{"go", "db"}}))
	s.NotMatches(s.mtchr.Match(doc, M{"tags": A{"db", "go"}}))
	s.NotMatches(s.mtchr.Match(doc, M{"tags": "js"}))

	planets := M{"planets": A{M{"name": "Earth"}, M{"name": "Mars"}}}
	s.Matches(s.mtchr.Match(planets, M{"planets.name": "Mars"}))
	s.NotMatches(s.mtchr.Match(planets, M{"planets.name": "Venus"}))
}

// Will return error if GetAddress fails.
func (s *MatcherTestSuite) TestFailedGetAddress() {
	fn := new(fieldNavigatorMock)
	s.mtchr = NewMatcher(WithFieldNavigator(fn)).(*Matcher)

	errGetAddr := fmt.Errorf("get address error")
	fn.On("GetAddress", "a").
		Return([]string{}, errGetAddr).
		Once()

	_, err := s.mtchr.Match(M{"a": 1}, M{"a": 1})
	s.ErrorIs(err, errGetAddr)

	fn.AssertExpectations(s.T())
}

// Will return error if GetField fails.
func (s *MatcherTestSuite) TestFailedGetField() {
	fn := new(fieldNavigatorMock)
	s.mtchr = NewMatcher(WithFieldNavigator(fn)).(*Matcher)
	fn.On("GetAddress", "a").
		Return([]string{"a"}, nil).
		Once()
	errGetField := fmt.Errorf("get field error")
	fn.On("GetField", M{"a": 1}, []string{"a"}).
		Return([]domain.GetSetter{}, false, errGetField).
		Once()

	m, err := s.mtchr.Match(M{"a": 1}, M{"a": 1})
	s.ErrorIs(err, errGetField)
	s.False(m)
	fn.AssertExpectations(s.T())
}

// Comparer errors are returned.
func (s *MatcherTestSuite) TestCompareError() {
	c := new(comparerMock)
	s.mtchr = NewMatcher(WithComparer(c)).(*Matcher)
	errCompare := fmt.Errorf("compare error")
	c.On("Compare", "x", "y").Return(0, errCompare).Once()

	_, err := s.mtchr.Match(M{"a": "x"}, M{"a": "y"})
	s.ErrorIs(err, errCompare)
	c.AssertExpectations(s.T())
}

// Matching a non-string to a regular expression always yields false.
func (s *MatcherTestSuite) TestRegexNonString() {
	s.NotMatches(s.mtchr.Match(M{"test": true}, M{"test": regexp.MustCompile(`true`)}))
	s.NotMatches(s.mtchr.Match(M{"test": nil}, M{"test": regexp.MustCompile(`nil`)}))
	s.NotMatches(s.mtchr.Match(M{"test": 42}, M{"test": regexp.MustCompile(`42`)}))
	s.NotMatches(s.mtchr.Match(M{}, M{"test": regexp.MustCompile(`^a$`)}))
}

// Regular expression matching.
func (s *MatcherTestSuite) TestMatchBasicQueryStringRegex() {
	s.Matches(s.mtchr.Match(M{"test": "true"}, M{"test": regexp.MustCompile(`true`)}))
	s.Matches(s.mtchr.Match(M{"test": "babaaaar"}, M{"test": regexp.MustCompile(`aba+r`)}))
	s.NotMatches(s.mtchr.Match(M{"test": "babaaaar"}, M{"test": regexp.MustCompile(`^aba+r`)}))
	s.NotMatches(s.mtchr.Match(M{"test": "true"}, M{"test": regexp.MustCompile(`t[ru]e`)}))
	s.Matches(s.mtchr.Match(M{"test": "TRUE"}, M{"test": bson.Regex{Pattern: "true", Options: "i"}}))
	s.Matches(s.mtchr.Match(M{"test": A{"no", "yes"}}, M{"test": regexp.MustCompile(`^y`)}))
}

// Can match strings using the $regex operator.
func (s *MatcherTestSuite) TestMatchStringRegexOperator() {
	s.Matches(s.mtchr.Match(M{"test": "true"}, M{"test": M{"$regex": "true"}}))
	s.Matches(s.mtchr.Match(M{"test": "babaaaar"}, M{"test": M{"$regex": regexp.MustCompile(`aba+r`)}}))
	s.NotMatches(s.mtchr.Match(M{"test": "babaaaar"}, M{"test": M{"$regex": "^aba+r"}}))
	s.Matches(s.mtchr.Match(M{"test": "Hello\nWorld"}, M{"test": M{"$regex": "^world", "$options": "im"}}))
	s.NotMatches(s.mtchr.Match(M{"test": "Hello\nWorld"}, M{"test": M{"$regex": "^world", "$options": "i"}}))
}

// Invalid $regex arguments return errors.
func (s *MatcherTestSuite) TestInvalidRegex() {
	_, err := s.mtchr.Match(M{"test": "a"}, M{"test": M{"$regex": 42}})
	s.ErrorAs(err, &ErrCompArgType{})

	_, err = s.mtchr.Match(M{"test": "a"}, M{"test": M{"$regex": "a", "$options": "x"}})
	s.ErrorContains(err, "unsupported regex option")

	_, err = s.mtchr.Match(M{"test": "a"}, M{"test": M{"$options": "i"}})
	s.ErrorIs(err, ErrOptionsWithoutRegex)

	_, err = s.mtchr.Match(M{"test": "a"}, M{"test": M{"$regex": "("}})
	s.Error(err)
}

// Compiled patterns are cached, and the cache can be disabled.
func (s *MatcherTestSuite) TestRegexCache() {
	s.Matches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$regex": "^a"}}))
	s.Matches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$regex": "^a"}}))
	s.Equal(1, s.mtchr.regexes.Len())

	s.mtchr = NewMatcher(WithRegexCacheSize(0)).(*Matcher)
	s.Nil(s.mtchr.regexes)
	s.Matches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$regex": "^a"}}))
}

// Can use the $regex operator in conjunction with other operators.
func (s *MatcherTestSuite) TestRegexWithOtherOps() {
	s.Matches(s.mtchr.Match(M{"test": "helLo"}, M{"test": M{
		"$regex": "(?i)ll",
		"$nin":   A{"helL", "helLop"},
	}}))
	s.NotMatches(s.mtchr.Match(M{"test": "helLo"}, M{"test": M{
		"$regex": "(?i)ll",
		"$nin":   A{"helLo", "helLop"},
	}}))
}

// Range operators only compare values of the same type.
func (s *MatcherTestSuite) TestRange() {
	s.Matches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$lt": 6}}))
	s.NotMatches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$lt": 5}}))
	s.Matches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$lte": 5}}))
	s.Matches(s.mtchr.Match(M{"a": 5.5}, M{"a": M{"$gt": 5}}))
	s.Matches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$gte": 5, "$lt": 10}}))
	s.NotMatches(s.mtchr.Match(M{"a": 10}, M{"a": M{"$gte": 5, "$lt": 10}}))
	s.Matches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$gt": "abb"}}))

	s.NotMatches(s.mtchr.Match(M{"a": "5"}, M{"a": M{"$lt": 6}}))
	s.NotMatches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$lt": M{"a": 6}}}))
	s.NotMatches(s.mtchr.Match(M{"a": nil}, M{"a": M{"$lt": 6}}))
	s.NotMatches(s.mtchr.Match(M{}, M{"a": M{"$gt": 6}}))

	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Matches(s.mtchr.Match(M{"a": date}, M{"a": M{"$lt": date.Add(time.Hour)}}))
	s.NotMatches(s.mtchr.Match(M{"a": date}, M{"a": M{"$gt": date}}))
}

// Range operators look up array items.
func (s *MatcherTestSuite) TestRangeLooksUpArrayItems() {
	doc := M{"tags": A{1, 20, "x"}}
	s.Matches(s.mtchr.Match(doc, M{"tags": M{"$gt": 10}}))
	s.Matches(s.mtchr.Match(doc, M{"tags": M{"$lt": 2}}))
	s.NotMatches(s.mtchr.Match(doc, M{"tags": M{"$gt": 20}}))
}

func (s *MatcherTestSuite) TestEqAndNe() {
	s.Matches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$eq": 1}}))
	s.NotMatches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$ne": 1}}))
	s.Matches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$ne": 2}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$ne": 2}}))
	s.NotMatches(s.mtchr.Match(M{"a": A{1, 2}}, M{"a": M{"$ne": 2}}))
}

func (s *MatcherTestSuite) TestIn() {
	s.Matches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$in": A{3, 1}}}))
	s.NotMatches(s.mtchr.Match(M{"a": 2}, M{"a": M{"$in": A{3, 1}}}))
	s.NotMatches(s.mtchr.Match(M{"a": 2}, M{"a": M{"$in": A{}}}))
	s.Matches(s.mtchr.Match(M{"a": A{5, 1}}, M{"a": M{"$in": A{3, 1}}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$in": A{nil}}}))
	s.Matches(s.mtchr.Match(M{"a": "Hello"}, M{"a": M{"$in": A{regexp.MustCompile("^H")}}}))

	_, err := s.mtchr.Match(M{"a": 1}, M{"a": M{"$in": 1}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestNin() {
	s.NotMatches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$nin": A{3, 1}}}))
	s.Matches(s.mtchr.Match(M{"a": 2}, M{"a": M{"$nin": A{3, 1}}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$nin": A{3, 1}}}))
	s.NotMatches(s.mtchr.Match(M{}, M{"a": M{"$nin": A{nil}}}))

	_, err := s.mtchr.Match(M{"a": 1}, M{"a": M{"$nin": "a"}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestAll() {
	doc := M{"tags": A{"a", "b", "c"}}
	s.Matches(s.mtchr.Match(doc, M{"tags": M{"$all": A{"a", "c"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"tags": M{"$all": A{"a", "d"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"tags": M{"$all": A{}}}))

	_, err := s.mtchr.Match(doc, M{"tags": M{"$all": "a"}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestExists() {
	s.Matches(s.mtchr.Match(M{"a": nil}, M{"a": M{"$exists": true}}))
	s.NotMatches(s.mtchr.Match(M{}, M{"a": M{"$exists": true}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$exists": false}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$exists": 0}}))
	s.Matches(s.mtchr.Match(M{"a": 1}, M{"a": M{"$exists": 1}}))
	s.Matches(s.mtchr.Match(M{"a": A{M{"b": 1}, M{}}}, M{"a.b": M{"$exists": true}}))
	s.NotMatches(s.mtchr.Match(M{"a": A{M{}, M{}}}, M{"a.b": M{"$exists": true}}))
}

func (s *MatcherTestSuite) TestSize() {
	doc := M{"a": A{1, 2, 3}}
	s.Matches(s.mtchr.Match(doc, M{"a": M{"$size": 3}}))
	s.Matches(s.mtchr.Match(doc, M{"a": M{"$size": 3.0}}))
	s.NotMatches(s.mtchr.Match(doc, M{"a": M{"$size": 2}}))
	s.NotMatches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$size": 3}}))
	s.NotMatches(s.mtchr.Match(M{}, M{"a": M{"$size": 0}}))
	s.Matches(s.mtchr.Match(M{"a": A{}}, M{"a": M{"$size": 0}}))

	nested := M{"h": A{M{"b": A{1}}, M{"b": A{1, 2}}}}
	s.Matches(s.mtchr.Match(nested, M{"h.b": M{"$size": 2}}))
	s.NotMatches(s.mtchr.Match(nested, M{"h.b": M{"$size": 3}}))

	_, err := s.mtchr.Match(doc, M{"a": M{"$size": 1.5}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestElemMatch() {
	doc := M{"children": A{
		M{"name": "Huguinho", "age": 7},
		M{"name": "Zezinho", "age": 8},
	}}
	s.Matches(s.mtchr.Match(doc, M{"children": M{"$elemMatch": M{"name": "Zezinho", "age": 8}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"children": M{"$elemMatch": M{"name": "Zezinho", "age": 7}}}))
	s.Matches(s.mtchr.Match(doc, M{"children": M{"$elemMatch": M{"age": M{"$gt": 7}}}}))
	s.NotMatches(s.mtchr.Match(M{"children": A{}}, M{"children": M{"$elemMatch": M{"age": 1}}}))
	s.NotMatches(s.mtchr.Match(M{}, M{"children": M{"$elemMatch": M{"age": 1}}}))

	scores := M{"scores": A{3, 12}}
	s.Matches(s.mtchr.Match(scores, M{"scores": M{"$elemMatch": M{"$gt": 10, "$lt": 15}}}))
	s.NotMatches(s.mtchr.Match(scores, M{"scores": M{"$elemMatch": M{"$gt": 4, "$lt": 10}}}))

	_, err := s.mtchr.Match(scores, M{"scores": M{"$elemMatch": 1}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestNot() {
	s.NotMatches(s.mtchr.Match(M{"a": 5}, M{"a": M{"$not": M{"$gt": 4}}}))
	s.Matches(s.mtchr.Match(M{"a": 3}, M{"a": M{"$not": M{"$gt": 4}}}))
	s.Matches(s.mtchr.Match(M{}, M{"a": M{"$not": M{"$gt": 4}}}))
	s.NotMatches(s.mtchr.Match(M{"a": "abc"}, M{"a": M{"$not": regexp.MustCompile("^a")}}))

	_, err := s.mtchr.Match(M{"a": 1}, M{"a": M{"$not": M{"b": 1}}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(M{"a": 1}, M{"a": M{"$not": 1}})
	s.ErrorAs(err, &ErrCompArgType{})
}

func (s *MatcherTestSuite) TestLogicalOperators() {
	doc := M{"a": 1, "b": "x"}
	s.Matches(s.mtchr.Match(doc, M{"$or": A{M{"a": 2}, M{"b": "x"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"$or": A{M{"a": 2}, M{"b": "y"}}}))
	s.Matches(s.mtchr.Match(doc, M{"$and": A{M{"a": 1}, M{"b": "x"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"$and": A{M{"a": 1}, M{"b": "y"}}}))
	s.Matches(s.mtchr.Match(doc, M{"$nor": A{M{"a": 2}, M{"b": "y"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"$nor": A{M{"a": 1}}}))

	// fields and logic operators can be mixed at top level
	s.Matches(s.mtchr.Match(doc, M{"a": 1, "$or": A{M{"b": "x"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"a": 2, "$or": A{M{"b": "x"}}}))

	// nested
	s.Matches(s.mtchr.Match(doc, M{"$or": A{
		M{"$and": A{M{"a": 1}, M{"b": "x"}}},
		M{"a": 5},
	}}))
}

// $expr evaluates arithmetic and comparisons over each document.
func (s *MatcherTestSuite) TestExpr() {
	doc := M{"price": 10, "qty": 3, "paid": 25.5, "name": "x", "sub": M{"n": 4}}

	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$multiply": A{"$price", "$qty"}}, "$paid"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"$expr": M{"$lt": A{M{"$multiply": A{"$price", "$qty"}}, "$paid"}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{M{"$add": A{"$price", "$qty", 1}}, 14}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{M{"$subtract": A{100, "$price"}}, 90}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{M{"$divide": A{"$price", 4}}, 2.5}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{M{"$mod": A{"$price", "$qty"}}, 1}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{"$sub.n", 4}}}))

	// field to field
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$gt": A{"$price", "$qty"}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"$expr": M{"$lte": A{"$price", "$qty"}}}))

	// $literal keeps strings starting with $
	s.NotMatches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{"$name", M{"$literal": "$name"}}}}))
	s.Matches(s.mtchr.Match(M{"name": "$name"}, M{"$expr": M{"$eq": A{"$name", M{"$literal": "$name"}}}}))

	// mixed with field conditions
	s.Matches(s.mtchr.Match(doc, M{"name": "x", "$expr": M{"$gt": A{"$price", 5}}}))
	s.NotMatches(s.mtchr.Match(doc, M{"name": "y", "$expr": M{"$gt": A{"$price", 5}}}))
}

// Arithmetic over a missing field yields null, which sorts below numbers.
func (s *MatcherTestSuite) TestExprMissingField() {
	doc := M{"price": 10}
	s.NotMatches(s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$add": A{"$missing", 1}}, 0}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$lt": A{M{"$add": A{"$missing", 1}}, 0}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$eq": A{"$missing", nil}}}))
}

// Integer arithmetic falls back to floats on overflow.
func (s *MatcherTestSuite) TestExprOverflow() {
	doc := M{"n": int64(math.MaxInt64)}
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$add": A{"$n", "$n"}}, "$n"}}}))
	s.Matches(s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$multiply": A{"$n", 2}}, "$n"}}}))
}

func (s *MatcherTestSuite) TestExprError() {
	doc := M{"price": 10, "zero": 0, "name": "x"}

	_, err := s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$divide": A{"$price", "$zero"}}, 1}}})
	s.ErrorIs(err, ErrDivideByZero)
	_, err = s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$mod": A{"$price", 0}}, 1}}})
	s.ErrorIs(err, ErrDivideByZero)

	_, err = s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$add": A{"$price", "$name"}}, 1}}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(doc, M{"$expr": M{"$gt": A{M{"$subtract": A{"$price"}}, 1}}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(doc, M{"$expr": M{"$pow": A{"$price", 2}}})
	s.ErrorAs(err, &ErrUnknownOperator{})
}

func (s *MatcherTestSuite) TestLogicOpError() {
	_, err := s.mtchr.Match(M{}, M{"$or": M{"a": 1}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(M{}, M{"$and": A{}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(M{}, M{"$and": A{1}})
	s.ErrorAs(err, &ErrCompArgType{})
	_, err = s.mtchr.Match(M{}, M{"$where": "true"})
	s.ErrorIs(err, ErrUnknownOperator{Operator: "$where"})
}

func (s *MatcherTestSuite) TestUnknownOperator() {
	_, err := s.mtchr.Match(M{"a": 1}, M{"a": M{"$gtx": 1}})
	s.ErrorIs(err, ErrUnknownOperator{Operator: "$gtx"})
}

func (s *MatcherTestSuite) TestMixOperators() {
	_, err := s.mtchr.Match(M{"a": 1}, M{"a": M{"$gt": 1, "b": 2}})
	s.ErrorIs(err, ErrMixedOperators)
}

// Values that are not documents are matched as a single field.
func (s *MatcherTestSuite) TestNonDocMatch() {
	s.Matches(s.mtchr.Match(5, 5))
	s.NotMatches(s.mtchr.Match(5, 6))
	s.Matches(s.mtchr.Match(5, M{"$gte": 5}))
	s.Matches(s.mtchr.Match("hello", M{"$in": A{"hello", "world"}}))
	s.NotMatches(s.mtchr.Match(5, M{"a": 5}))
	s.Matches(s.mtchr.Match(M{"a": 1}, M{"$exists": true}))
}

func (s *MatcherTestSuite) TestNilQuery() {
	s.Matches(s.mtchr.Match(M{"a": 1}, nil))
	s.Matches(s.mtchr.Match(M{"a": 1}, M{}))
	_, err := s.mtchr.Match(M{"a": 1}, M{"a": make(chan int)})
	s.ErrorContains(err, "unsupported value")
}

func (s *MatcherTestSuite) TestErrorMessages() {
	s.Equal(`unknown operator "$x"`, ErrUnknownOperator{Operator: "$x"}.Error())
	s.Equal(
		"$in value should be of type list, got int",
		ErrCompArgType{Comp: "$in", Want: "list", Actual: 1}.Error(),
	)
}

func (s *MatcherTestSuite) Matches(matches bool, err error) {
	s.NoError(err)
	s.True(matches)
}

func (s *MatcherTestSuite) NotMatches(matches bool, err error) {
	s.NoError(err)
	s.False(matches)
}

func TestMatcherTestSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}
