package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type DecoderTestSuite struct {
	suite.Suite
	d domain.Decoder
}

func (s *DecoderTestSuite) SetupTest() {
	s.d = NewDecoder()
}

func (s *DecoderTestSuite) TestMap() {
	src := map[string]any{"a": int64(1), "b": map[string]any{"c": []any{"x"}}}

	var m bson.M
	s.Require().NoError(s.d.Decode(src, &m))
	s.Equal(bson.M(src), m)

	m["b"].(map[string]any)["c"].([]any)[0] = "changed"
	s.Equal("x", src["b"].(map[string]any)["c"].([]any)[0])

	var plain map[string]any
	s.Require().NoError(s.d.Decode(src, &plain))
	s.Equal(src, plain)
}

func (s *DecoderTestSuite) TestOrderedDocument() {
	src := map[string]any{"z": int64(1), "_id": "id", "a": map[string]any{"y": true, "b": []any{map[string]any{"k": int64(2)}}}}

	var d bson.D
	s.Require().NoError(s.d.Decode(src, &d))
	s.Equal(bson.D{
		{Key: "_id", Value: "id"},
		{Key: "a", Value: bson.D{
			{Key: "b", Value: bson.A{bson.D{{Key: "k", Value: int64(2)}}}},
			{Key: "y", Value: true},
		}},
		{Key: "z", Value: int64(1)},
	}, d)
}

func (s *DecoderTestSuite) TestStruct() {
	type address struct {
		City string `bson:"city"`
	}
	type person struct {
		ID      string    `bson:"_id"`
		Name    string    `bson:"name"`
		Age     int64     `bson:"age"`
		Tags    []string  `bson:"tags"`
		Address address   `bson:"address"`
		Born    time.Time `bson:"born"`
	}
	born := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	var p person
	s.Require().NoError(s.d.Decode(map[string]any{
		"_id":     "1",
		"name":    "ana",
		"age":     int64(30),
		"tags":    []any{"a", "b"},
		"address": map[string]any{"city": "x"},
		"born":    born,
	}, &p))
	s.Equal(person{
		ID: "1", Name: "ana", Age: 30, Tags: []string{"a", "b"},
		Address: address{City: "x"}, Born: born,
	}, p)
}

func (s *DecoderTestSuite) TestInvalidTarget() {
	s.ErrorIs(s.d.Decode(map[string]any{}, nil), ErrTargetNil)

	var m bson.M
	s.ErrorIs(s.d.Decode(map[string]any{}, m), ErrNonPointer)
}

func (s *DecoderTestSuite) TestWrongType() {
	var target struct {
		A int64 `bson:"a"`
	}
	err := s.d.Decode(map[string]any{"a": "not a number"}, &target)
	s.ErrorAs(err, new(ErrDecode))

	var m bson.M
	s.ErrorAs(s.d.Decode("str", &m), new(ErrDecode))
}

func TestDecoderTestSuite(t *testing.T) {
	suite.Run(t, new(DecoderTestSuite))
}
