package index

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type hasherMock struct{ mock.Mock }

// Hash implements [domain.Hasher].
func (h *hasherMock) Hash(v any) (uint64, error) {
	call := h.Called(v)
	return uint64(call.Int(0)), call.Error(1)
}

type IndexTestSuite struct {
	suite.Suite
}

func (s *IndexTestSuite) newIndex(model domain.IndexModel, opts ...Option) *Index {
	idx, err := NewIndex(model, opts...)
	s.Require().NoError(err)
	return idx.(*Index)
}

func (s *IndexTestSuite) keys(field string, dir any) bson.D {
	return bson.D{{Key: field, Value: dir}}
}

func (s *IndexTestSuite) TestInvalidModel() {
	_, err := NewIndex(domain.IndexModel{})
	s.ErrorIs(err, ErrInvalidModel)

	_, err = NewIndex(domain.IndexModel{Keys: bson.D{{Key: "a", Value: 1}, {Key: "a", Value: -1}}})
	s.ErrorIs(err, ErrInvalidModel)

	_, err = NewIndex(domain.IndexModel{Keys: s.keys("a..b", 1)})
	s.ErrorIs(err, ErrInvalidModel)
}

func (s *IndexTestSuite) TestModel() {
	model := domain.IndexModel{Keys: s.keys("a", 1), Unique: true}
	idx := s.newIndex(model)
	s.Equal(model, idx.Model())
}

func (s *IndexTestSuite) TestInsert() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1)})
	s.NoError(idx.Insert(
		data.M{"_id": int64(1), "a": "x"},
		data.M{"_id": int64(2), "a": "y"},
		data.M{"_id": int64(3), "a": "x"},
	))
	s.Equal(2, idx.GetNumberOfKeys())

	found, err := idx.Tree.Search("x")
	s.NoError(err)
	s.Require().NotNil(found)
	s.Len(found.Values, 2)
}

func (s *IndexTestSuite) TestUnique() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true, Name: "a_unique"})
	s.NoError(idx.Insert(data.M{"_id": int64(1), "a": int64(1)}))

	err := idx.Insert(data.M{"_id": int64(2), "a": 1.0})
	var violated *domain.ErrConstraintViolated
	s.Require().ErrorAs(err, &violated)
	s.Equal("a_unique", violated.Index)
	s.Equal(1.0, violated.Key)
	s.Equal(1, idx.GetNumberOfKeys())
}

func (s *IndexTestSuite) TestUniqueMissingFields() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true})
	s.NoError(idx.Insert(data.M{"_id": int64(1)}))

	err := idx.Insert(data.M{"_id": int64(2), "a": nil})
	s.ErrorAs(err, new(*domain.ErrConstraintViolated))
}

func (s *IndexTestSuite) TestInsertRollback() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true})
	s.NoError(idx.Insert(data.M{"_id": int64(1), "a": int64(5)}))

	err := idx.Insert(
		data.M{"_id": int64(2), "a": int64(6)},
		data.M{"_id": int64(3), "a": int64(7)},
		data.M{"_id": int64(4), "a": int64(5)},
	)
	s.Error(err)
	s.Equal(1, idx.GetNumberOfKeys())

	found, err := idx.Tree.Search(int64(6))
	s.NoError(err)
	s.Nil(found)
}

func (s *IndexTestSuite) TestSparse() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true, Sparse: true})
	s.NoError(idx.Insert(
		data.M{"_id": int64(1)},
		data.M{"_id": int64(2)},
		data.M{"_id": int64(3), "a": int64(1)},
	))
	s.Equal(1, idx.GetNumberOfKeys())
	s.NoError(idx.Remove(data.M{"_id": int64(1)}))
}

func (s *IndexTestSuite) TestPartialFilter() {
	idx := s.newIndex(domain.IndexModel{
		Keys:          s.keys("email", 1),
		Unique:        true,
		PartialFilter: bson.M{"active": true},
	})
	s.NoError(idx.Insert(
		data.M{"_id": int64(1), "email": "a", "active": false},
		data.M{"_id": int64(2), "email": "a", "active": true},
	))
	s.Error(idx.Insert(data.M{"_id": int64(3), "email": "a", "active": true}))
	s.NoError(idx.Insert(data.M{"_id": int64(4), "email": "a"}))
}

func (s *IndexTestSuite) TestArrayValues() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("tags", 1), Unique: true})
	s.NoError(idx.Insert(data.M{"_id": int64(1), "tags": []any{"a", "b", "a"}}))
	s.Equal(2, idx.GetNumberOfKeys())

	s.Error(idx.Insert(data.M{"_id": int64(2), "tags": []any{"c", "b"}}))
	s.Equal(2, idx.GetNumberOfKeys())

	s.NoError(idx.Remove(data.M{"_id": int64(1), "tags": []any{"a", "b", "a"}}))
	s.Equal(0, idx.GetNumberOfKeys())
}

func (s *IndexTestSuite) TestNestedArrayValues() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("items.sku", 1)})
	s.NoError(idx.Insert(data.M{"_id": int64(1), "items": []any{
		data.M{"sku": "x"}, data.M{"sku": "y"}, data.M{"qty": int64(1)},
	}}))
	found, err := idx.Tree.Search("y")
	s.NoError(err)
	s.NotNil(found)
}

func (s *IndexTestSuite) TestCompound() {
	idx := s.newIndex(domain.IndexModel{
		Keys:   bson.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}},
		Unique: true,
	})
	s.NoError(idx.Insert(
		data.M{"_id": int64(1), "a": int64(1), "b": int64(1)},
		data.M{"_id": int64(2), "a": int64(1), "b": int64(2)},
		data.M{"_id": int64(3), "a": int64(2)},
	))
	s.Equal(3, idx.GetNumberOfKeys())
	s.Error(idx.Insert(data.M{"_id": int64(4), "a": int64(1), "b": 2.0}))
}

func (s *IndexTestSuite) TestRemove() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1)})
	doc1 := data.M{"_id": int64(1), "a": "x"}
	doc2 := data.M{"_id": int64(2), "a": "x"}
	s.NoError(idx.Insert(doc1, doc2))

	s.NoError(idx.Remove(doc1))
	found, err := idx.Tree.Search("x")
	s.NoError(err)
	s.Require().NotNil(found)
	s.Len(found.Values, 1)
}

// Removing keys in the middle of the tree keeps every other key reachable.
func (s *IndexTestSuite) TestRemoveInnerKeys() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true})
	order := []int64{50, 30, 70, 20, 40, 60, 80, 10, 25, 35, 45, 65, 75, 85}
	docs := make(map[int64]data.M, len(order))
	for _, k := range order {
		docs[k] = data.M{"_id": k, "a": k}
		s.Require().NoError(idx.Insert(docs[k]))
	}

	removed := []int64{30, 50, 70, 25}
	for _, k := range removed {
		s.Require().NoError(idx.Remove(docs[k]))
	}
	s.Equal(len(order)-len(removed), idx.GetNumberOfKeys())

	for _, k := range order {
		found, err := idx.Tree.Search(k)
		s.NoError(err)
		if slices.Contains(removed, k) {
			s.Nil(found, k)
			continue
		}
		s.Require().NotNil(found, k)
		s.Len(found.Values, 1)
	}

	// freed keys can be used again
	s.NoError(idx.Insert(data.M{"_id": int64(100), "a": int64(50)}))
	s.ErrorAs(idx.Insert(data.M{"_id": int64(101), "a": int64(40)}), new(*domain.ErrConstraintViolated))
}

func (s *IndexTestSuite) TestUpdate() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true})
	old := data.M{"_id": int64(1), "a": int64(1)}
	other := data.M{"_id": int64(2), "a": int64(2)}
	s.NoError(idx.Insert(old, other))

	s.NoError(idx.Update(old, data.M{"_id": int64(1), "a": int64(3)}))
	found, err := idx.Tree.Search(int64(1))
	s.NoError(err)
	s.Nil(found)

	err = idx.Update(other, data.M{"_id": int64(2), "a": int64(3)})
	s.ErrorAs(err, new(*domain.ErrConstraintViolated))
	found, err = idx.Tree.Search(int64(2))
	s.NoError(err)
	s.NotNil(found)
}

func (s *IndexTestSuite) TestUpdateMultipleDocsReverts() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1), Unique: true})
	d1 := data.M{"_id": int64(1), "a": int64(1)}
	d2 := data.M{"_id": int64(2), "a": int64(2)}
	s.NoError(idx.Insert(d1, d2))

	err := idx.UpdateMultipleDocs(
		domain.Update{OldDoc: d1, NewDoc: data.M{"_id": int64(1), "a": int64(10)}},
		domain.Update{OldDoc: d2, NewDoc: data.M{"_id": int64(2), "a": int64(10)}},
	)
	s.Error(err)
	s.Equal(2, idx.GetNumberOfKeys())
	for _, k := range []int64{1, 2} {
		found, err := idx.Tree.Search(k)
		s.NoError(err)
		s.NotNil(found)
	}
}

func (s *IndexTestSuite) TestReset() {
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1)})
	s.NoError(idx.Insert(data.M{"_id": int64(1), "a": int64(1)}))
	s.NoError(idx.Reset(data.M{"_id": int64(2), "a": int64(2)}, data.M{"_id": int64(3), "a": int64(3)}))
	s.Equal(2, idx.GetNumberOfKeys())
}

func (s *IndexTestSuite) TestHashError() {
	h := new(hasherMock)
	h.On("Hash", int64(1)).Return(0, errors.New("boom")).Once()
	idx := s.newIndex(domain.IndexModel{Keys: s.keys("a", 1)}, WithHasher(h))

	s.ErrorContains(idx.Insert(data.M{"_id": int64(1), "a": int64(1)}), "boom")
	s.Equal(0, idx.GetNumberOfKeys())
	h.AssertExpectations(s.T())
}

func TestIndexTestSuite(t *testing.T) {
	suite.Run(t, new(IndexTestSuite))
}
