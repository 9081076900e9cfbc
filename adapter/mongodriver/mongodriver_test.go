package mongodriver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

// MongoDriverTestSuite runs against the deployment named by GEDM_MONGO_URI.
type MongoDriverTestSuite struct {
	suite.Suite
	ctx    context.Context
	client *Client
	db     *Database
	c      domain.Collection
}

func (s *MongoDriverTestSuite) SetupSuite() {
	uri := os.Getenv("GEDM_MONGO_URI")
	if uri == "" {
		s.T().Skip("GEDM_MONGO_URI not set")
	}
	s.ctx = context.Background()
	cfg := Config{URI: uri, Database: "gedm_test_" + uuid.NewString()[:8], ConnectTimeout: 2 * time.Second}
	client, err := Connect(s.ctx, cfg, WithLogger(zaptest.NewLogger(s.T())))
	if err != nil {
		s.T().Skipf("mongo not available: %v", err)
	}
	s.client = client
	s.db = client.Database()
}

func (s *MongoDriverTestSuite) TearDownSuite() {
	if s.client == nil {
		return
	}
	_ = s.db.Unwrap().Drop(s.ctx)
	s.NoError(s.client.Disconnect(s.ctx))
}

func (s *MongoDriverTestSuite) SetupTest() {
	s.c = s.db.Collection("users")
	s.Require().NoError(s.c.Drop(s.ctx, domain.DropOptions{}))
}

func (s *MongoDriverTestSuite) TestCRUD() {
	id, err := s.c.InsertOne(s.ctx, bson.M{"name": "ann", "age": 30}, domain.InsertOptions{})
	s.Require().NoError(err)
	s.IsType(bson.ObjectID{}, id)

	ids, err := s.c.InsertMany(s.ctx, []any{bson.M{"name": "bob", "age": 20}, bson.M{"name": "cid", "age": 40}}, domain.InsertOptions{Ordered: true})
	s.Require().NoError(err)
	s.Len(ids, 2)

	n, err := s.c.CountDocuments(s.ctx, bson.M{"age": bson.M{"$gte": 30}}, domain.CountOptions{})
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	cur, err := s.c.Find(s.ctx, nil, domain.FindOptions{Sort: bson.D{{Key: "age", Value: 1}}, Projection: bson.M{"name": 1}})
	s.Require().NoError(err)
	var names []string
	for cur.Next(s.ctx) {
		var doc bson.M
		s.Require().NoError(cur.Decode(&doc))
		names = append(names, doc["name"].(string))
	}
	s.Require().NoError(cur.Err())
	s.NoError(cur.Close(s.ctx))
	s.Equal([]string{"bob", "ann", "cid"}, names)

	doc, err := s.c.FindOneAndUpdate(s.ctx, bson.M{"name": "ann"}, bson.M{"$inc": bson.M{"age": 1}}, domain.FindOneAndModifyOptions{ReturnAfter: true})
	s.Require().NoError(err)
	s.Equal(int64(31), doc["age"])

	_, err = s.c.FindOneAndDelete(s.ctx, bson.M{"name": "nobody"}, domain.FindOneAndModifyOptions{})
	s.ErrorIs(err, domain.ErrNoDocuments)

	res, err := s.c.UpdateMany(s.ctx, nil, bson.M{"$set": bson.M{"active": true}}, domain.UpdateOptions{})
	s.Require().NoError(err)
	s.Equal(int64(3), res.ModifiedCount)

	del, err := s.c.DeleteMany(s.ctx, bson.M{"age": bson.M{"$lt": 35}}, domain.DeleteOptions{})
	s.Require().NoError(err)
	s.Equal(int64(2), del.DeletedCount)
}

func (s *MongoDriverTestSuite) TestUniqueIndex() {
	names, err := s.c.CreateIndexes(s.ctx, []domain.IndexModel{{Keys: bson.D{{Key: "email", Value: 1}}, Unique: true}}, domain.IndexOptions{})
	s.Require().NoError(err)
	s.Equal([]string{"email_1"}, names)

	_, err = s.c.InsertOne(s.ctx, bson.M{"email": "a@b.c"}, domain.InsertOptions{})
	s.Require().NoError(err)
	_, err = s.c.InsertOne(s.ctx, bson.M{"email": "a@b.c"}, domain.InsertOptions{})
	var cv *domain.ErrConstraintViolated
	s.Require().ErrorAs(err, &cv)
	s.Equal("email_1", cv.Index)
}

func (s *MongoDriverTestSuite) TestBulkWrite() {
	res, err := s.c.BulkWrite(s.ctx, []domain.WriteModel{
		{Kind: domain.WriteInsertOne, Document: bson.M{"_id": 1, "n": 1}},
		{Kind: domain.WriteUpdateOne, Filter: bson.M{"_id": 2}, Update: bson.M{"$set": bson.M{"n": 2}}, Upsert: true},
		{Kind: domain.WriteDeleteMany, Filter: bson.M{"n": 1}},
	}, domain.BulkWriteOptions{Ordered: true})
	s.Require().NoError(err)
	s.Equal(int64(1), res.InsertedCount)
	s.Equal(int64(1), res.UpsertedCount)
	s.Equal(int64(1), res.DeletedCount)
	s.Contains(res.UpsertedIDs, int64(1))
}

func (s *MongoDriverTestSuite) TestTransaction() {
	sess, err := s.db.StartSession(s.ctx, domain.SessionOptions{CausalConsistency: true})
	s.Require().NoError(err)
	defer sess.EndSession(s.ctx)

	s.Require().NoError(sess.StartTransaction(domain.TransactionOptions{MaxCommitTime: 5 * time.Second}))
	s.True(sess.(*Session).InTransaction())
	_, err = s.c.InsertOne(s.ctx, bson.M{"t": 1}, domain.InsertOptions{Session: sess})
	if err != nil {
		s.T().Skipf("transactions not supported: %v", err)
	}
	s.Require().NoError(sess.AbortTransaction(s.ctx))
	s.False(sess.(*Session).InTransaction())

	n, err := s.c.CountDocuments(s.ctx, nil, domain.CountOptions{})
	s.Require().NoError(err)
	s.Zero(n)
}

func TestMongoDriverTestSuite(t *testing.T) {
	suite.Run(t, new(MongoDriverTestSuite))
}
