// Package idgenerator contains the default [domain.IDGenerator] implementation.
// It generates bson.ObjectID values unless configured to generate UUIDs.
package idgenerator

import (
	"crypto/rand"
	"io"

	"github.com/google/uuid"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
	uuid   bool
}

// NewIDGenerator implements [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	i := IDGenerator{
		reader: rand.Reader,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// GenerateID implements [domain.IDGenerator].
func (i *IDGenerator) GenerateID() (any, error) {
	if !i.uuid {
		return bson.NewObjectID(), nil
	}
	id, err := uuid.NewRandomFromReader(i.reader)
	if err != nil {
		return nil, err
	}
	return id.String(), nil
}
