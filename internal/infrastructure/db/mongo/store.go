package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionPrefix = "kv_"

// Store is a key/value store backed by one MongoDB collection per namespace.
// Each key is a single document keyed by _id.
type Store struct {
	col *mongo.Collection
}

type entry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewStore returns a Store over the kv_<namespace> collection.
func NewStore(db *mongo.Database, namespace string) *Store {
	return &Store{col: db.Collection(collectionPrefix + namespace)}
}

// Get returns the stored value, ok=false when the document does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e entry
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("mongo find: %w", err)
	}
	return e.Value, true, nil
}

// Set upserts the document for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo upsert: %w", err)
	}
	return nil
}

// Remove deletes the document for key. Missing documents are ignored.
func (s *Store) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	return nil
}
