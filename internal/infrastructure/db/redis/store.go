package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store is a key/value store backed by Redis. Entries have no TTL.
// Key format: <prefix>:<key>
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a Store wrapping the given Redis client. prefix
// namespaces the keys, e.g. "rechart:local".
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Get returns the stored value, ok=false when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

// Set overwrites the value stored under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}
