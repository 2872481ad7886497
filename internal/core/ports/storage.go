package ports

import "context"

// KeyValueStore is a string key/value capability backing the persistence
// layer. Get reports ok=false for a missing key without an error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Codec is a reversible text transform applied to stored values.
type Codec interface {
	Compress(text string) (string, error)
	Decompress(text string) (string, error)
}
