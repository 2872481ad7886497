package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/api/metrics"
	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/internal/core/ports"
)

// Store persists JSON values under versioned keys in one namespace. Values
// are compressed before they are written. Every operation fails soft: a
// broken backend or a corrupt slot yields nil, never an error or a panic.
type Store struct {
	ns      domain.Namespace
	kv      ports.KeyValueStore
	codec   ports.Codec
	version int
	log     zerolog.Logger
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithVersion sets the schema version appended to physical keys.
func WithVersion(v int) StoreOption {
	return func(s *Store) {
		if v > 0 {
			s.version = v
		}
	}
}

// NewStore returns a Store for namespace ns backed by kv.
func NewStore(ns domain.Namespace, kv ports.KeyValueStore, codec ports.Codec, log zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		ns:      ns,
		kv:      kv,
		codec:   codec,
		version: domain.DefaultSchemaVersion,
		log:     log.With().Str("namespace", string(ns)).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the namespace this store writes to.
func (s *Store) Namespace() domain.Namespace { return s.ns }

// Version returns the schema version used for physical keys.
func (s *Store) Version() int { return s.version }

// Write stores value under key and returns it unchanged. A nil value,
// including a typed nil pointer, map or slice, deletes the key. When storage
// is unavailable Write returns nil. When the value cannot be encoded or
// stored, the slot is dropped and value is returned.
func (s *Store) Write(ctx context.Context, key string, value any) any {
	err := s.Put(ctx, key, value)
	if isNil(value) || errors.Is(err, domain.ErrStorageUnavailable) {
		return nil
	}
	return value
}

// Put is Write with the outcome reported. It returns
// domain.ErrStorageUnavailable when there is no backend and the encode or
// backend error otherwise; a failed slot is dropped either way.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	if isNil(value) {
		s.Delete(ctx, key)
		return nil
	}
	metrics.StoreOperationsTotal.WithLabelValues(string(s.ns), "write").Inc()

	physical := domain.PhysicalKey(key, s.version)
	err := s.put(ctx, physical, value)
	if err == nil || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}

	_ = s.kv.Remove(ctx, physical)
	s.log.Error().Err(err).Str("key", key).Msg("failed to write data to store")
	return fmt.Errorf("write %s: %w", key, err)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (s *Store) put(ctx context.Context, physical string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	enc, err := s.codec.Compress(string(raw))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, physical, enc)
}

// Read returns the decoded JSON value stored under key, or nil. A slot that
// is missing or cannot be decoded is evicted.
func (s *Store) Read(ctx context.Context, key string) any {
	var out any
	if !s.Load(ctx, key, &out) {
		return nil
	}
	return out
}

// Load decodes the value stored under key into dst and reports whether it
// succeeded. It follows the same eviction rules as Read.
func (s *Store) Load(ctx context.Context, key string, dst any) bool {
	metrics.StoreOperationsTotal.WithLabelValues(string(s.ns), "read").Inc()

	physical := domain.PhysicalKey(key, s.version)
	raw, found, err := s.kv.Get(ctx, physical)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageUnavailable) {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to read from store")
		}
		return false
	}

	// A missing slot decodes as empty text, which is not valid JSON either,
	// so both cases take the eviction path below.
	text, err := s.codec.Decompress(raw)
	if err == nil {
		err = json.Unmarshal([]byte(text), dst)
	}
	if err != nil {
		_ = s.kv.Remove(ctx, physical)
		if found {
			metrics.StoreEvictionsTotal.WithLabelValues(string(s.ns)).Inc()
			s.log.Error().Err(err).Str("key", key).Msg("failed to parse data from store")
		}
		return false
	}
	return true
}

// Delete removes key. Both the bare key and the versioned key are removed so
// that values written by older releases are cleared as well.
func (s *Store) Delete(ctx context.Context, key string) {
	metrics.StoreOperationsTotal.WithLabelValues(string(s.ns), "delete").Inc()

	for _, k := range []string{key, domain.PhysicalKey(key, s.version)} {
		if err := s.kv.Remove(ctx, k); err != nil && !errors.Is(err, domain.ErrStorageUnavailable) {
			s.log.Warn().Err(err).Str("key", k).Msg("failed to delete from store")
		}
	}
}

// Stores groups the local (persistent) and session (process-lifetime) stores.
type Stores struct {
	Local   *Store
	Session *Store
}

// For returns the store for namespace ns.
func (s Stores) For(ns domain.Namespace) *Store {
	if ns == domain.NamespaceSession {
		return s.Session
	}
	return s.Local
}
