// Package memory provides a process-local key/value store. It lives as long
// as the process, which makes it the natural backing for session storage.
package memory

import (
	"context"
	"sync"
)

type Store struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewStore() *Store {
	return &Store{items: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}
