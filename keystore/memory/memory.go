// Package memory provides a fixed in-memory key set for the keystore
// interface.
package memory

import (
	"context"
	"sync"

	"github.com/northlabs/north-mcp-go/keystore"
)

// Store is an in-memory key set. The zero value is an empty store; use
// New to seed keys.
type Store struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

// New creates a store holding the given keys.
func New(keys ...string) *Store {
	s := &Store{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
	return s
}

// Contains implements keystore.KeyStore.
func (s *Store) Contains(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

// Add inserts a key at runtime.
func (s *Store) Add(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = map[string]struct{}{}
	}
	s.keys[key] = struct{}{}
}

// Remove deletes a key at runtime.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}

var _ keystore.KeyStore = (*Store)(nil)
