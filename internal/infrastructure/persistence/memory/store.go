// Package memory implements an in-process blob store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meetme/progression-engine/internal/domain/blob"
)

// Store is a map-backed blob.Store. Values are copied in and out.
type Store struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Get implements blob.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, blob.ErrKeyEmpty
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.blobs[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements blob.Store.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return blob.ErrKeyEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements blob.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	if key == "" {
		return blob.ErrKeyEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
