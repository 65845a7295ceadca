// Package store keeps registered face embeddings keyed by opaque identifiers.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/example/faceauth/internal/faceengine"
)

// ErrNotFound is returned when no embedding is stored under an identifier.
var ErrNotFound = errors.New("embedding not found")

// ErrExists is returned when an identifier is already taken. Entries are
// never overwritten.
var ErrExists = errors.New("embedding identifier already exists")

// EmbeddingStore maps identifiers to embeddings.
type EmbeddingStore interface {
	Put(ctx context.Context, id string, embedding faceengine.Embedding) error
	Get(ctx context.Context, id string) (faceengine.Embedding, error)
}

// MemoryStore is the default backend. Entries live as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]faceengine.Embedding
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]faceengine.Embedding)}
}

// Put stores embedding under id.
func (s *MemoryStore) Put(_ context.Context, id string, embedding faceengine.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return ErrExists
	}
	s.entries[id] = embedding
	return nil
}

// Get returns the embedding stored under id.
func (s *MemoryStore) Get(_ context.Context, id string) (faceengine.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	embedding, ok := s.entries[id]
	if !ok {
		return faceengine.Embedding{}, ErrNotFound
	}
	return embedding, nil
}

// Len reports how many embeddings are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
