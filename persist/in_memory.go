// Package persist provides PersistenceStore implementations for the context
// core. The in-memory store suits tests and single-process prototypes; the
// sqlite subpackage provides a durable implementation.
package persist

import (
	"context"
	"sync"

	"github.com/hupe1980/contextmesh/core"
)

// InMemoryStore is a volatile PersistenceStore keeping encoded memory in a
// process-local map guarded by an RWMutex. Bytes are copied on save and on
// load to avoid accidental external mutation of internal buffers.
//
// This implementation is intentionally minimal; it does not enforce retention
// limits or quotas. For state that must survive process restarts, prefer the
// sqlite implementation or a custom durable adapter.
type InMemoryStore struct {
	mu     sync.RWMutex
	memory map[string][]byte // key string -> encoded memory
}

// NewInMemoryStore returns an empty in-memory persistence store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{memory: make(map[string][]byte)}
}

// Load returns a copy of the stored memory bytes or ErrMemoryNotFound.
func (s *InMemoryStore) Load(_ context.Context, key core.InstanceKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.memory[key.String()]
	if !ok {
		return nil, core.ErrMemoryNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	return cp, nil
}

// Save stores (or overwrites) the memory bytes for the key. The input slice
// is copied before storage.
func (s *InMemoryStore) Save(_ context.Context, key core.InstanceKey, memory []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(memory))
	copy(cp, memory)
	s.memory[key.String()] = cp

	return nil
}

// Delete removes the persisted memory for a key if present.
func (s *InMemoryStore) Delete(_ context.Context, key core.InstanceKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memory[key.String()]; !ok {
		return core.ErrMemoryNotFound
	}
	delete(s.memory, key.String())

	return nil
}

// Len returns the number of persisted entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memory)
}
