package core

import "context"

// PersistenceStore is the boundary interface for saving and loading instance
// memory across process restarts. The core defines what is persisted (the
// definition's encoded memory, keyed by the same composite key used
// internally) and when (store checkpoints); the physical transport and
// serialization medium are the adapter's concern.
//
// Contract:
//   - Load returns ErrMemoryNotFound when no memory exists for the key; any
//     other error (corrupt data, I/O failure) must surface as-is so the store
//     can wrap it in *PersistenceError rather than silently treating it as a
//     miss
//   - Save overwrites atomically per key; the stored bytes round-trip
//     faithfully through a later Load
type PersistenceStore interface {
	Load(ctx context.Context, key InstanceKey) ([]byte, error)
	Save(ctx context.Context, key InstanceKey, memory []byte) error
}
