package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Instance is a live, keyed memory object created from a definition. It is
// exclusively owned by the instance store; action handlers and the render
// pipeline are granted scoped access to the memory for the duration of a
// single turn, never ownership.
//
// Contract:
//   - The key is immutable for the instance's life
//   - Mutation is exclusive and all-or-nothing per Mutate invocation
//   - Render is serialized against mutation and observes the memory state as
//     of the moment it runs; it never commits memory changes
type Instance struct {
	key       InstanceKey
	def       Definition
	createdAt time.Time

	mu             sync.Mutex
	memory         any
	lastRenderedAt time.Time
}

// NewInstance constructs an instance around an initial memory value. Called
// by the instance store on a creation win or a persistence restore; external
// code normally obtains instances through the store's GetOrCreate.
func NewInstance(def Definition, key InstanceKey, memory any) *Instance {
	return &Instance{key: key, def: def, createdAt: time.Now(), memory: memory}
}

// Key returns the composite identity of the instance.
func (i *Instance) Key() InstanceKey { return i.key }

// TypeID returns the type identifier of the owning definition.
func (i *Instance) TypeID() string { return i.key.TypeID }

// Definition returns the owning definition.
func (i *Instance) Definition() Definition { return i.def }

// CreatedAt returns the instant the live instance was constructed.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// LastRenderedAt returns the instant of the last successful render (zero if
// the instance has never been rendered).
func (i *Instance) LastRenderedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastRenderedAt
}

// Mutate grants fn an exclusive, mutable reference to the instance's memory.
// Application is all-or-nothing: when fn returns an error the memory is
// restored from a snapshot taken on entry, so a failed or cancelled handler
// never leaves partially-applied mutations behind. Should the snapshot itself
// fail to restore, the returned error reports both failures. Concurrent
// Mutate calls on the same instance are serialized, never interleaved at
// sub-field granularity.
func (i *Instance) Mutate(fn func(mem any) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	snapshot, err := i.def.EncodeMemory(i.memory)
	if err != nil {
		return fmt.Errorf("snapshotting memory for %s: %w", i.key, err)
	}

	if err := fn(i.memory); err != nil {
		restored, derr := i.def.DecodeMemory(snapshot)
		if derr != nil {
			return errors.Join(err, fmt.Errorf("restoring memory snapshot for %s: %w", i.key, derr))
		}
		i.memory = restored
		return err
	}

	return nil
}

// Render produces the textual representation of the instance's current
// memory. It holds the mutation lock for the duration of the render function
// so the view is never computed against a state being mutated, then stamps
// the render timestamp. The metadata handed to the render function carries
// the previous render instant.
func (i *Instance) Render() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	md := Metadata{Key: i.key, CreatedAt: i.createdAt, LastRenderedAt: i.lastRenderedAt}

	text, err := i.def.Render(i.memory, md)
	if err != nil {
		return "", err
	}

	i.lastRenderedAt = time.Now()

	return text, nil
}

// EncodedMemory snapshots the current memory in its persisted form. Used by
// the store's save checkpoints and by round-trip tests.
func (i *Instance) EncodedMemory() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.def.EncodeMemory(i.memory)
}

// Exclusive runs fn while holding the instance's mutation lock without the
// snapshot/rollback machinery. The store uses it to guarantee eviction never
// detaches an instance mid-mutation.
func (i *Instance) Exclusive(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	fn()
}
