// Package store implements the context instance store: a keyed table of live
// memory objects with get-or-create semantics, single-flight creation and
// optional persistence restore. It is the only globally shared mutable
// structure in the system; per-instance exclusivity is enforced by the
// instances themselves.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/contextmesh/core"
	"github.com/hupe1980/contextmesh/logging"
)

// Options configures a Store instance using the functional options pattern.
type Options struct {
	// Persistence optionally supplies previously saved memory on first access
	// and receives checkpoint saves. Nil disables persistence entirely.
	Persistence core.PersistenceStore

	// RestoreOnLoadFailure opts into treating a corrupt or otherwise failed
	// load as a cache miss, falling back to fresh creation. Off by default:
	// silent fallback on corruption is a policy decision, not a default.
	RestoreOnLoadFailure bool

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Store is the keyed store of live context instances, one per
// (type identifier, derived key) pair.
//
// Guarantees:
//   - At most one live instance per key within the process
//   - Concurrent first-time accesses for the same key execute the creation
//     path exactly once (single-flight); every caller observes the same
//     instance
//   - A failed resolution (validation, key derivation, load, create) leaves
//     the key space untouched; no partial instance remains behind
//   - Unbounded retention by default; eviction is an explicit extension and
//     never removes an instance mid-mutation
type Store struct {
	registry             *core.Registry
	persistence          core.PersistenceStore
	restoreOnLoadFailure bool
	logger               logging.Logger

	mu        sync.RWMutex
	instances map[string]*core.Instance
	group     singleflight.Group
}

// New constructs a Store over a definition registry.
func New(registry *core.Registry, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Store{
		registry:             registry,
		persistence:          opts.Persistence,
		restoreOnLoadFailure: opts.RestoreOnLoadFailure,
		logger:               opts.Logger,
		instances:            make(map[string]*core.Instance),
	}
}

// GetOrCreate resolves the instance identified by a type identifier and raw
// argument bag, creating it on first access.
//
// Sequence: registry lookup → argument validation → key derivation → fast
// path hit → single-flight creation (persistence restore or fresh create).
// An existing instance is returned unchanged even when the arguments differ
// from those used at creation: the key is authoritative and the original
// creation wins.
func (s *Store) GetOrCreate(ctx context.Context, typeID string, rawArgs map[string]any) (*core.Instance, error) {
	def, err := s.registry.Lookup(typeID)
	if err != nil {
		return nil, err
	}

	args, err := def.ValidateArgs(rawArgs)
	if err != nil {
		return nil, err
	}

	derived, err := def.DeriveKey(args)
	if err != nil {
		return nil, err
	}

	key := core.InstanceKey{TypeID: typeID, Derived: derived}

	if inst, ok := s.Get(key); ok {
		return inst, nil
	}

	v, err, _ := s.group.Do(key.String(), func() (interface{}, error) {
		return s.create(ctx, def, key, args)
	})
	if err != nil {
		return nil, err
	}

	return v.(*core.Instance), nil
}

// create runs inside the single-flight group: at most one execution per key
// is in flight, so the re-check plus insert below upholds the at-most-one
// instance guarantee without holding the store lock across persistence I/O.
func (s *Store) create(ctx context.Context, def core.Definition, key core.InstanceKey, args map[string]any) (*core.Instance, error) {
	if inst, ok := s.Get(key); ok {
		return inst, nil
	}

	memory, restored, err := s.loadOrCreate(ctx, def, key, args)
	if err != nil {
		return nil, err
	}

	inst := core.NewInstance(def, key, memory)

	s.mu.Lock()
	s.instances[key.String()] = inst
	s.mu.Unlock()

	s.logger.Debug("store.instance.created", "context_key", key.String(), "restored", restored)

	return inst, nil
}

// loadOrCreate consults the persistence adapter for previously saved memory
// and falls back to the definition's create function on a miss. The restored
// flag reports which path produced the memory.
func (s *Store) loadOrCreate(ctx context.Context, def core.Definition, key core.InstanceKey, args map[string]any) (any, bool, error) {
	if s.persistence != nil {
		start := time.Now()

		data, err := s.persistence.Load(ctx, key)
		switch {
		case err == nil:
			memory, derr := def.DecodeMemory(data)
			if derr == nil {
				s.logger.Debug("store.persistence.restored", "context_key", key.String(), "duration_ms", time.Since(start).Milliseconds())
				return memory, true, nil
			}
			if !s.restoreOnLoadFailure {
				return nil, false, &core.PersistenceError{Op: "load", Key: key, Cause: derr}
			}
			s.logger.Warn("store.persistence.corrupt_memory_discarded", "context_key", key.String(), "error", derr.Error())

		case errors.Is(err, core.ErrMemoryNotFound):
			// First access for this key; fall through to creation.

		default:
			if !s.restoreOnLoadFailure {
				return nil, false, &core.PersistenceError{Op: "load", Key: key, Cause: err}
			}
			s.logger.Warn("store.persistence.load_failed", "context_key", key.String(), "error", err.Error())
		}
	}

	memory, err := def.NewMemory(args)
	if err != nil {
		return nil, false, fmt.Errorf("creating memory for %s: %w", key, err)
	}

	return memory, false, nil
}

// Get returns the live instance for a key without creating one.
func (s *Store) Get(key core.InstanceKey) (*core.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[key.String()]
	return inst, ok
}

// Len returns the number of live instances.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// Keys returns a snapshot of the live instance keys.
func (s *Store) Keys() []core.InstanceKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]core.InstanceKey, 0, len(s.instances))
	for _, inst := range s.instances {
		keys = append(keys, inst.Key())
	}

	return keys
}

// Evict removes the instance for a key from the store, reporting whether an
// instance was present. The instance's mutation lock is acquired first, so
// an instance mid-mutation is never detached; a later GetOrCreate for the
// key resolves through persistence or fresh creation again.
func (s *Store) Evict(key core.InstanceKey) bool {
	s.mu.RLock()
	inst, ok := s.instances[key.String()]
	s.mu.RUnlock()

	if !ok {
		return false
	}

	inst.Exclusive(func() {
		s.mu.Lock()
		if s.instances[key.String()] == inst {
			delete(s.instances, key.String())
		}
		s.mu.Unlock()
	})

	s.logger.Debug("store.instance.evicted", "context_key", key.String())

	return true
}

// Save checkpoints a single instance's memory through the persistence
// adapter. A nil adapter makes this a no-op so callers can flush
// unconditionally.
func (s *Store) Save(ctx context.Context, inst *core.Instance) error {
	if s.persistence == nil {
		return nil
	}

	data, err := inst.EncodedMemory()
	if err != nil {
		return &core.PersistenceError{Op: "save", Key: inst.Key(), Cause: err}
	}

	if err := s.persistence.Save(ctx, inst.Key(), data); err != nil {
		return &core.PersistenceError{Op: "save", Key: inst.Key(), Cause: err}
	}

	return nil
}

// SaveAll flushes every live instance, used at shutdown or explicit
// checkpoint boundaries. The first failure aborts the flush.
func (s *Store) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	instances := make([]*core.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		instances = append(instances, inst)
	}
	s.mu.RUnlock()

	for _, inst := range instances {
		if err := s.Save(ctx, inst); err != nil {
			return err
		}
	}

	return nil
}
