package core

import "sync"

// Registry is the process-scoped table of context definitions keyed by type
// identifier. It is populated during startup and read-heavy afterwards; no
// steady-state mutation is expected. The registry is explicit state passed by
// reference to every component that needs lookup (no ambient package-level
// instance), so the core stays testable in isolation.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry constructs an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Re-registering an existing type identifier is
// an error (*DuplicateTypeError), never a silent overwrite.
func (r *Registry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	typeID := def.TypeID()
	if _, exists := r.defs[typeID]; exists {
		return &DuplicateTypeError{TypeID: typeID}
	}

	r.defs[typeID] = def

	return nil
}

// Lookup returns the definition for a type identifier or *UnknownTypeError.
func (r *Registry) Lookup(typeID string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[typeID]
	if !ok {
		return nil, &UnknownTypeError{TypeID: typeID}
	}

	return def, nil
}

// Unregister removes a definition, reporting whether it was present. Live
// instances created from the definition are unaffected; only future lookups
// miss.
func (r *Registry) Unregister(typeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.defs[typeID]
	delete(r.defs, typeID)

	return ok
}

// TypeIDs returns a snapshot of the registered type identifiers.
func (r *Registry) TypeIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}

	return ids
}
