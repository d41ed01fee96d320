package core

import "fmt"

var (
	// ErrMemoryNotFound is returned by PersistenceStore implementations when
	// no persisted memory exists for the requested key. It is the only load
	// failure the instance store treats as a cache miss.
	ErrMemoryNotFound = fmt.Errorf("persisted memory not found")
)

// DuplicateTypeError reports a registration collision: a definition with the
// same type identifier is already present. Registration happens at startup,
// so this is fatal configuration, not a runtime condition.
type DuplicateTypeError struct {
	TypeID string `json:"type_id"`
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("context type %q is already registered", e.TypeID)
}

// UnknownTypeError reports a lookup for a type identifier that was never
// registered. It indicates a configuration defect at the call site.
type UnknownTypeError struct {
	TypeID string `json:"type_id"`
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("context type %q is not registered", e.TypeID)
}

// KeyDerivationError reports that a definition's key function failed on
// validated input. Key functions must be total over validated arguments, so
// this is a programming error in the definition, not a recoverable condition.
type KeyDerivationError struct {
	TypeID string `json:"type_id"`
	Cause  error  `json:"-"`
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("key derivation failed for context type %q: %v", e.TypeID, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *KeyDerivationError) Unwrap() error { return e.Cause }

// PersistenceError reports a load or save failure against the persistence
// adapter that is not a simple miss. It is never silently swallowed; retry
// policy belongs to the adapter or the surrounding system.
type PersistenceError struct {
	Op    string      `json:"op"` // "load" or "save"
	Key   InstanceKey `json:"key"`
	Cause error       `json:"-"`
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed for %s: %v", e.Op, e.Key, e.Cause)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As chains.
func (e *PersistenceError) Unwrap() error { return e.Cause }
