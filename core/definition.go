package core

import "time"

// Metadata carries the instance-scoped facts a render function may surface
// alongside the memory value (identity and lifecycle timestamps).
type Metadata struct {
	Key            InstanceKey `json:"key"`
	CreatedAt      time.Time   `json:"created_at"`
	LastRenderedAt time.Time   `json:"last_rendered_at"` // Zero for a first render
}

// Definition is the type-erased template describing a class of stateful
// context units. The registry and instance store work exclusively through
// this interface; typed construction lives in NewDefinition, which binds a
// definition-scoped argument and memory type so each context type's memory
// shape is statically known within its own definition.
//
// Contract:
//   - TypeID is globally unique and enforced at registration time
//   - ValidateArgs runs before DeriveKey and NewMemory; both assume validated input
//   - DeriveKey is pure and total for validated arguments
//   - NewMemory runs at most once per distinct key (the store guarantees this)
//   - Render must be side-effect-free with respect to the memory value
//   - EncodeMemory/DecodeMemory are a faithful round-trip of the memory value
type Definition interface {
	// TypeID returns the globally unique type identifier of this definition.
	TypeID() string

	// Schema returns the JSON Schema describing the accepted argument bag.
	Schema() map[string]any

	// ValidateArgs normalizes and validates a raw argument bag, returning the
	// validated arguments (with schema defaults applied) or a
	// *schema.ValidationError enumerating every violated field.
	ValidateArgs(raw map[string]any) (map[string]any, error)

	// DeriveKey maps validated arguments to the instance identity string.
	// A failure is reported as *KeyDerivationError.
	DeriveKey(args map[string]any) (string, error)

	// NewMemory produces the initial memory value for a fresh instance from
	// validated arguments.
	NewMemory(args map[string]any) (any, error)

	// EncodeMemory serializes a memory value for persistence or snapshotting.
	EncodeMemory(mem any) ([]byte, error)

	// DecodeMemory restores a memory value from its persisted form.
	DecodeMemory(data []byte) (any, error)

	// Render produces the textual representation of the memory value for
	// model consumption. It must not mutate the memory it receives.
	Render(mem any, md Metadata) (string, error)
}
