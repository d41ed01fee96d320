package core

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/contextmesh/schema"
)

// Config binds the typed pieces of a context definition. A is the argument
// container decoded from the validated argument bag; M is the memory shape
// produced by CreateFn and consumed by RenderFn. The instance store holds the
// memory behind a type-erased handle, so M stays an implementation detail of
// the owning definition.
type Config[A any, M any] struct {
	// TypeID is the globally unique identifier for this context type.
	TypeID string

	// Schema optionally declares the argument schema. When nil it is derived
	// from A via schema.FromStruct.
	Schema map[string]any

	// KeyFn maps validated arguments to the instance identity string. It must
	// be pure: deterministic for identical input, no side effects, and total
	// for any validated argument value.
	KeyFn func(args A) string

	// CreateFn produces the initial memory value for a fresh instance. It is
	// invoked at most once per distinct key.
	CreateFn func(args A) (M, error)

	// RenderFn produces the textual representation of the memory for model
	// consumption. It must not mutate the memory it receives.
	RenderFn func(mem M, md Metadata) (string, error)
}

// typedDefinition adapts a Config into the type-erased Definition interface.
// Memory values travel as *M so mutation through the turn surface operates on
// the instance's memory, never on a copy.
type typedDefinition[A any, M any] struct {
	cfg       Config[A, M]
	validator *schema.Validator
}

// NewDefinition constructs a Definition from a typed Config. The argument
// schema is compiled once here; a malformed schema or missing function is a
// construction error, surfaced before the definition can ever be registered.
func NewDefinition[A any, M any](cfg Config[A, M]) (Definition, error) {
	if cfg.TypeID == "" {
		return nil, fmt.Errorf("definition requires a non-empty type id")
	}
	if cfg.KeyFn == nil {
		return nil, fmt.Errorf("definition %q requires a key function", cfg.TypeID)
	}
	if cfg.CreateFn == nil {
		return nil, fmt.Errorf("definition %q requires a create function", cfg.TypeID)
	}
	if cfg.RenderFn == nil {
		return nil, fmt.Errorf("definition %q requires a render function", cfg.TypeID)
	}

	schemaMap := cfg.Schema
	if schemaMap == nil {
		var zero A
		schemaMap = schema.FromStruct(zero)
	}

	validator, err := schema.Compile(cfg.TypeID, schemaMap)
	if err != nil {
		return nil, err
	}

	return &typedDefinition[A, M]{cfg: cfg, validator: validator}, nil
}

// MustNewDefinition is a startup-time convenience that panics on construction
// failure. Registration code that runs once at process start typically uses
// this form.
func MustNewDefinition[A any, M any](cfg Config[A, M]) Definition {
	def, err := NewDefinition(cfg)
	if err != nil {
		panic(err)
	}
	return def
}

// TypeID implements Definition.
func (d *typedDefinition[A, M]) TypeID() string { return d.cfg.TypeID }

// Schema implements Definition.
func (d *typedDefinition[A, M]) Schema() map[string]any { return d.validator.Schema() }

// ValidateArgs implements Definition.
func (d *typedDefinition[A, M]) ValidateArgs(raw map[string]any) (map[string]any, error) {
	return d.validator.Validate(raw)
}

// DeriveKey implements Definition. A panic inside the key function is
// converted to *KeyDerivationError: key functions are declared total over
// validated input, so a panic here is a defect in the definition.
func (d *typedDefinition[A, M]) DeriveKey(args map[string]any) (derived string, err error) {
	typedArgs, decodeErr := d.decodeArgs(args)
	if decodeErr != nil {
		return "", &KeyDerivationError{TypeID: d.cfg.TypeID, Cause: decodeErr}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &KeyDerivationError{TypeID: d.cfg.TypeID, Cause: fmt.Errorf("key function panicked: %v", r)}
		}
	}()

	derived = d.cfg.KeyFn(typedArgs)
	if derived == "" {
		return "", &KeyDerivationError{TypeID: d.cfg.TypeID, Cause: fmt.Errorf("key function produced an empty key")}
	}

	return derived, nil
}

// NewMemory implements Definition. The returned handle is a *M so mutation
// through the turn surface reaches the instance's memory directly.
func (d *typedDefinition[A, M]) NewMemory(args map[string]any) (any, error) {
	typedArgs, err := d.decodeArgs(args)
	if err != nil {
		return nil, fmt.Errorf("context type %q: decoding arguments: %w", d.cfg.TypeID, err)
	}

	mem, err := d.cfg.CreateFn(typedArgs)
	if err != nil {
		return nil, err
	}

	return &mem, nil
}

// EncodeMemory implements Definition.
func (d *typedDefinition[A, M]) EncodeMemory(mem any) ([]byte, error) {
	typed, err := d.memoryOf(mem)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typed)
}

// DecodeMemory implements Definition.
func (d *typedDefinition[A, M]) DecodeMemory(data []byte) (any, error) {
	mem := new(M)
	if err := json.Unmarshal(data, mem); err != nil {
		return nil, fmt.Errorf("context type %q: decoding persisted memory: %w", d.cfg.TypeID, err)
	}
	return mem, nil
}

// Render implements Definition.
func (d *typedDefinition[A, M]) Render(mem any, md Metadata) (string, error) {
	typed, err := d.memoryOf(mem)
	if err != nil {
		return "", err
	}
	return d.cfg.RenderFn(typed, md)
}

// decodeArgs converts a validated argument bag into the typed argument
// container via a JSON round-trip.
func (d *typedDefinition[A, M]) decodeArgs(args map[string]any) (A, error) {
	var typedArgs A
	data, err := json.Marshal(args)
	if err != nil {
		return typedArgs, err
	}
	if err := json.Unmarshal(data, &typedArgs); err != nil {
		return typedArgs, err
	}
	return typedArgs, nil
}

// memoryOf unwraps a type-erased memory handle back into M, accepting both
// the pointer form stored on instances and a bare value.
func (d *typedDefinition[A, M]) memoryOf(mem any) (M, error) {
	switch v := mem.(type) {
	case *M:
		return *v, nil
	case M:
		return v, nil
	default:
		var zero M
		return zero, fmt.Errorf("context type %q: memory has unexpected type %T", d.cfg.TypeID, mem)
	}
}
