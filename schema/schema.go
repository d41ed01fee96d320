package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldViolation describes a single violated field within an argument bag.
type FieldViolation struct {
	Field   string `json:"field"`           // Dotted path of the violated field ("(root)" for document level)
	Value   any    `json:"value,omitempty"` // Value that was provided, if resolvable
	Message string `json:"message"`         // Human-readable violation message
}

// ValidationError aggregates every field violation found while validating an
// argument bag. It is caller-recoverable: the offending arguments can be
// corrected and resubmitted.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
}

// Error implements the error interface, joining all violations so a single
// log line surfaces the complete picture.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("field '%s': %s", v.Field, v.Message))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Fields returns the violated field paths in stable order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	sort.Strings(fields)
	return fields
}

// Validator validates raw argument bags against a compiled JSON Schema.
// It is immutable after construction and safe for concurrent use.
type Validator struct {
	name     string
	raw      map[string]any
	compiled *jsonschema.Schema
}

// Compile builds a Validator from a JSON-Schema-shaped map. The name is used
// as the schema resource URL in compilation error messages (definitions pass
// their type identifier). Compilation failures indicate a malformed schema,
// which is a configuration defect, not a runtime condition.
func Compile(name string, schemaMap map[string]any) (*Validator, error) {
	if schemaMap == nil {
		schemaMap = map[string]any{"type": "object"}
	}

	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("schema %q is not serializable: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	url := "schema:///" + name + ".json"
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("schema %q could not be registered: %w", name, err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %q failed to compile: %w", name, err)
	}

	return &Validator{name: name, raw: schemaMap, compiled: compiled}, nil
}

// Schema returns the raw schema map the validator was compiled from.
func (v *Validator) Schema() map[string]any { return v.raw }

// Validate normalizes the raw argument bag (numbers become float64, nested
// structs become maps, mirroring JSON decoding), validates it against the
// compiled schema and returns a copy with schema defaults applied for absent
// optional properties. On failure it returns a *ValidationError enumerating
// every violated field.
func (v *Validator) Validate(raw map[string]any) (map[string]any, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	normalized, err := normalize(raw)
	if err != nil {
		return nil, &ValidationError{Violations: []FieldViolation{{
			Field:   "(root)",
			Message: fmt.Sprintf("arguments are not JSON-representable: %v", err),
		}}}
	}

	if err := v.compiled.Validate(normalized); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, &ValidationError{Violations: []FieldViolation{{Field: "(root)", Message: err.Error()}}}
		}
		return nil, &ValidationError{Violations: violationsFrom(ve, normalized)}
	}

	applyDefaults(v.raw, normalized)

	return normalized, nil
}

// normalize round-trips the bag through encoding/json so validation and key
// derivation always observe canonical JSON value types.
func normalize(raw map[string]any) (map[string]any, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// violationsFrom flattens the jsonschema cause tree into one violation per
// leaf cause. Duplicate (field, message) pairs are collapsed.
func violationsFrom(ve *jsonschema.ValidationError, args map[string]any) []FieldViolation {
	var leaves []*jsonschema.ValidationError
	collectLeaves(ve, &leaves)

	seen := map[string]bool{}
	violations := make([]FieldViolation, 0, len(leaves))
	for _, leaf := range leaves {
		field := fieldPath(leaf.InstanceLocation)
		if dup := field + "\x00" + leaf.Message; seen[dup] {
			continue
		} else {
			seen[dup] = true
		}
		fv := FieldViolation{Field: field, Message: leaf.Message}
		if top, ok := topLevelValue(leaf.InstanceLocation, args); ok {
			fv.Value = top
		}
		violations = append(violations, fv)
	}
	return violations
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, ve)
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

// fieldPath converts a JSON Pointer instance location ("/a/0/b") into the
// dotted form used in violation reports ("a.0.b").
func fieldPath(instanceLocation string) string {
	trimmed := strings.TrimPrefix(instanceLocation, "/")
	if trimmed == "" {
		return "(root)"
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}

// topLevelValue resolves the offending top-level argument value when the
// violation points inside the bag.
func topLevelValue(instanceLocation string, args map[string]any) (any, bool) {
	trimmed := strings.TrimPrefix(instanceLocation, "/")
	if trimmed == "" {
		return nil, false
	}
	first := trimmed
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		first = trimmed[:idx]
	}
	v, ok := args[first]
	return v, ok
}

// applyDefaults fills absent optional properties with the schema's declared
// "default" values. Defaults are deep-copied through a JSON round-trip so
// callers can never alias or mutate the schema map.
func applyDefaults(schemaMap, args map[string]any) {
	props, ok := schemaMap["properties"].(map[string]any)
	if !ok {
		return
	}
	for name, prop := range props {
		propMap, ok := prop.(map[string]any)
		if !ok {
			continue
		}
		def, has := propMap["default"]
		if !has {
			continue
		}
		if _, present := args[name]; present {
			continue
		}
		if copied, err := copyValue(def); err == nil {
			args[name] = copied
		}
	}
}

func copyValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
