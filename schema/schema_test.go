package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- Compile & Validate Tests --------------------

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("bad", map[string]any{"type": 42})
	assert.Error(t, err)
}

func TestValidate_Success(t *testing.T) {
	v, err := Compile("args", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"listId": map[string]any{"type": "string"},
		},
		"required": []string{"listId"},
	})
	require.NoError(t, err)

	args, err := v.Validate(map[string]any{"listId": "A"})
	assert.NoError(t, err)
	assert.Equal(t, "A", args["listId"])
}

func TestValidate_EnumeratesAllViolations(t *testing.T) {
	v, err := Compile("args", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"listId": map[string]any{"type": "string"},
			"limit":  map[string]any{"type": "integer"},
		},
		"required": []string{"listId"},
	})
	require.NoError(t, err)

	// listId missing AND limit mistyped: both violations must be reported in
	// one pass, not first-failure-only.
	_, err = v.Validate(map[string]any{"limit": "ten"})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok, "expected *ValidationError, got %T", err)
	assert.GreaterOrEqual(t, len(vErr.Violations), 2)
	assert.Contains(t, vErr.Fields(), "limit")
}

func TestValidate_NormalizesNumbers(t *testing.T) {
	v, err := Compile("args", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer"},
		},
	})
	require.NoError(t, err)

	args, err := v.Validate(map[string]any{"limit": 5})
	require.NoError(t, err)
	// Canonical JSON types after normalization.
	assert.Equal(t, float64(5), args["limit"])
}

func TestValidate_AppliesDefaults(t *testing.T) {
	v, err := Compile("args", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"listId": map[string]any{"type": "string"},
			"tags":   map[string]any{"type": "array", "default": []any{"inbox"}},
		},
		"required": []string{"listId"},
	})
	require.NoError(t, err)

	args, err := v.Validate(map[string]any{"listId": "A"})
	require.NoError(t, err)

	tags, ok := args["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"inbox"}, tags)

	// Mutating the applied default must not leak into later validations.
	tags[0] = "mutated"

	args2, err := v.Validate(map[string]any{"listId": "B"})
	require.NoError(t, err)
	assert.Equal(t, []any{"inbox"}, args2["tags"])
}

func TestValidate_DefaultNotAppliedWhenPresent(t *testing.T) {
	v, err := Compile("args", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{"type": "integer", "default": 10},
		},
	})
	require.NoError(t, err)

	args, err := v.Validate(map[string]any{"limit": 3})
	require.NoError(t, err)
	assert.Equal(t, float64(3), args["limit"])
}

func TestValidate_NilArgs(t *testing.T) {
	v, err := Compile("args", map[string]any{"type": "object"})
	require.NoError(t, err)

	args, err := v.Validate(nil)
	assert.NoError(t, err)
	assert.NotNil(t, args)
}

func TestFieldPath(t *testing.T) {
	assert.Equal(t, "(root)", fieldPath(""))
	assert.Equal(t, "listId", fieldPath("/listId"))
	assert.Equal(t, "items.0.name", fieldPath("/items/0/name"))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Violations: []FieldViolation{
		{Field: "listId", Message: "expected string"},
		{Field: "limit", Message: "expected integer"},
	}}
	assert.Contains(t, err.Error(), "listId")
	assert.Contains(t, err.Error(), "limit")
}

// -------------------- FromStruct Tests --------------------

type sampleArgs struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestFromStruct(t *testing.T) {
	schema := FromStruct(sampleArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")

	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)

	assert.Equal(t, false, schema["additionalProperties"])
}

func TestFromStruct_RejectsUnknownProperties(t *testing.T) {
	v, err := Compile("sample", FromStruct(sampleArgs{}))
	require.NoError(t, err)

	_, err = v.Validate(map[string]any{"a": "x", "typo": true})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.NotEmpty(t, vErr.Violations)
}
