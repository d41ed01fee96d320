// Package schema implements argument validation for context definitions. A
// Validator compiles a JSON Schema (draft 2020-12) once at definition
// construction time and then normalizes + validates raw argument bags on
// every instance access, reporting every violated field rather than only the
// first and applying declared default values for absent optional properties.
//
// FromStruct derives an object schema from a tagged Go struct for the common
// case where a definition's arguments are a small argument container.
package schema
