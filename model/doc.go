// Package model defines the normalized interface between the context core
// and language model providers. A Request carries the turn's instructions,
// the rendered context blocks produced by the render pipeline and the user
// input; responses stream back as text chunks followed by a final message.
//
// Concrete adapters live in the anthropic and openai subpackages; MockModel
// provides deterministic completions for tests and examples.
package model
