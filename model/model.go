package model

import (
	"context"
	"fmt"
	"strings"
)

// Request captures the normalized model input assembled by the turn runner:
// standing instructions, one rendered context block per active instance and
// the user input for this turn.
type Request struct {
	Instructions string   `json:"instructions"`
	Contexts     []string `json:"contexts"`
	Input        string   `json:"input"`
	Stream       bool     `json:"stream,omitempty"`
}

// SystemPrompt joins the instructions and rendered context blocks into the
// system prompt handed to providers. Blocks are separated by blank lines;
// truncation and token budgeting are deliberately not applied here.
func (r Request) SystemPrompt() string {
	parts := make([]string, 0, len(r.Contexts)+1)
	if r.Instructions != "" {
		parts = append(parts, r.Instructions)
	}
	for _, block := range r.Contexts {
		if block != "" {
			parts = append(parts, block)
		}
	}
	return strings.Join(parts, "\n\n")
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial responses carry a text delta; the final response carries the full
// accumulated text plus finish reason ("stop", "length", ...) and usage.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation. Provider is one of
// "openai", "anthropic" or "mock".
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface required by the turn runner to drive
// generation against the rendered context state.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockModel) AddResponse(input, response string) { m.responses[input] = response }

// Generate implements Model; emits optional streaming char chunks then the
// final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full := m.responses[req.Input]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", req.Input)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		respCh <- Response{Partial: false, Text: full, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
