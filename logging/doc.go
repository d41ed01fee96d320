// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer ContextMeshLogger with contextual
// helpers (component, context key, turn) and domain specific logging helpers
// for renders, mutations, persistence and model calls.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the context store, render pipeline and turn runner use
// for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mesh := contextmesh.New(func(o *contextmesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
