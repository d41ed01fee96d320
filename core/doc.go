// Package core provides the foundational domain types, interfaces and
// execution contexts used by ContextMesh. It defines the core abstractions
// for:
//
//   - Definitions (static templates describing a class of stateful context units)
//   - Instances (live, keyed memory objects created from a definition)
//   - InstanceKey (the composite identity of a live instance)
//   - Registry (process-scoped table of definitions keyed by type identifier)
//   - TurnContext (the constrained mutation surface handed to action handlers)
//   - PersistenceStore (boundary for saving/loading instance memory)
//
// The package intentionally keeps implementation concerns (instance store,
// render pipeline, concrete persistence backends, turn orchestration) out of
// scope, exposing small interfaces to enable custom backends and extensions.
// All exported identifiers include concise documentation to aid
// discoverability and external consumption.
package core
