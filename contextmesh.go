// Package contextmesh provides a high-level façade over the context core
// (definition registry, instance store, render pipeline & turn runner)
// enabling rapid construction of stateful agent runtimes. Most applications
// interact with this package by:
//  1. Creating a ContextMesh via New() (optionally supplying persistence,
//     a model and a structured logger)
//  2. Registering one or more context definitions (typically built with
//     core.NewDefinition)
//  3. Running turns (RunTurn) or resolving and rendering instances directly
//     (GetOrCreate, Render)
//
// The façade delegates to store.Store, render.Pipeline and turn.Runner while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// persistence adapter and a structured logger.
package contextmesh

import (
	"context"

	"github.com/hupe1980/contextmesh/core"
	"github.com/hupe1980/contextmesh/logging"
	"github.com/hupe1980/contextmesh/model"
	"github.com/hupe1980/contextmesh/render"
	"github.com/hupe1980/contextmesh/store"
	"github.com/hupe1980/contextmesh/turn"
)

// Options configures the ContextMesh instance.
type Options struct {
	// Registry holds the context definitions. A fresh empty registry is used
	// if nil.
	Registry *core.Registry

	// Persistence optionally supplies previously saved memory on first access
	// and receives checkpoint saves. Nil disables persistence entirely.
	Persistence core.PersistenceStore

	// RestoreOnLoadFailure opts into treating a corrupt or failed load as a
	// cache miss instead of an error. Off by default.
	RestoreOnLoadFailure bool

	// Model drives turn generation. Defaults to a MockModel so RunTurn works
	// out of the box in tests and examples.
	Model model.Model

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// ContextMesh is the high-level façade aggregating registry, store, render
// pipeline and turn runner.
type ContextMesh struct {
	opts     Options
	registry *core.Registry
	store    *store.Store
	pipeline *render.Pipeline
	runner   *turn.Runner
}

// New creates a new ContextMesh instance with optional overrides.
func New(optFns ...func(o *Options)) *ContextMesh {
	opts := Options{
		Registry: core.NewRegistry(),
		Model:    model.NewMockModel("mock"),
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Registry == nil {
		opts.Registry = core.NewRegistry()
	}
	if opts.Model == nil {
		opts.Model = model.NewMockModel("mock")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := store.New(opts.Registry, func(o *store.Options) {
		o.Persistence = opts.Persistence
		o.RestoreOnLoadFailure = opts.RestoreOnLoadFailure
		o.Logger = opts.Logger
	})

	pipeline := render.New(func(o *render.Options) {
		o.Logger = opts.Logger
	})

	runner := turn.NewRunner(s, pipeline, opts.Model, func(o *turn.Options) {
		o.Logger = opts.Logger
	})

	return &ContextMesh{
		opts:     opts,
		registry: opts.Registry,
		store:    s,
		pipeline: pipeline,
		runner:   runner,
	}
}

// Register adds a context definition to the underlying registry.
func (m *ContextMesh) Register(def core.Definition) error { return m.registry.Register(def) }

// GetOrCreate resolves the instance for a type identifier and raw argument
// bag, creating it on first access.
func (m *ContextMesh) GetOrCreate(ctx context.Context, typeID string, rawArgs map[string]any) (*core.Instance, error) {
	return m.store.GetOrCreate(ctx, typeID, rawArgs)
}

// Render produces the ephemeral view of one instance's current memory.
func (m *ContextMesh) Render(inst *core.Instance) (render.RenderedView, error) {
	return m.pipeline.Render(inst)
}

// RunTurn executes one agent turn end to end.
func (m *ContextMesh) RunTurn(ctx context.Context, req turn.Request) (*turn.Result, error) {
	return m.runner.Run(ctx, req)
}

// Evict removes the live instance for a key from the store, reporting
// whether an instance was present.
func (m *ContextMesh) Evict(key core.InstanceKey) bool { return m.store.Evict(key) }

// Flush checkpoints every live instance through the persistence adapter.
// A no-op without persistence.
func (m *ContextMesh) Flush(ctx context.Context) error { return m.store.SaveAll(ctx) }

// Store exposes the underlying instance store for advanced use.
func (m *ContextMesh) Store() *store.Store { return m.store }
