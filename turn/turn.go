// Package turn orchestrates a single agent turn over the context core:
// resolve the instances named by the request, render them, call the model
// with instructions + rendered blocks + input, run the action handlers
// against the constrained mutation surface and checkpoint the touched
// instances.
package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/contextmesh/core"
	"github.com/hupe1980/contextmesh/logging"
	"github.com/hupe1980/contextmesh/model"
	"github.com/hupe1980/contextmesh/render"
	"github.com/hupe1980/contextmesh/store"
)

// ContextRef names one context to activate for a turn: the registered type
// identifier plus the raw argument bag resolved through get-or-create.
type ContextRef struct {
	TypeID string         `json:"type_id"`
	Args   map[string]any `json:"args,omitempty"`
}

// Handler is an action handler invoked after the model reply. Handlers run
// serially in registration order and mutate context memory exclusively
// through the TurnContext.
type Handler func(tc *core.TurnContext, reply string) error

// Request describes one turn.
type Request struct {
	Instructions string       `json:"instructions"`
	Contexts     []ContextRef `json:"contexts"`
	Input        string       `json:"input"`
	Stream       bool         `json:"stream,omitempty"`

	// Handlers run after the model reply with mutation access to the turn's
	// contexts. Optional.
	Handlers []Handler `json:"-"`
}

// Result is the outcome of a completed turn.
type Result struct {
	TurnID string                `json:"turn_id"`
	Output string                `json:"output"`
	Views  []render.RenderedView `json:"views"`
	Usage  *model.TokenUsage     `json:"usage,omitempty"`
}

// Options configures a Runner.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Runner executes turns against an instance store and a model.
type Runner struct {
	store    *store.Store
	pipeline *render.Pipeline
	model    model.Model
	logger   logging.Logger
}

// NewRunner constructs a turn Runner.
func NewRunner(s *store.Store, pipeline *render.Pipeline, m model.Model, optFns ...func(o *Options)) *Runner {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Runner{
		store:    s,
		pipeline: pipeline,
		model:    m,
		logger:   opts.Logger,
	}
}

// Run executes one turn end to end. Cancellation between handlers stops the
// remaining handlers; memory changes already committed by completed handlers
// stay committed. Checkpointing after a cancelled turn is skipped.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	turnID := uuid.New().String()
	start := time.Now()

	r.logger.Info("turn.started", "turn_id", turnID, "contexts", len(req.Contexts), "model", r.model.Info().Name)

	// Distinct refs may resolve to the same instance key; each instance is
	// rendered and checkpointed once per turn regardless of how many refs
	// named it.
	instances := make([]*core.Instance, 0, len(req.Contexts))
	seen := make(map[string]bool, len(req.Contexts))
	for _, ref := range req.Contexts {
		inst, err := r.store.GetOrCreate(ctx, ref.TypeID, ref.Args)
		if err != nil {
			r.logger.Error("turn.context_resolution.failed", "turn_id", turnID, "type_id", ref.TypeID, "error", err.Error())
			return nil, fmt.Errorf("resolving context %q: %w", ref.TypeID, err)
		}
		if seen[inst.Key().String()] {
			continue
		}
		seen[inst.Key().String()] = true
		instances = append(instances, inst)
	}

	views, err := r.pipeline.RenderAll(instances)
	if err != nil {
		return nil, fmt.Errorf("rendering contexts for turn %s: %w", turnID, err)
	}

	blocks := make([]string, len(views))
	for i, view := range views {
		blocks[i] = view.Text
	}

	reply, usage, err := r.generate(ctx, model.Request{
		Instructions: req.Instructions,
		Contexts:     blocks,
		Input:        req.Input,
		Stream:       req.Stream,
	})
	if err != nil {
		return nil, fmt.Errorf("model call for turn %s: %w", turnID, err)
	}

	tc := core.NewTurnContext(ctx, turnID, instances, r.logger)
	for i, handler := range req.Handlers {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("turn.cancelled", "turn_id", turnID, "handlers_completed", i)
			return nil, err
		}
		if err := handler(tc, reply); err != nil {
			return nil, fmt.Errorf("handler %d for turn %s: %w", i, turnID, err)
		}
	}

	for _, inst := range instances {
		if err := r.store.Save(ctx, inst); err != nil {
			return nil, err
		}
	}

	r.logger.Info("turn.completed", "turn_id", turnID, "duration_ms", time.Since(start).Milliseconds())

	return &Result{
		TurnID: turnID,
		Output: reply,
		Views:  views,
		Usage:  usage,
	}, nil
}

// generate drains the model's response and error channels, returning the
// final accumulated text. Partial chunks are consumed and discarded; callers
// needing token-level streaming should drive model.Model directly.
func (r *Runner) generate(ctx context.Context, req model.Request) (string, *model.TokenUsage, error) {
	respCh, errCh := r.model.Generate(ctx, req)

	var (
		final string
		usage *model.TokenUsage
		got   bool
	)

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				final = resp.Text
				usage = resp.Usage
				got = true
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", nil, err
			}
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}

	if !got {
		return "", nil, fmt.Errorf("model produced no final response")
	}

	return final, usage, nil
}
