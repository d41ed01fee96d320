// Package render implements the render pipeline: it converts the current
// memory of context instances into the text blocks consumed by a language
// model on every turn. Views are ephemeral: produced immediately before the
// model call and discarded afterwards, never stored.
package render

import (
	"time"

	"github.com/hupe1980/contextmesh/core"
	"github.com/hupe1980/contextmesh/logging"
)

// RenderedView is the ephemeral textual representation of one instance's
// memory at a point in time. Output is plain text (markdown-capable); the
// pipeline enforces no length constraint; token budgeting belongs to the
// model-call layer.
type RenderedView struct {
	Key        core.InstanceKey `json:"key"`
	Text       string           `json:"text"`
	RenderedAt time.Time        `json:"rendered_at"`
}

// Options configures a Pipeline.
type Options struct {
	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Pipeline renders context instances. It holds no mutable state after
// construction and is safe for concurrent use.
type Pipeline struct {
	logger logging.Logger
}

// New constructs a render Pipeline.
func New(optFns ...func(o *Options)) *Pipeline {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Pipeline{logger: opts.Logger}
}

// Render produces the view of one instance's current memory. The render is
// serialized against mutation by the instance itself, so the text always
// reflects the state as of this moment, never a stale snapshot. Rendering
// never commits memory changes.
func (p *Pipeline) Render(inst *core.Instance) (RenderedView, error) {
	start := time.Now()

	text, err := inst.Render()
	if err != nil {
		p.logger.Error("render.failed", "context_key", inst.Key().String(), "error", err.Error())
		return RenderedView{}, err
	}

	p.logger.Debug("render.completed", "context_key", inst.Key().String(), "duration_ms", time.Since(start).Milliseconds(), "chars", len(text))

	return RenderedView{Key: inst.Key(), Text: text, RenderedAt: time.Now()}, nil
}

// RenderAll renders every instance in order, exactly once each. The first
// failure aborts the batch: a turn that cannot render all of its contexts
// must not proceed to the model with a partial picture.
func (p *Pipeline) RenderAll(instances []*core.Instance) ([]RenderedView, error) {
	views := make([]RenderedView, 0, len(instances))
	for _, inst := range instances {
		view, err := p.Render(inst)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}
