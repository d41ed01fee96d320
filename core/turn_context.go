package core

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/contextmesh/logging"
)

// TurnContext is the constrained mutation surface handed to action handlers
// executing during an agent turn. It grants scoped access to the memory of
// the contexts targeted by that turn: mutations are synchronous and
// take-effect-immediately, so subsequent handlers and the next render in the
// same turn observe them. Handlers never receive ownership of an instance.
type TurnContext struct {
	ctx       context.Context
	turnID    string
	instances map[string]*Instance
	order     []InstanceKey
	valid     bool

	*loggerAdapter
}

// NewTurnContext constructs a turn context over the instances resolved for
// one turn. The instance order is preserved for deterministic iteration.
func NewTurnContext(ctx context.Context, turnID string, instances []*Instance, logger logging.Logger) *TurnContext {
	byKey := make(map[string]*Instance, len(instances))
	order := make([]InstanceKey, 0, len(instances))
	for _, inst := range instances {
		if _, dup := byKey[inst.Key().String()]; dup {
			continue
		}
		byKey[inst.Key().String()] = inst
		order = append(order, inst.Key())
	}

	return &TurnContext{
		ctx:           ctx,
		turnID:        turnID,
		instances:     byKey,
		order:         order,
		valid:         true,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the ambient cancellation context of the turn.
func (tc *TurnContext) Context() context.Context { return tc.ctx }

// TurnID returns the unique identifier of the turn.
func (tc *TurnContext) TurnID() string { return tc.turnID }

// Keys returns the instance keys targeted by this turn in resolution order.
func (tc *TurnContext) Keys() []InstanceKey {
	keys := make([]InstanceKey, len(tc.order))
	copy(keys, tc.order)
	return keys
}

// Instance returns the live instance for a key, if it is part of this turn.
func (tc *TurnContext) Instance(key InstanceKey) (*Instance, bool) {
	inst, ok := tc.instances[key.String()]
	return inst, ok
}

// Mutate applies fn to the memory of the instance identified by key under
// the instance's exclusive, all-or-nothing mutation contract. If the turn is
// already cancelled the mutation is not started, honoring the rule that a
// cancelled turn commits no further memory changes.
func (tc *TurnContext) Mutate(key InstanceKey, fn func(mem any) error) error {
	if err := tc.ctx.Err(); err != nil {
		return err
	}

	inst, ok := tc.instances[key.String()]
	if !ok {
		return fmt.Errorf("context %s is not part of turn %s", key, tc.turnID)
	}

	start := time.Now()

	err := inst.Mutate(fn)
	if err != nil {
		tc.LogWarn("turn.mutation.rolled_back", "context_key", key.String(), "turn_id", tc.turnID, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return err
	}

	tc.LogDebug("turn.mutation.applied", "context_key", key.String(), "turn_id", tc.turnID, "duration_ms", time.Since(start).Milliseconds())

	return nil
}

// Validate performs a structural sanity check of the context.
func (tc *TurnContext) Validate() error {
	if !tc.valid || tc.turnID == "" {
		return fmt.Errorf("invalid TurnContext")
	}
	return nil
}
