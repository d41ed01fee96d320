package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/contextmesh/core"
	"github.com/hupe1980/contextmesh/persist"
	"github.com/hupe1980/contextmesh/schema"
)

type listArgs struct {
	ListID string  `json:"listId" description:"Todo list identifier"`
	Title  *string `json:"title,omitempty" description:"Optional display title"`
}

type listMemory struct {
	ListID string   `json:"listId"`
	Title  string   `json:"title"`
	Items  []string `json:"items"`
}

// countingDefinition tracks create-function invocations so single-flight and
// no-partial-instance behavior can be asserted.
func countingDefinition(t *testing.T, creates *atomic.Int32, delay time.Duration) core.Definition {
	t.Helper()

	def, err := core.NewDefinition(core.Config[listArgs, listMemory]{
		TypeID: "todo_list",
		KeyFn:  func(a listArgs) string { return a.ListID },
		CreateFn: func(a listArgs) (listMemory, error) {
			creates.Add(1)
			if delay > 0 {
				time.Sleep(delay)
			}
			title := ""
			if a.Title != nil {
				title = *a.Title
			}
			return listMemory{ListID: a.ListID, Title: title, Items: []string{}}, nil
		},
		RenderFn: func(m listMemory, _ core.Metadata) (string, error) {
			return fmt.Sprintf("list %s (%d items)", m.ListID, len(m.Items)), nil
		},
	})
	require.NoError(t, err)

	return def
}

func newTestStore(t *testing.T, creates *atomic.Int32, optFns ...func(o *Options)) *Store {
	t.Helper()

	registry := core.NewRegistry()
	require.NoError(t, registry.Register(countingDefinition(t, creates, 0)))

	return New(registry, optFns...)
}

func TestStore_GetOrCreate_IdentityAcrossCalls(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)

	second, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, 1, s.Len())
}

func TestStore_GetOrCreate_DistinctKeys(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()

	a, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)

	b, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "B"})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), creates.Load())
	assert.Equal(t, 2, s.Len())
}

func TestStore_GetOrCreate_DivergentArgsCreationWins(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A", "title": "Groceries"})
	require.NoError(t, err)

	// Same derived key, different title: the existing instance wins, the new
	// arguments are ignored.
	second, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A", "title": "Renamed"})
	require.NoError(t, err)
	require.Same(t, first, second)

	data, err := second.EncodedMemory()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Groceries")
	assert.NotContains(t, string(data), "Renamed")
}

func TestStore_GetOrCreate_UnknownType(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)

	_, err := s.GetOrCreate(context.Background(), "missing", map[string]any{"listId": "A"})
	require.Error(t, err)

	var unknownErr *core.UnknownTypeError
	assert.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, int32(0), creates.Load())
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetOrCreate_ValidationFailureLeavesNoInstance(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)

	_, err := s.GetOrCreate(context.Background(), "todo_list", map[string]any{"title": "no id"})
	require.Error(t, err)

	var vErr *schema.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, int32(0), creates.Load())
	assert.Equal(t, 0, s.Len())
}

func TestStore_GetOrCreate_CreateFailureLeavesNoInstance(t *testing.T) {
	registry := core.NewRegistry()
	def, err := core.NewDefinition(core.Config[listArgs, listMemory]{
		TypeID:   "todo_list",
		KeyFn:    func(a listArgs) string { return a.ListID },
		CreateFn: func(a listArgs) (listMemory, error) { return listMemory{}, errors.New("creation failed") },
		RenderFn: func(m listMemory, _ core.Metadata) (string, error) { return "", nil },
	})
	require.NoError(t, err)
	require.NoError(t, registry.Register(def))

	s := New(registry)

	_, err = s.GetOrCreate(context.Background(), "todo_list", map[string]any{"listId": "A"})
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())

	_, ok := s.Get(core.InstanceKey{TypeID: "todo_list", Derived: "A"})
	assert.False(t, ok)
}

func TestStore_GetOrCreate_SingleFlight(t *testing.T) {
	var creates atomic.Int32

	registry := core.NewRegistry()
	require.NoError(t, registry.Register(countingDefinition(t, &creates, 20*time.Millisecond)))

	s := New(registry)
	ctx := context.Background()

	const n = 32
	instances := make([]*core.Instance, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "C"})
			assert.NoError(t, err)
			instances[i] = inst
		}(i)
	}
	wg.Wait()

	// Exactly one creation, every caller observes the same instance.
	assert.Equal(t, int32(1), creates.Load())
	for i := 1; i < n; i++ {
		assert.Same(t, instances[0], instances[i])
	}
	assert.Equal(t, 1, s.Len())
}

func TestStore_PersistenceRestore(t *testing.T) {
	ps := persist.NewInMemoryStore()
	ctx := context.Background()
	key := core.InstanceKey{TypeID: "todo_list", Derived: "A"}

	var creates atomic.Int32
	s := newTestStore(t, &creates, func(o *Options) { o.Persistence = ps })

	inst, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	require.NoError(t, inst.Mutate(func(mem any) error {
		m := mem.(*listMemory)
		m.Items = append(m.Items, "buy milk")
		return nil
	}))
	require.NoError(t, s.Save(ctx, inst))
	require.True(t, s.Evict(key))

	// The next access restores from persistence instead of creating fresh.
	restored, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	assert.NotSame(t, inst, restored)
	assert.Equal(t, int32(1), creates.Load())

	data, err := restored.EncodedMemory()
	require.NoError(t, err)
	assert.Contains(t, string(data), "buy milk")
}

func TestStore_CorruptLoadIsError(t *testing.T) {
	ps := persist.NewInMemoryStore()
	ctx := context.Background()
	key := core.InstanceKey{TypeID: "todo_list", Derived: "A"}
	require.NoError(t, ps.Save(ctx, key, []byte("{corrupt")))

	var creates atomic.Int32
	s := newTestStore(t, &creates, func(o *Options) { o.Persistence = ps })

	_, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.Error(t, err)

	var pErr *core.PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "load", pErr.Op)
	assert.Equal(t, int32(0), creates.Load())
	assert.Equal(t, 0, s.Len())
}

func TestStore_CorruptLoadFallsBackWhenOptedIn(t *testing.T) {
	ps := persist.NewInMemoryStore()
	ctx := context.Background()
	key := core.InstanceKey{TypeID: "todo_list", Derived: "A"}
	require.NoError(t, ps.Save(ctx, key, []byte("{corrupt")))

	var creates atomic.Int32
	s := newTestStore(t, &creates, func(o *Options) {
		o.Persistence = ps
		o.RestoreOnLoadFailure = true
	})

	inst, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, key, inst.Key())
}

func TestStore_SaveWithoutPersistenceIsNoOp(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()

	inst, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)

	assert.NoError(t, s.Save(ctx, inst))
	assert.NoError(t, s.SaveAll(ctx))
}

func TestStore_SaveAll(t *testing.T) {
	ps := persist.NewInMemoryStore()
	ctx := context.Background()

	var creates atomic.Int32
	s := newTestStore(t, &creates, func(o *Options) { o.Persistence = ps })

	_, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	_, err = s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "B"})
	require.NoError(t, err)

	require.NoError(t, s.SaveAll(ctx))
	assert.Equal(t, 2, ps.Len())
}

func TestStore_Evict(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()
	key := core.InstanceKey{TypeID: "todo_list", Derived: "A"}

	_, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)

	assert.True(t, s.Evict(key))
	assert.False(t, s.Evict(key))
	assert.Equal(t, 0, s.Len())

	// A later access creates fresh (no persistence configured).
	_, err = s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), creates.Load())
}

func TestStore_Keys(t *testing.T) {
	var creates atomic.Int32
	s := newTestStore(t, &creates)
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "A"})
	require.NoError(t, err)
	_, err = s.GetOrCreate(ctx, "todo_list", map[string]any{"listId": "B"})
	require.NoError(t, err)

	keys := s.Keys()
	assert.ElementsMatch(t, []core.InstanceKey{
		{TypeID: "todo_list", Derived: "A"},
		{TypeID: "todo_list", Derived: "B"},
	}, keys)
}
