// Package testutil provides shared context definitions for tests: a todo
// list context keyed by list id and a counter context keyed by a name.
package testutil

import (
	"fmt"
	"strings"

	"github.com/hupe1980/contextmesh/core"
)

// TodoArgs are the creation arguments of the todo list context.
type TodoArgs struct {
	ListID string `json:"listId" description:"Identifier of the todo list"`
}

// TodoMemory is the memory shape of the todo list context.
type TodoMemory struct {
	ListID string   `json:"listId"`
	Items  []string `json:"items"`
}

// NewTodoDefinition builds a todo list context definition: one instance per
// listId, rendering the items as a markdown bullet list.
func NewTodoDefinition() core.Definition {
	return core.MustNewDefinition(core.Config[TodoArgs, TodoMemory]{
		TypeID: "todo_list",
		KeyFn:  func(args TodoArgs) string { return args.ListID },
		CreateFn: func(args TodoArgs) (TodoMemory, error) {
			return TodoMemory{ListID: args.ListID, Items: []string{}}, nil
		},
		RenderFn: func(mem TodoMemory, _ core.Metadata) (string, error) {
			var b strings.Builder
			fmt.Fprintf(&b, "# Todo list %s\n", mem.ListID)
			if len(mem.Items) == 0 {
				b.WriteString("(empty)\n")
				return b.String(), nil
			}
			for _, item := range mem.Items {
				fmt.Fprintf(&b, "- %s\n", item)
			}
			return b.String(), nil
		},
	})
}

// AddTodoItem mutates the todo memory behind a type-erased handle, appending
// one item. Helper for handler tests.
func AddTodoItem(mem any, item string) error {
	todo, ok := mem.(*TodoMemory)
	if !ok {
		return fmt.Errorf("unexpected memory type %T", mem)
	}
	todo.Items = append(todo.Items, item)
	return nil
}

// CounterArgs are the creation arguments of the counter context.
type CounterArgs struct {
	Name string `json:"name" description:"Counter name"`
}

// CounterMemory is the memory shape of the counter context.
type CounterMemory struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// NewCounterDefinition builds a minimal counter context definition.
func NewCounterDefinition() core.Definition {
	return core.MustNewDefinition(core.Config[CounterArgs, CounterMemory]{
		TypeID: "counter",
		KeyFn:  func(args CounterArgs) string { return args.Name },
		CreateFn: func(args CounterArgs) (CounterMemory, error) {
			return CounterMemory{Name: args.Name}, nil
		},
		RenderFn: func(mem CounterMemory, _ core.Metadata) (string, error) {
			return fmt.Sprintf("counter %s = %d", mem.Name, mem.Value), nil
		},
	})
}
