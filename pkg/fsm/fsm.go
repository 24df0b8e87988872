// Package fsm declares order lifecycles as explicit state x action tables.
package fsm

import (
	"sort"

	pkgerrors "github.com/angelmondragon/shopfloor-backend/pkg/errors"
)

// Table maps (state, action) to the next state for one entity kind.
type Table[S ~string, A ~string] struct {
	entity string
	edges  map[S]map[A]S
}

// Transition is a single edge of a Table.
type Transition[S ~string, A ~string] struct {
	From   []S
	Action A
	To     S
}

// New builds a table from transitions. A duplicated (state, action) pair panics
// since tables are declared once at package init.
func New[S ~string, A ~string](entity string, transitions ...Transition[S, A]) *Table[S, A] {
	t := &Table[S, A]{entity: entity, edges: make(map[S]map[A]S)}
	for _, tr := range transitions {
		for _, from := range tr.From {
			actions, ok := t.edges[from]
			if !ok {
				actions = make(map[A]S)
				t.edges[from] = actions
			}
			if _, dup := actions[tr.Action]; dup {
				panic("fsm: duplicate transition " + entity + ":" + string(from) + ":" + string(tr.Action))
			}
			actions[tr.Action] = tr.To
		}
	}
	return t
}

// Next returns the state reached by applying action in current, or an
// INVALID_TRANSITION error carrying both.
func (t *Table[S, A]) Next(current S, action A) (S, error) {
	if next, ok := t.edges[current][action]; ok {
		return next, nil
	}
	var zero S
	return zero, pkgerrors.InvalidTransition(t.entity, string(current), string(action))
}

// Can reports whether action is legal in current.
func (t *Table[S, A]) Can(current S, action A) bool {
	_, ok := t.edges[current][action]
	return ok
}

// Actions lists the legal actions from current in lexical order.
func (t *Table[S, A]) Actions(current S) []A {
	out := make([]A, 0, len(t.edges[current]))
	for action := range t.edges[current] {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entity names the kind of record the table governs.
func (t *Table[S, A]) Entity() string {
	return t.entity
}
