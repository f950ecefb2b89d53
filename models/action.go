// Package models holds the grid geometry and the actions moving between its states.
//
// Right is legal everywhere except the right column, (state-1)%n != 0. The
// form state%n > 1 would also forbid Right from the left column, whose
// successor state-1 is on the grid.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Action is one of the four directional moves. Its value is the slot used to
// index value and reward tables. The set is closed: every Action other than
// NoAction carries a fixed index delta and legality predicate from the moves table,
// so that legality checks and execution cannot disagree.
type Action int

const (
	// NoAction is returned when a state admits no legal action (the 1x1 grid).
	NoAction Action = iota - 1
	Right
	Left
	Up
	Down
)

// NumActions is the number of directional actions.
const NumActions = 4

var (
	// ErrInvalidAction is returned for slots or names that do not name an action.
	ErrInvalidAction error = errors.New("invalid action")
	// ErrIllegalAction is returned when executing an action that would leave the grid.
	ErrIllegalAction error = errors.New("illegal action")
	// ErrNoLegalAction is returned when a state has no legal action at all.
	ErrNoLegalAction error = errors.New("no legal action")
)

// Actions holds every action in scan order. Greedy ties resolve toward earlier entries.
var Actions = [NumActions]Action{Right, Left, Up, Down}

type move struct {
	name string
	// delta is the change in state index for an n x n grid.
	delta func(n int) int
	// legal reports whether the move keeps @state on the grid.
	legal func(n, state int) bool
}

var moves = [NumActions]move{
	Right: {
		name:  "RIGHT",
		delta: func(n int) int { return -1 },
		// Not in the right column, states (k-1)*n+1.
		legal: func(n, state int) bool { return (state-1)%n != 0 },
	},
	Left: {
		name:  "LEFT",
		delta: func(n int) int { return 1 },
		// Not in the left column, states k*n.
		legal: func(n, state int) bool { return state%n != 0 },
	},
	Up: {
		name:  "UP",
		delta: func(n int) int { return n },
		legal: func(n, state int) bool { return state <= n*(n-1) },
	},
	Down: {
		name:  "DOWN",
		delta: func(n int) int { return -n },
		legal: func(n, state int) bool { return state > n },
	},
}

// Valid reports whether the action is one of the four moves.
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

// Slot returns the table column of the action.
func (a Action) Slot() int {
	return int(a)
}

func (a Action) String() string {
	if !a.Valid() {
		return "NONE"
	}
	return moves[a].name
}

// Delta returns the fixed change in state index caused by the action on an n x n grid.
func (a Action) Delta(n int) int {
	if !a.Valid() {
		return 0
	}
	return moves[a].delta(n)
}

// LegalFrom reports whether taking the action from @state keeps the agent on an n x n grid.
// NoAction is never legal.
func (a Action) LegalFrom(n, state int) bool {
	return a.Valid() && moves[a].legal(n, state)
}

// Apply returns the successor of @state, failing if the action leaves the grid.
func (a Action) Apply(n, state int) (int, error) {
	if err := ValidateState(n, state); err != nil {
		return state, err
	}
	if !a.LegalFrom(n, state) {
		return state, fmt.Errorf("%w: %v from state %d", ErrIllegalAction, a, state)
	}
	return state + a.Delta(n), nil
}

// ActionFromSlot returns the action stored in table column @slot.
func ActionFromSlot(slot int) (Action, error) {
	a := Action(slot)
	if !a.Valid() {
		return NoAction, fmt.Errorf("%w: slot %d", ErrInvalidAction, slot)
	}
	return a, nil
}

// ParseAction parses an action name, case-insensitively.
func ParseAction(name string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(moves[a].name, strings.TrimSpace(name)) {
			return a, nil
		}
	}
	return NoAction, fmt.Errorf("%w: %q", ErrInvalidAction, name)
}

// MarshalText implements encoding.TextMarshaler, so actions serialize by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// NONE decodes to NoAction so that snapshots round trip; ParseAction still rejects it.
func (a *Action) UnmarshalText(text []byte) (err error) {
	if strings.EqualFold(strings.TrimSpace(string(text)), NoAction.String()) {
		*a = NoAction
		return nil
	}
	*a, err = ParseAction(string(text))
	return
}

// LegalActions returns the actions that keep @state on an n x n grid, in scan order.
func LegalActions(n, state int) (legal []Action) {
	for _, a := range Actions {
		if a.LegalFrom(n, state) {
			legal = append(legal, a)
		}
	}
	return
}
