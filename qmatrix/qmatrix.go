// Package qmatrix holds the action-value and immediate-reward tables of the grid.
package qmatrix

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"qgrid/models"

	"gonum.org/v1/gonum/mat"
)

// Forbidden marks state/action pairs that would move off the grid. It is the
// lowest representable float64, so a forbidden action can never win a max.
const Forbidden = -math.MaxFloat64

// ErrForbiddenReward is returned when a caller tries to assign the Forbidden sentinel as a reward.
var ErrForbiddenReward error = errors.New("reward collides with the forbidden sentinel")

// QMatrix stores two dense numStates x NumActions tables: the learned action values
// and the environment's immediate rewards. Rows are addressed by 1-based state
// indices at the API; the 0-based row conversion happens only in row().
//
// The tables are shared by the agent, the walker and the server views, so access is
// guarded by a RWMutex. Update provides the read-modify-write primitive required by
// any learner running alongside a reader.
type QMatrix struct {
	n         int
	numStates int

	mu      sync.RWMutex
	values  *mat.Dense
	rewards *mat.Dense
}

// New allocates zeroed tables for an n x n grid and marks every off-grid move as Forbidden.
func New(n int) (*QMatrix, error) {
	if err := models.ValidateGridSize(n); err != nil {
		return nil, fmt.Errorf("qmatrix: %w", err)
	}

	numStates := models.NumStates(n)
	q := &QMatrix{
		n:         n,
		numStates: numStates,
		values:    mat.NewDense(numStates, models.NumActions, nil),
		rewards:   mat.NewDense(numStates, models.NumActions, nil),
	}
	q.setForbiddenDirections()
	return q, nil
}

// setForbiddenDirections walks every edge cell, not just the corners.
func (q *QMatrix) setForbiddenDirections() {
	n := q.n
	forbid := func(state int, action models.Action) {
		q.values.Set(q.row(state), action.Slot(), Forbidden)
		q.rewards.Set(q.row(state), action.Slot(), Forbidden)
	}

	for i := 1; i <= n; i++ {
		// Going down on bottommost cells
		forbid(i, models.Down)
		// Going left on leftmost cells
		forbid(i*n, models.Left)
		// Going right on rightmost cells
		forbid((i-1)*n+1, models.Right)
		// Going up on topmost cells
		forbid(n*(n-1)+i, models.Up)
	}
}

// Size returns n, the side length of the grid.
func (q *QMatrix) Size() int {
	return q.n
}

// NumStates returns n^2.
func (q *QMatrix) NumStates() int {
	return q.numStates
}

// row converts a 1-based state index to a table row. An out-of-range state is
// a programming error, not a recoverable condition.
func (q *QMatrix) row(state int) int {
	if state < 1 || state > q.numStates {
		panic(fmt.Sprintf("qmatrix: state %d not in [1,%d]", state, q.numStates))
	}
	return state - 1
}

func col(action models.Action) int {
	if !action.Valid() {
		panic(fmt.Sprintf("qmatrix: invalid action %d", int(action)))
	}
	return action.Slot()
}

// Value returns the learned value of taking @action from @state.
func (q *QMatrix) Value(state int, action models.Action) float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.values.At(q.row(state), col(action))
}

// SetValue overwrites the learned value of taking @action from @state.
func (q *QMatrix) SetValue(state int, action models.Action, value float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.values.Set(q.row(state), col(action), value)
}

// Update atomically replaces the value of (@state, @action) with fn(old) and returns the new value.
func (q *QMatrix) Update(state int, action models.Action, fn func(old float64) float64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, c := q.row(state), col(action)
	updated := fn(q.values.At(r, c))
	q.values.Set(r, c, updated)
	return updated
}

// Values returns a copy of the learned values of every action from @state, indexed by slot.
func (q *QMatrix) Values(state int) (values [models.NumActions]float64) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	copy(values[:], q.values.RawRowView(q.row(state)))
	return
}

// Reward returns the immediate reward for attempting @action from @state.
func (q *QMatrix) Reward(state int, action models.Action) float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.rewards.At(q.row(state), col(action))
}

// SetReward overwrites the immediate reward for attempting @action from @state.
func (q *QMatrix) SetReward(state int, action models.Action, reward float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rewards.Set(q.row(state), col(action), reward)
}

// SetRewardAt sets the reward of @action from the cell at (@x, @y).
// Out-of-bounds coordinates leave the table untouched and return ErrCoordinateOutOfRange;
// callers building reward layouts in bulk may choose to ignore it.
func (q *QMatrix) SetRewardAt(x, y int, action models.Action, reward float64) error {
	if reward == Forbidden {
		return fmt.Errorf("%w: (%d,%d) %v", ErrForbiddenReward, x, y, action)
	}

	state, err := models.ToIndex(q.n, x, y)
	if err != nil {
		slog.Debug("ignoring reward outside the grid",
			"x", x,
			"y", y,
			"action", action,
			"reward", reward,
			"n", q.n)
		return err
	}

	q.SetReward(state, action, reward)
	return nil
}

// IsForbidden reports whether (@state, @action) holds the boundary sentinel in the value table.
func (q *QMatrix) IsForbidden(state int, action models.Action) bool {
	return q.Value(state, action) == Forbidden
}
