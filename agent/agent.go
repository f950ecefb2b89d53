// Package agent implements the decision model of a single agent moving on the grid:
// which actions are legal where, and the epsilon-greedy choice between them.
package agent

import (
	"errors"
	"fmt"

	"qgrid/atomic_float"
	"qgrid/models"
	"qgrid/qmatrix"
)

// RandSource is the randomness the agent consumes. *rand.Rand satisfies it.
type RandSource interface {
	// Float64 returns a uniform number in [0,1).
	Float64() float64
	// Intn returns a uniform integer in [0,n).
	Intn(n int) int
}

// ErrInvalidExplorationRate is returned for exploration rates outside [0,1].
var ErrInvalidExplorationRate error = errors.New("exploration rate must be in [0,1]")

// Agent walks an n x n grid, choosing actions from a shared QMatrix.
// The agent is not safe for concurrent use, with the exception of
// SetExplorationRate/ExplorationRate, which may be called from any goroutine.
type Agent struct {
	n        int
	q        *qmatrix.QMatrix
	current  int
	previous int
	epsilon  *atomic_float.AtomicFloat64
	rng      RandSource
}

// New returns an agent at @start. The QMatrix is shared, not owned, and must describe the same grid.
func New(
	n int,
	start int,
	q *qmatrix.QMatrix,
	epsilon float64,
	rng RandSource,
) (*Agent, error) {
	if err := models.ValidateState(n, start); err != nil {
		return nil, fmt.Errorf("agent start: %w", err)
	}
	if q == nil || q.Size() != n {
		return nil, fmt.Errorf("agent: qmatrix does not describe a %dx%d grid: %w", n, n, models.ErrInvalidGridSize)
	}
	if err := validateRate(epsilon); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("agent: nil random source")
	}

	return &Agent{
		n:        n,
		q:        q,
		current:  start,
		previous: models.NoState,
		epsilon:  atomic_float.NewAtomicFloat64(epsilon),
		rng:      rng,
	}, nil
}

func validateRate(epsilon float64) error {
	// Written so that NaN fails too.
	if !(epsilon >= 0 && epsilon <= 1) {
		return fmt.Errorf("%w: %v", ErrInvalidExplorationRate, epsilon)
	}
	return nil
}

// CurrentState returns the agent's state index.
func (a *Agent) CurrentState() int {
	return a.current
}

// PreviousState returns the state before the last executed action, or models.NoState.
func (a *Agent) PreviousState() int {
	return a.previous
}

// Coordinate returns the grid position of the current state.
func (a *Agent) Coordinate() models.Coordinate {
	// current is kept in range by New, Reset and Execute.
	coor, _ := models.ToCoordinate(a.n, a.current)
	return coor
}

// ExplorationRate returns epsilon, the probability of taking a random action.
func (a *Agent) ExplorationRate() float64 {
	return a.epsilon.AtomicRead()
}

// SetExplorationRate changes epsilon. It is safe to call while the agent is acting.
func (a *Agent) SetExplorationRate(epsilon float64) error {
	if err := validateRate(epsilon); err != nil {
		return err
	}
	a.epsilon.Store(epsilon)
	return nil
}

// Reset moves the agent to @start and forgets its history, e.g. at the start of an episode.
func (a *Agent) Reset(start int) error {
	if err := models.ValidateState(a.n, start); err != nil {
		return fmt.Errorf("agent reset: %w", err)
	}
	a.current = start
	a.previous = models.NoState
	return nil
}

// CanExecute reports whether @action keeps the agent on the grid from its current state.
func (a *Agent) CanExecute(action models.Action) bool {
	return action.LegalFrom(a.n, a.current)
}

// SelectAction is the epsilon-greedy policy: with probability epsilon a random legal
// action, otherwise the highest valued legal action.
func (a *Agent) SelectAction() (models.Action, error) {
	if a.rng.Float64() < a.ExplorationRate() {
		// Exploration: do something random
		return a.PickRandom()
	}
	// Exploitation: take the max-valued action
	return a.PickBest()
}

// PickRandom samples actions uniformly until one is legal from the current state.
// A state with no legal action at all (the 1x1 grid) returns ErrNoLegalAction instead of looping.
func (a *Agent) PickRandom() (models.Action, error) {
	if len(models.LegalActions(a.n, a.current)) == 0 {
		return models.NoAction, fmt.Errorf("%w: state %d", models.ErrNoLegalAction, a.current)
	}

	for {
		action := models.Actions[a.rng.Intn(models.NumActions)]
		if a.CanExecute(action) {
			return action, nil
		}
	}
}

// PickBest returns the legal action with the highest learned value from the current state.
// Ties go to the first legal action in scan order (Right, Left, Up, Down).
// Rewards are not consulted.
func (a *Agent) PickBest() (models.Action, error) {
	best, _ := qmatrix.BestAction(a.n, a.current, a.q.Values(a.current))
	if best == models.NoAction {
		return models.NoAction, fmt.Errorf("%w: state %d", models.ErrNoLegalAction, a.current)
	}
	return best, nil
}

// Execute moves the agent by the action's fixed delta, recording the prior state.
// Illegal actions fail fast and leave the agent where it was.
func (a *Agent) Execute(action models.Action) error {
	next, err := action.Apply(a.n, a.current)
	if err != nil {
		return err
	}
	a.previous = a.current
	a.current = next
	return nil
}
