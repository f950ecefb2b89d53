package qmatrix

import (
	"qgrid/models"
)

// StateEntry is a copy of everything the matrix stores for one state.
type StateEntry struct {
	State      int                        `json:"state"`
	Coordinate models.Coordinate          `json:"coordinate"`
	Values     [models.NumActions]float64 `json:"values"`
	Rewards    [models.NumActions]float64 `json:"rewards"`
	Best       models.Action              `json:"best"`
	BestValue  float64                    `json:"bestValue"`
}

// Grid is a point-in-time copy of the matrix, for views.
// States[i] holds state i+1.
type Grid struct {
	N      int          `json:"n"`
	States []StateEntry `json:"states"`
}

// Entry returns the copy of @state.
func (g Grid) Entry(state int) StateEntry {
	return g.States[state-1]
}

// Snapshot copies both tables under a single read lock, so the copy is consistent
// with respect to concurrent Update calls.
func (q *QMatrix) Snapshot() Grid {
	q.mu.RLock()
	defer q.mu.RUnlock()

	grid := Grid{
		N:      q.n,
		States: make([]StateEntry, q.numStates),
	}
	for state := 1; state <= q.numStates; state++ {
		entry := StateEntry{State: state}
		// Cannot fail: every state in [1, numStates] maps to a coordinate.
		entry.Coordinate, _ = models.ToCoordinate(q.n, state)
		copy(entry.Values[:], q.values.RawRowView(q.row(state)))
		copy(entry.Rewards[:], q.rewards.RawRowView(q.row(state)))
		entry.Best, entry.BestValue = BestAction(q.n, state, entry.Values)
		grid.States[state-1] = entry
	}
	return grid
}

// BestAction returns the highest valued legal action from @state given its action @values.
// Actions are scanned in slot order and a later action replaces the candidate only when
// its value is strictly higher, so ties go to the first legal action in scan order.
// NoAction is returned when no action is legal.
func BestAction(n, state int, values [models.NumActions]float64) (best models.Action, bestValue float64) {
	best = models.NoAction
	bestValue = Forbidden
	for _, action := range models.Actions {
		if !action.LegalFrom(n, state) {
			continue
		}
		if best == models.NoAction || values[action.Slot()] > bestValue {
			best = action
			bestValue = values[action.Slot()]
		}
	}
	return
}
