package models

import (
	"errors"
	"fmt"
)

/*
The grid is an n x n lattice linearized into n^2 states. The bottom-right cell has
state index 1, the top-left cell has index n^2 = numStates:

	                                 y:
	|----|----|----|----|-----------|
	| n*n|....|....|....|(n*(n-1))+1| n-1
	|----|----|----|----|-----------|
	|....|....|....|....|...........| ...
	|----|----|----|----|-----------|
	| 2n |2n-1|....| n+2|    n+1    |  1
	|----|----|----|----|-----------|
	|  n | n-1|....|  2 |      1    |  0
	|----|----|----|----|-----------|
	x:  0    1   ...  n-2      n-1

Coordinates are 0-based with x growing rightward and y growing upward, and
index = y*n + (n - x). Moving right decrements the index, moving up adds n.
*/

var (
	// ErrInvalidGridSize is returned for grids with n <= 0.
	ErrInvalidGridSize error = errors.New("invalid grid size")
	// ErrStateOutOfRange is returned for state indices outside [1, n^2].
	ErrStateOutOfRange error = errors.New("state out of range")
	// ErrCoordinateOutOfRange is returned for coordinates outside [0, n).
	ErrCoordinateOutOfRange error = errors.New("coordinate out of range")
)

// NoState is the previous-state value of an agent with no history.
const NoState = -1

// Coordinate is a 0-based grid position.
type Coordinate struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// ValidateGridSize fails for grids that cannot hold a single state.
func ValidateGridSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: n=%d", ErrInvalidGridSize, n)
	}
	return nil
}

// NumStates returns the number of states in an n x n grid.
func NumStates(n int) int {
	return n * n
}

// ValidateState checks that @state is a valid 1-based index for an n x n grid.
func ValidateState(n, state int) error {
	if err := ValidateGridSize(n); err != nil {
		return err
	}
	if state < 1 || state > NumStates(n) {
		return fmt.Errorf("%w: state %d not in [1,%d]", ErrStateOutOfRange, state, NumStates(n))
	}
	return nil
}

// InBounds reports whether (x,y) lies on the grid.
func InBounds(n, x, y int) bool {
	return x >= 0 && x < n && y >= 0 && y < n
}

// ToIndex converts 0-based grid coordinates to a 1-based state index.
func ToIndex(n, x, y int) (state int, err error) {
	if err = ValidateGridSize(n); err != nil {
		return
	}
	if !InBounds(n, x, y) {
		err = fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrCoordinateOutOfRange, x, y, n, n)
		return
	}
	state = y*n + (n - x)
	return
}

// ToCoordinate is the inverse of ToIndex.
func ToCoordinate(n, state int) (coor Coordinate, err error) {
	if err = ValidateState(n, state); err != nil {
		return
	}
	coor.Y = (state - 1) / n
	coor.X = n - (state - coor.Y*n)
	return
}

// Step is a single time step of an agent: do action a in state s,
// observe reward r and successor s'.
type Step struct {
	State     int     `json:"state"`
	Action    Action  `json:"action"`
	Successor int     `json:"successor"`
	Reward    float64 `json:"reward"`
}

// Episode is a sequence of Steps.
type Episode []Step

// Rev returns reversed indices of a slice, e.g. for ranging over.
func Rev(length int) []int {
	indices := make([]int, length)
	for i := 0; i < length; i++ {
		indices[i] = length - i - 1
	}
	return indices
}
