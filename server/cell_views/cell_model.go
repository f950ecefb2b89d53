// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"qgrid/models"
	"qgrid/qmatrix"
	"qgrid/reinforcement"
)

// Cell is the view-model of one grid position, oriented in svg coordinates such
// that cells[0][n-1] is the cell printed at the top left of the console.
// As a rule of thumb, Cell fields should be immediately usable as view parameters.
type Cell struct {
	X, Y  int
	State int
	// Max is the greedy action's value, 0 where no action is legal.
	Max    float64
	Policy models.Action
	// PolicyArrowRotation is the svg rotation of an upward arrow pointing along Policy.
	PolicyArrowRotation int
	Fill                string
	IsAgent, IsGoal     bool
}

const (
	agentFill = "lightblue"
	goalFill  = "lightyellow"
	cellFill  = "lightgray"
)

// Convert transforms a walker snapshot into cells indexed [x][y], with y in grid
// coordinates (0 at the bottom) and the Y field flipped per the svg y-axis.
func Convert(snapshot reinforcement.Snapshot) (cells [][]Cell) {
	n := snapshot.Grid.N
	goals := map[int]bool{}
	for _, goal := range snapshot.Goals {
		goals[goal] = true
	}

	cells = make([][]Cell, n)
	for x := range cells {
		cells[x] = make([]Cell, n)
	}

	for _, entry := range snapshot.Grid.States {
		x, y := entry.Coordinate.X, entry.Coordinate.Y
		cell := Cell{
			X:                   x,
			Y:                   n - y - 1,
			State:               entry.State,
			Policy:              entry.Best,
			PolicyArrowRotation: getDegrees(entry.Best),
			IsAgent:             entry.State == snapshot.AgentState,
			IsGoal:              goals[entry.State],
		}
		if entry.Best != models.NoAction && entry.BestValue != qmatrix.Forbidden {
			cell.Max = entry.BestValue
		}
		cell.Fill = getFill(cell)
		cells[x][y] = cell
	}
	return
}

// getDegrees returns the svg rotate() degrees, clockwise from vertical, for an upward arrow.
func getDegrees(action models.Action) int {
	switch action {
	case models.Right:
		return 90
	case models.Down:
		return 180
	case models.Left:
		return 270
	}
	return 0
}

func getFill(cell Cell) string {
	switch {
	case cell.IsAgent:
		return agentFill
	case cell.IsGoal:
		return goalFill
	}
	return cellFill
}

// Rows returns the cells row by row from the top of the grid, the order in which
// they are printed.
func Rows(cells [][]Cell) [][]Cell {
	if len(cells) == 0 {
		return nil
	}
	rows := make([][]Cell, len(cells[0]))
	for _, y := range models.Rev(len(cells[0])) {
		row := make([]Cell, len(cells))
		for x := range cells {
			row[x] = cells[x][y]
		}
		rows[len(cells[0])-y-1] = row
	}
	return rows
}
