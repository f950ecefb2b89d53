package cell_views

import (
	"fmt"
	"io"

	"qgrid/models"

	"github.com/logrusorgru/aurora"
)

// Returns a printable rune for a cell's policy; goals and stuck cells have none.
func policyRune(cell Cell) rune {
	if cell.IsGoal {
		return '*'
	}
	switch cell.Policy {
	case models.Right:
		return '>'
	case models.Left:
		return '<'
	case models.Up:
		return '^'
	case models.Down:
		return 'v'
	}
	return '-'
}

func colorize(cell Cell, s string) aurora.Value {
	switch {
	case cell.IsAgent:
		return aurora.Green(s)
	case cell.IsGoal:
		return aurora.Yellow(s)
	}
	return aurora.Blue(s)
}

// ShowPolicy prints the greedy direction of each cell, top row first, with the agent in green.
func ShowPolicy(w io.Writer, cells [][]Cell) {
	for _, row := range Rows(cells) {
		fmt.Fprint(w, " ")
		for _, cell := range row {
			fmt.Fprint(w, colorize(cell, fmt.Sprintf("%c", policyRune(cell))))
			fmt.Fprint(w, aurora.White(" |"))
		}
		fmt.Fprintln(w)
	}
}

// ShowValues prints the greedy value of each cell and their total.
func ShowValues(w io.Writer, cells [][]Cell) {
	fmt.Fprintln(w, "Max vals:")
	total := 0.0
	for _, row := range Rows(cells) {
		fmt.Fprint(w, " ")
		for _, cell := range row {
			fmt.Fprint(w, colorize(cell, format2x2(cell.Max)))
			fmt.Fprint(w, aurora.White("|"))
			total += cell.Max
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Total: %.2f\n", total)
}

func format2x2(x float64) string {
	if x < 0 {
		return " -" + fmt.Sprintf("%05.2f", -x)
	}
	return "  " + fmt.Sprintf("%05.2f", x)
}
