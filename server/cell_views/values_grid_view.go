package cell_views

import (
	"fmt"
	"html/template"

	"qgrid/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// ValuesGrid shows each cell's greedy value and a policy arrow, with the agent and
// goal cells filled.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

// NewValuesGrid returns a values grid fed by @cells until @done.
func NewValuesGrid(
	done <-chan struct{},
	cells <-chan [][]Cell,
) *ValuesGrid {
	vg := &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, cells, vg.onUpdate)
	return vg
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

const cellDim = 80

func valueTextId(cell Cell) string   { return fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y) }
func policyArrowId(cell Cell) string { return fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y) }
func cellRectId(cell Cell) string    { return fmt.Sprintf("%d-%d-cell-rect", cell.X, cell.Y) }

func arrowOpacity(cell Cell) string {
	if cell.IsGoal || !cell.Policy.Valid() {
		return "0"
	}
	return "1"
}

// onUpdate returns the ele-updates that fully specify every cell, so any one
// batch is enough to bring the page up to date.
func (vg *ValuesGrid) onUpdate(cells [][]Cell) (ops []fastview.EleUpdate) {
	for _, col := range cells {
		for _, cell := range col {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: valueTextId(cell),
					Ops: []fastview.Op{
						{Key: fastview.TextContent, Value: fmt.Sprintf("%.2f", cell.Max)},
					},
				},
				fastview.EleUpdate{
					EleId: policyArrowId(cell),
					Ops: []fastview.Op{
						{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
						{Key: "opacity", Value: arrowOpacity(cell)},
					},
				},
				fastview.EleUpdate{
					EleId: cellRectId(cell),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				})
		}
	}
	return
}

// Parse defines the grid's svg within @t. It relies on the parent's add/mult/div funcs.
func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	_, err = t.Funcs(template.FuncMap{
		"valueTextId":   valueTextId,
		"policyArrowId": policyArrowId,
		"cellRectId":    cellRectId,
		"arrowOpacity":  arrowOpacity,
	}).Parse(`{{ define "` + name + `" }}
		<div id="state_values">
			{{ $n := len . }}
			{{ $cell_dim := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $half_dim := div $cell_dim 2 }}
			{{ $dim := mult $cell_dim $n }}
			<svg id="` + vg.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ add $dim 1 }}px"
				height="{{ add $dim 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $col := . }}
					{{ range $cell := $col }}
					<g>
						<rect id="{{ cellRectId $cell }}"
							x="{{ mult $cell.X $cell_dim }}"
							y="{{ mult $cell.Y $cell_dim }}"
							width="{{ $cell_dim }}"
							height="{{ $cell_dim }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text x="{{ add (mult $cell.X $cell_dim) 4 }}"
							y="{{ add (mult $cell.Y $cell_dim) 12 }}"
							font-size="10">{{ $cell.State }}</text>
						<text id="{{ valueTextId $cell }}"
							x="{{ add (mult $cell.X $cell_dim) $half_dim }}"
							y="{{ add (mult $cell.Y $cell_dim) (sub $half_dim 10) }}"
							stroke="blue"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ printf "%.2f" $cell.Max }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_dim) $half_dim }}, {{ add (mult $cell.Y $cell_dim) (add $half_dim 16) }})">
							<text id="{{ policyArrowId $cell }}"
								stroke="blue" stroke-width="1"
								dominant-baseline="central" text-anchor="middle"
								opacity="{{ arrowOpacity $cell }}"
								transform="rotate({{ $cell.PolicyArrowRotation }})"
								>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
