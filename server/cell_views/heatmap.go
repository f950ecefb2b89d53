package cell_views

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHeatmap writes an html page plotting the greedy value of every cell.
func RenderHeatmap(w io.Writer, cells [][]Cell) error {
	n := len(cells)
	axis := make([]string, n)
	for i := range axis {
		axis[i] = fmt.Sprintf("%d", i)
	}

	items := make([]opts.HeatMapData, 0, n*n)
	minVal, maxVal := 0.0, 0.0
	for x, col := range cells {
		for y, cell := range col {
			items = append(items, opts.HeatMapData{
				Name:  fmt.Sprintf("state %d", cell.State),
				Value: [3]interface{}{x, y, cell.Max},
			})
			if cell.Max < minVal {
				minVal = cell.Max
			}
			if cell.Max > maxVal {
				maxVal = cell.Max
			}
		}
	}
	if minVal == maxVal {
		maxVal = minVal + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "max action values",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "x",
			Type: "category",
			Data: axis,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "y",
			Type: "category",
			Data: axis,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min: float32(minVal),
			Max: float32(maxVal),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#313695", "#ffffbf", "#a50026"},
			},
		}),
	)
	hm.SetXAxis(axis).AddSeries("value", items)

	return hm.Render(w)
}
