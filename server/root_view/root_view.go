package root_view

import (
	"context"
	"html/template"
	"time"

	"qgrid/reinforcement"
	"qgrid/server/cell_views"
	"qgrid/server/fastview"
)

// BatchRate is how often the merged ele-updates of all views are flushed.
const BatchRate = time.Millisecond * 20

// RootView is the main page: the container for all the view components and the
// wiring of their update channels.
type RootView struct {
	page *fastview.Page
}

// NewRootView builds the page's views over the snapshot stream.
func NewRootView(
	ctx context.Context,
	snapshots <-chan reinforcement.Snapshot,
) (*RootView, error) {
	page, err := fastview.NewViewBuilder[reinforcement.Snapshot, [][]cell_views.Cell]().
		WithContext(ctx).
		WithBatchRate(BatchRate).
		WithModel(snapshots, cell_views.Convert).
		WithView(func(
			done <-chan struct{},
			cellUpdates <-chan [][]cell_views.Cell) fastview.ViewComponent {
			return cell_views.NewValuesGrid(done, cellUpdates)
		}).
		Build()
	if err != nil {
		return nil, err
	}

	return &RootView{page: page}, nil
}

// Updates returns the merged ele-update channel of all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.page.Updates()
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also defines the func-map the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.page.Views {
		var tname string
		if tname, err = vc.Parse(rt); err != nil {
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	name = "mainpage"
	_, err = rt.Parse(`
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<title>qgrid</title>
			<!--The server pushes ele-updates over the websocket; each names an element and its new attributes.-->
			<script>
				const scheme = location.protocol === "https:" ? "wss://" : "ws://";
				const ws = new WebSocket(scheme + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		<p><a href="/heatmap">heatmap</a> <a href="/api/grid">grid json</a></p>
		</body></html>
	{{ end }}
	`)
	return
}
