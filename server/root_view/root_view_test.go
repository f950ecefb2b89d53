package root_view

import (
	"context"
	"html/template"
	"strings"
	"testing"
	"time"

	"qgrid/qmatrix"
	"qgrid/reinforcement"
	"qgrid/server/cell_views"
	"qgrid/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootView(t *testing.T) {
	Convey("When building the root view", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q, err := qmatrix.New(2)
		So(err, ShouldBeNil)
		snapshot := reinforcement.Snapshot{Grid: q.Snapshot(), AgentState: 1, Goals: []int{4}}

		snapshots := make(chan reinforcement.Snapshot, 1)
		rv, err := NewRootView(ctx, snapshots)
		So(err, ShouldBeNil)

		Convey("Snapshots become batched ele-updates", func() {
			snapshots <- snapshot
			var updates []fastview.EleUpdate
			select {
			case updates = <-rv.Updates():
			case <-time.After(2 * time.Second):
			}
			So(len(updates), ShouldEqual, 3*4)
		})

		Convey("The page embeds the views and the websocket bootstrap", func() {
			page := template.New("index.html")
			name, err := rv.Parse(page)
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "mainpage")
			_, err = page.Parse(`{{ template "mainpage" . }}`)
			So(err, ShouldBeNil)

			sb := &strings.Builder{}
			So(page.Execute(sb, cell_views.Convert(snapshot)), ShouldBeNil)
			So(sb.String(), ShouldContainSubstring, "new WebSocket")
			So(sb.String(), ShouldContainSubstring, `id="valuesgrid"`)
		})
	})
}
