package main

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"qgrid/agent"
	"qgrid/qmatrix"
	"qgrid/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

const headlessConfig = `
kind: training
def:
  hyperParams:
    - key: epsilon
      val: 0.3
  grid:
    size: 3
    start: 1
    maxSteps: 30
    episodes: 4
    seed: 7
  stepReward: -1
  goals: [9]
`

func TestExportSnapshots(t *testing.T) {
	Convey("When exporting snapshots during training", t, func() {
		cfg := &reinforcement.TrainingConfig{Grid: reinforcement.GridConfig{Size: 3, Start: 1, MaxSteps: 5}}
		q, err := qmatrix.New(3)
		So(err, ShouldBeNil)
		a, err := agent.New(3, 1, q, 0.5, rand.New(rand.NewSource(1)))
		So(err, ShouldBeNil)
		walker := reinforcement.NewWalker(a, q, cfg)

		snapshots := make(chan reinforcement.Snapshot, 10)
		export := exportSnapshots(walker, snapshots, 2)

		Convey("Only every nth episode is sent", func() {
			for episode := 1; episode <= 5; episode++ {
				export(context.Background(), episode)
			}
			So(len(snapshots), ShouldEqual, 2)
			So((<-snapshots).Grid.N, ShouldEqual, 3)
		})

		Convey("A cancelled walk does not block on a full channel", func() {
			blocked := make(chan reinforcement.Snapshot)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			finished := make(chan struct{})
			go func() {
				exportSnapshots(walker, blocked, 1)(ctx, 1)
				close(finished)
			}()
			select {
			case <-finished:
			case <-time.After(2 * time.Second):
				So("export blocked", ShouldBeEmpty)
			}
		})
	})
}

func TestRunAppHeadless(t *testing.T) {
	Convey("When running without the server", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte(headlessConfig), 0o600), ShouldBeNil)

		out := &bytes.Buffer{}
		opts := &options{configPath: path, serve: false, out: out}

		Convey("Training runs to completion and prints the final grid", func() {
			So(runApp(context.Background(), opts), ShouldBeNil)
			So(out.String(), ShouldContainSubstring, "episodes: 4")
			So(out.String(), ShouldContainSubstring, "Max vals:")
		})

		Convey("A bad config path is an error", func() {
			opts.configPath = filepath.Join(t.TempDir(), "missing.yaml")
			So(runApp(context.Background(), opts), ShouldNotBeNil)
		})
	})
}
