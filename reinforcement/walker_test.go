package reinforcement

import (
	"context"
	"math/rand"
	"testing"

	"qgrid/agent"
	"qgrid/models"
	"qgrid/qmatrix"

	. "github.com/smartystreets/goconvey/convey"
)

func newWalker(cfg *TrainingConfig, seed int64) (*Walker, *agent.Agent, *qmatrix.QMatrix) {
	So(cfg.Validate(), ShouldBeNil)
	q, err := qmatrix.New(cfg.Grid.Size)
	So(err, ShouldBeNil)
	So(cfg.ApplyRewards(q), ShouldBeNil)
	a, err := agent.New(cfg.Grid.Size, cfg.Grid.Start, q, cfg.Epsilon(), rand.New(rand.NewSource(seed)))
	So(err, ShouldBeNil)
	return NewWalker(a, q, cfg), a, q
}

func TestRunEpisode(t *testing.T) {
	Convey("Given a walker on a 4x4 grid with a goal in the top-left corner", t, func() {
		cfg := &TrainingConfig{
			HyperParams: []HyperParameter{{Key: "epsilon", Val: 1.0}},
			Grid:        GridConfig{Size: 4, Start: 1, MaxSteps: 500},
			StepReward:  -1,
			Goals:       []int{16},
		}
		w, a, q := newWalker(cfg, 5)

		Convey("Every step is a legal move with the reward from the table", func() {
			episode, err := w.RunEpisode(context.Background())
			So(err, ShouldBeNil)
			So(len(episode), ShouldBeGreaterThan, 0)
			So(len(episode), ShouldBeLessThanOrEqualTo, 500)

			prev := cfg.Grid.Start
			for _, step := range episode {
				So(step.State, ShouldEqual, prev)
				So(step.Action.LegalFrom(4, step.State), ShouldBeTrue)
				So(step.Successor, ShouldEqual, step.State+step.Action.Delta(4))
				So(step.Reward, ShouldEqual, -1.0)
				prev = step.Successor
			}
			if len(episode) < 500 {
				So(a.CurrentState(), ShouldEqual, 16)
			}
		})

		Convey("The learner sees every step and values are otherwise untouched", func() {
			seen := 0
			w.WithLearner(LearnerFunc(func(q *qmatrix.QMatrix, step models.Step) {
				seen++
			}))
			before := q.Snapshot()
			episode, err := w.RunEpisode(context.Background())
			So(err, ShouldBeNil)
			So(seen, ShouldEqual, len(episode))
			So(q.Snapshot(), ShouldResemble, before)
		})

		Convey("Stats accumulate across episodes", func() {
			total := 0
			for i := 0; i < 3; i++ {
				episode, err := w.RunEpisode(context.Background())
				So(err, ShouldBeNil)
				total += len(episode)
			}
			stats := w.Stats()
			So(stats.Episodes, ShouldEqual, 3)
			So(stats.Steps, ShouldEqual, total)
			So(stats.TotalReward, ShouldEqual, -float64(total))
		})

		Convey("A cancelled context stops the episode", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			episode, err := w.RunEpisode(ctx)
			So(err, ShouldEqual, context.Canceled)
			So(episode, ShouldBeEmpty)
		})
	})

	Convey("Given a greedy walker whose values lead up the right column", t, func() {
		cfg := &TrainingConfig{
			HyperParams: []HyperParameter{{Key: "epsilon", Val: 0.0}},
			Grid:        GridConfig{Size: 3, Start: 1, MaxSteps: 10},
			Goals:       []int{7},
		}
		w, _, q := newWalker(cfg, 1)
		q.SetValue(1, models.Up, 1)
		q.SetValue(4, models.Up, 1)

		Convey("The walk follows the values to the goal", func() {
			episode, err := w.RunEpisode(context.Background())
			So(err, ShouldBeNil)
			So(episode, ShouldResemble, models.Episode{
				{State: 1, Action: models.Up, Successor: 4, Reward: 0},
				{State: 4, Action: models.Up, Successor: 7, Reward: 0},
			})
		})
	})

	Convey("Given a 1x1 grid", t, func() {
		cfg := &TrainingConfig{Grid: GridConfig{Size: 1, Start: 1, MaxSteps: 10}}
		w, _, _ := newWalker(cfg, 1)

		Convey("Episodes end immediately instead of looping", func() {
			episode, err := w.RunEpisode(context.Background())
			So(err, ShouldBeNil)
			So(episode, ShouldBeEmpty)
			So(w.Stats().Episodes, ShouldEqual, 1)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("When running a fixed number of episodes", t, func() {
		cfg := &TrainingConfig{
			HyperParams: []HyperParameter{{Key: "epsilon", Val: 0.5}},
			Grid:        GridConfig{Size: 3, Start: 1, MaxSteps: 20},
			Goals:       []int{9},
		}
		w, _, _ := newWalker(cfg, 9)

		progress := []int{}
		var snapshot Snapshot
		w.WithProgress(func(ctx context.Context, episode int) {
			progress = append(progress, episode)
			snapshot = w.Snapshot()
		})

		So(w.Run(context.Background(), 4), ShouldBeNil)
		So(progress, ShouldResemble, []int{1, 2, 3, 4})
		So(snapshot.Stats.Episodes, ShouldEqual, 4)
		So(snapshot.Goals, ShouldResemble, []int{9})
		So(snapshot.Grid.N, ShouldEqual, 3)
		So(snapshot.Epsilon, ShouldEqual, 0.5)
		So(snapshot.AgentState, ShouldBeBetweenOrEqual, 1, 9)
	})

	Convey("When the context is cancelled mid-run", t, func() {
		cfg := &TrainingConfig{Grid: GridConfig{Size: 3, Start: 1, MaxSteps: 5}}
		w, _, _ := newWalker(cfg, 2)

		ctx, cancel := context.WithCancel(context.Background())
		w.WithProgress(func(ctx context.Context, episode int) {
			if episode == 2 {
				cancel()
			}
		})

		So(w.Run(ctx, 0), ShouldBeNil)
		So(w.Stats().Episodes, ShouldEqual, 2)
	})
}
