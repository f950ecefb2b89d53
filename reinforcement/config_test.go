package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"qgrid/models"
	"qgrid/qmatrix"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: training
def:
  hyperParams:
    - key: epsilon
      val: 0.25
  trainingDeadline:
    duration: 30s
  grid:
    size: 4
    start: 1
    maxSteps: 50
    episodes: 3
    seed: 11
  stepReward: -1
  rewards:
    - {x: 1, y: 3, action: LEFT, value: 10}
    - {x: 9, y: 9, action: UP, value: 5}
  goals: [16]
`

func writeConfig(dir, contents string) string {
	path := filepath.Join(dir, "config.yaml")
	So(os.WriteFile(path, []byte(contents), 0o600), ShouldBeNil)
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When loading a training config", t, func() {
		dir := t.TempDir()

		Convey("A well formed file decodes into the training config", func() {
			cfg, err := FromYaml(writeConfig(dir, testConfig))
			So(err, ShouldBeNil)
			So(cfg.Epsilon(), ShouldEqual, 0.25)
			So(cfg.GetHyperParamOrDefault("gamma", 0.9), ShouldEqual, 0.9)
			So(cfg.Grid, ShouldResemble, GridConfig{Size: 4, Start: 1, MaxSteps: 50, Episodes: 3, Seed: 11})
			So(cfg.StepReward, ShouldEqual, -1.0)
			So(cfg.Goals, ShouldResemble, []int{16})
			So(len(cfg.Rewards), ShouldEqual, 2)
			So(cfg.Rewards[0], ShouldResemble, RewardConfig{X: 1, Y: 3, Action: models.Left, Value: 10})
		})

		Convey("An unknown kind is rejected", func() {
			_, err := FromYaml(writeConfig(dir, "kind: server\ndef: {}\n"))
			So(errors.Is(err, ErrUnknownKind), ShouldBeTrue)
		})

		Convey("A start state off the grid is rejected", func() {
			_, err := FromYaml(writeConfig(dir, "kind: training\ndef:\n  grid: {size: 3, start: 10}\n"))
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			So(errors.Is(err, models.ErrStateOutOfRange), ShouldBeTrue)
		})

		Convey("An unknown action name is rejected", func() {
			_, err := FromYaml(writeConfig(dir, `
kind: training
def:
  grid: {size: 3, start: 1}
  rewards:
    - {x: 0, y: 0, action: SIDEWAYS, value: 1}
`))
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			So(errors.Is(err, models.ErrInvalidAction), ShouldBeTrue)
		})

		Convey("A mistyped field is an invalid config", func() {
			_, err := FromYaml(writeConfig(dir, "kind: training\ndef:\n  grid: {size: three, start: 1}\n"))
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("A missing file is an error", func() {
			_, err := FromYaml(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("When validating a config", t, func() {
		cfg := &TrainingConfig{Grid: GridConfig{Size: 3, Start: 2}}
		So(cfg.Validate(), ShouldBeNil)

		Convey("Epsilon must be a probability", func() {
			cfg.HyperParams = []HyperParameter{{Key: "epsilon", Val: 1.5}}
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Goals must be on the grid", func() {
			cfg.Goals = []int{0}
			So(errors.Is(cfg.Validate(), models.ErrStateOutOfRange), ShouldBeTrue)
		})

		Convey("The grid must hold a state", func() {
			cfg.Grid.Size = 0
			So(errors.Is(cfg.Validate(), models.ErrInvalidGridSize), ShouldBeTrue)
		})

		Convey("Reward overrides need a real action", func() {
			cfg.Rewards = []RewardConfig{{X: 0, Y: 0, Action: models.NoAction, Value: 1}}
			So(errors.Is(cfg.Validate(), models.ErrInvalidAction), ShouldBeTrue)
		})

		Convey("The step reward may not be the sentinel", func() {
			cfg.StepReward = qmatrix.Forbidden
			So(errors.Is(cfg.Validate(), qmatrix.ErrForbiddenReward), ShouldBeTrue)
		})
	})
}

func TestApplyRewards(t *testing.T) {
	Convey("When applying a reward layout", t, func() {
		cfg := &TrainingConfig{
			Grid:       GridConfig{Size: 3, Start: 1},
			StepReward: -1,
			Rewards: []RewardConfig{
				{X: 1, Y: 1, Action: models.Up, Value: 5},
				{X: 3, Y: 3, Action: models.Up, Value: 5},
			},
		}
		q, _ := qmatrix.New(3)
		So(cfg.ApplyRewards(q), ShouldBeNil)

		Convey("On-grid moves get the step reward and edges stay forbidden", func() {
			So(q.Reward(1, models.Left), ShouldEqual, -1.0)
			So(q.Reward(1, models.Down), ShouldEqual, qmatrix.Forbidden)
			So(q.Reward(9, models.Up), ShouldEqual, qmatrix.Forbidden)
		})

		Convey("Overrides land on their cell and out of range ones are skipped", func() {
			So(q.Reward(5, models.Up), ShouldEqual, 5.0)
		})

		Convey("Values are untouched", func() {
			So(q.Value(1, models.Left), ShouldEqual, 0.0)
		})
	})
}

func TestTrainingDeadline(t *testing.T) {
	Convey("When deriving the training context", t, func() {
		Convey("A duration becomes a deadline", func() {
			cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "1m"}}
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(deadline, ShouldHappenWithin, time.Minute+time.Second, time.Now())
		})

		Convey("No duration means cancellation only", func() {
			cfg := &TrainingConfig{}
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			_, ok := ctx.Deadline()
			So(ok, ShouldBeFalse)
			cancel()
			So(ctx.Err(), ShouldEqual, context.Canceled)
		})

		Convey("A malformed duration is an error", func() {
			cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "soon"}}
			_, _, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestWatchConfig(t *testing.T) {
	Convey("When the config file changes on disk", t, func() {
		dir := t.TempDir()
		path := writeConfig(dir, testConfig)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		reloaded := make(chan float64, 8)
		err := WatchConfig(ctx, path, func(cfg *TrainingConfig) {
			reloaded <- cfg.Epsilon()
		})
		So(err, ShouldBeNil)

		// Give the watcher a moment to register before writing.
		time.Sleep(100 * time.Millisecond)
		updated := strings.Replace(testConfig, "val: 0.25", "val: 0.75", 1)
		So(os.WriteFile(path, []byte(updated), 0o600), ShouldBeNil)

		// A write may be observed mid-way, so wait for the final value.
		timeout := time.After(5 * time.Second)
		observed := 0.0
		for observed != 0.75 {
			select {
			case observed = <-reloaded:
			case <-timeout:
				So(observed, ShouldEqual, 0.75)
				return
			}
		}
		So(observed, ShouldEqual, 0.75)
	})
}
