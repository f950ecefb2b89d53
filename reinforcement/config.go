package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qgrid/models"
	"qgrid/qmatrix"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the envelope of a config file: a kind tag and an arbitrary definition,
// which is decoded a second time into the struct matching the kind.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingKind is the only config kind currently understood.
const TrainingKind = "training"

// TrainingConfig holds the grid layout and the agent's policy parameters.
// The Q update rule is not part of this repo, so there are no learning-rate
// semantics here beyond what a plugged-in Learner reads from HyperParams.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value, e.g. epsilon.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// TrainingDeadline is a fixed duration describing when to terminate training.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
	Grid             GridConfig        `yaml:"grid"`
	// StepReward is the reward of every on-grid move before Rewards are applied.
	StepReward float64 `yaml:"stepreward"`
	// Rewards are per-cell, per-action reward overrides.
	Rewards []RewardConfig `yaml:"rewards"`
	// Goals are terminal states; reaching one ends the episode.
	Goals []int `yaml:"goals"`
}

// GridConfig describes the grid and the episode structure.
type GridConfig struct {
	Size     int   `yaml:"size"`
	Start    int   `yaml:"start"`
	MaxSteps int   `yaml:"maxsteps"`
	Episodes int   `yaml:"episodes"`
	Seed     int64 `yaml:"seed"`
}

// RewardConfig sets the immediate reward of one action from the cell at (X,Y).
type RewardConfig struct {
	X      int           `yaml:"x"`
	Y      int           `yaml:"y"`
	Action models.Action `yaml:"action"`
	Value  float64       `yaml:"value"`
}

// HyperParameter is a named scalar.
type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// ErrUnknownKind is returned for config files whose kind is not TrainingKind.
var ErrUnknownKind error = errors.New("unknown config kind")

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig error = errors.New("invalid config")

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// Epsilon returns the configured exploration rate, 0.1 if absent.
func (cfg *TrainingConfig) Epsilon() float64 {
	return cfg.GetHyperParamOrDefault("epsilon", 0.1)
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// Validate checks the geometry and policy parameters against each other.
func (cfg *TrainingConfig) Validate() error {
	n := cfg.Grid.Size
	if err := models.ValidateGridSize(n); err != nil {
		return fmt.Errorf("%w: grid: %w", ErrInvalidConfig, err)
	}
	if err := models.ValidateState(n, cfg.Grid.Start); err != nil {
		return fmt.Errorf("%w: start: %w", ErrInvalidConfig, err)
	}
	for _, goal := range cfg.Goals {
		if err := models.ValidateState(n, goal); err != nil {
			return fmt.Errorf("%w: goal: %w", ErrInvalidConfig, err)
		}
	}
	if eps := cfg.Epsilon(); !(eps >= 0 && eps <= 1) {
		return fmt.Errorf("%w: epsilon %v not in [0,1]", ErrInvalidConfig, eps)
	}
	if cfg.Grid.MaxSteps < 0 || cfg.Grid.Episodes < 0 {
		return fmt.Errorf("%w: maxSteps and episodes must not be negative", ErrInvalidConfig)
	}
	for _, r := range cfg.Rewards {
		if !r.Action.Valid() {
			return fmt.Errorf("%w: reward (%d,%d): %w", ErrInvalidConfig, r.X, r.Y, models.ErrInvalidAction)
		}
	}
	if cfg.StepReward == qmatrix.Forbidden {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, qmatrix.ErrForbiddenReward)
	}
	return nil
}

// ApplyRewards writes the reward layout into @q: StepReward for every on-grid move,
// then the per-cell overrides. Overrides outside the grid are logged and skipped,
// since a layout written for a larger grid is still useful on a smaller one.
func (cfg *TrainingConfig) ApplyRewards(q *qmatrix.QMatrix) error {
	n := q.Size()
	for state := 1; state <= q.NumStates(); state++ {
		for _, action := range models.LegalActions(n, state) {
			q.SetReward(state, action, cfg.StepReward)
		}
	}

	for _, r := range cfg.Rewards {
		err := q.SetRewardAt(r.X, r.Y, r.Action, r.Value)
		if errors.Is(err, models.ErrCoordinateOutOfRange) {
			slog.Warn("skipping reward outside the grid", "x", r.X, "y", r.Y, "action", r.Action)
			continue
		}
		if err != nil {
			return fmt.Errorf("reward (%d,%d) %v: %w", r.X, r.Y, r.Action, err)
		}
	}
	return nil
}

// FromYaml reads a training config file. Relative paths resolve against the working directory.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := newViper(path)
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decode(vp)
}

func newViper(path string) *viper.Viper {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	return vp
}

// decode unwraps the outer envelope and re-marshals its definition through yaml,
// so the inner struct only needs yaml tags. Viper lowercases every key it reads,
// hence the all-lowercase tags on TrainingConfig.
func decode(vp *viper.Viper) (*TrainingConfig, error) {
	var err error
	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != TrainingKind {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, outerConfig.Kind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err = innerConfig.Validate(); err != nil {
		return nil, err
	}
	return innerConfig, nil
}

// WatchConfig re-reads @path whenever it changes on disk and passes each valid
// config to @onChange. Invalid edits are logged and ignored. Callbacks stop once
// @ctx is done, though viper's watcher goroutine itself lives until process exit.
func WatchConfig(
	ctx context.Context,
	path string,
	onChange func(*TrainingConfig),
) error {
	vp := newViper(path)
	if err := vp.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config %s: %w", path, err)
	}

	vp.OnConfigChange(func(event fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		cfg, err := decode(vp)
		if err != nil {
			slog.Warn("ignoring invalid config change", "file", event.Name, "err", err)
			return
		}
		slog.Info("config reloaded", "file", event.Name)
		onChange(cfg)
	})
	vp.WatchConfig()
	return nil
}
