package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"qgrid/agent"
	"qgrid/atomic_float"
	"qgrid/models"
	"qgrid/qmatrix"
)

// Learner consumes agent experience and may write values back into the matrix.
// The walker itself never changes action values; the backup rule is the learner's business.
type Learner interface {
	Learn(q *qmatrix.QMatrix, step models.Step)
}

// LearnerFunc adapts a function to the Learner interface.
type LearnerFunc func(*qmatrix.QMatrix, models.Step)

func (fn LearnerFunc) Learn(q *qmatrix.QMatrix, step models.Step) {
	fn(q, step)
}

// ProgressFunc is a callback by which the walker lends progress details,
// while exercising some level of control over its cancellation to prevent blocking.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
// It runs on the walker's goroutine, so it may read the agent.
type ProgressFunc func(context.Context, int)

// DefaultMaxSteps bounds episodes when the config does not.
const DefaultMaxSteps = 1000

// Walker is the driver loop around an agent: select an action, observe its reward,
// execute it, hand the step to the learner. Episodes restart at the start state and
// end at a goal state or after maxSteps.
type Walker struct {
	agent      *agent.Agent
	q          *qmatrix.QMatrix
	start      int
	goals      map[int]bool
	maxSteps   int
	learner    Learner
	progressFn ProgressFunc

	episodes    atomic.Int64
	steps       atomic.Int64
	totalReward *atomic_float.AtomicFloat64
	lastReward  *atomic_float.AtomicFloat64
}

// NewWalker returns a walker over @a and @q for the episode structure in @cfg.
func NewWalker(a *agent.Agent, q *qmatrix.QMatrix, cfg *TrainingConfig) *Walker {
	goals := make(map[int]bool, len(cfg.Goals))
	for _, goal := range cfg.Goals {
		goals[goal] = true
	}
	maxSteps := cfg.Grid.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}

	return &Walker{
		agent:       a,
		q:           q,
		start:       cfg.Grid.Start,
		goals:       goals,
		maxSteps:    maxSteps,
		totalReward: atomic_float.NewAtomicFloat64(0),
		lastReward:  atomic_float.NewAtomicFloat64(0),
	}
}

// WithLearner sets the learner called after every step.
func (w *Walker) WithLearner(learner Learner) *Walker {
	w.learner = learner
	return w
}

// WithProgress sets the callback invoked after every episode with the episode count.
func (w *Walker) WithProgress(progressFn ProgressFunc) *Walker {
	w.progressFn = progressFn
	return w
}

// IsGoal reports whether @state ends an episode.
func (w *Walker) IsGoal(state int) bool {
	return w.goals[state]
}

// Run walks @episodes episodes, or until cancellation when @episodes is 0.
// Cancellation is a normal way to stop and is not reported as an error.
func (w *Walker) Run(ctx context.Context, episodes int) error {
	for ep := 0; episodes == 0 || ep < episodes; ep++ {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := w.RunEpisode(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
	return nil
}

// RunEpisode resets the agent to the start state and walks until a goal, maxSteps,
// or cancellation. A state with no legal action ends the episode.
func (w *Walker) RunEpisode(ctx context.Context) (episode models.Episode, err error) {
	if err = w.agent.Reset(w.start); err != nil {
		return
	}

	reward := 0.0
	for len(episode) < w.maxSteps && !w.IsGoal(w.agent.CurrentState()) {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		default:
		}

		var step models.Step
		if step, err = w.step(); err != nil {
			if errors.Is(err, models.ErrNoLegalAction) {
				slog.Debug("episode ended without a legal action", "state", w.agent.CurrentState())
				err = nil
				break
			}
			return
		}

		episode = append(episode, step)
		reward += step.Reward
		if w.learner != nil {
			w.learner.Learn(w.q, step)
		}
	}

	w.lastReward.Store(reward)
	count := w.episodes.Add(1)
	if w.progressFn != nil {
		w.progressFn(ctx, int(count))
	}
	return
}

func (w *Walker) step() (step models.Step, err error) {
	state := w.agent.CurrentState()
	var action models.Action
	if action, err = w.agent.SelectAction(); err != nil {
		return
	}

	// The reward is the environment's payoff for attempting the action from state.
	reward := w.q.Reward(state, action)
	if err = w.agent.Execute(action); err != nil {
		err = fmt.Errorf("walker: selected action failed: %w", err)
		return
	}

	w.steps.Add(1)
	w.totalReward.Accumulate(reward)
	step = models.Step{
		State:     state,
		Action:    action,
		Successor: w.agent.CurrentState(),
		Reward:    reward,
	}
	return
}

// Stats is a copy of the walker's running counters.
type Stats struct {
	Episodes    int     `json:"episodes"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"totalReward"`
	LastReward  float64 `json:"lastReward"`
}

// Stats may be called from any goroutine.
func (w *Walker) Stats() Stats {
	return Stats{
		Episodes:    int(w.episodes.Load()),
		Steps:       int(w.steps.Load()),
		TotalReward: w.totalReward.AtomicRead(),
		LastReward:  w.lastReward.AtomicRead(),
	}
}

// Snapshot is everything the views need to draw the walk at one moment.
type Snapshot struct {
	Grid       qmatrix.Grid `json:"grid"`
	AgentState int          `json:"agentState"`
	Goals      []int        `json:"goals"`
	Stats      Stats        `json:"stats"`
	Epsilon    float64      `json:"epsilon"`
}

// Snapshot copies the matrix and the agent position. It reads the agent, so call it
// from the walker's goroutine, e.g. inside a ProgressFunc, or when the walker is idle.
func (w *Walker) Snapshot() Snapshot {
	goals := make([]int, 0, len(w.goals))
	for goal := range w.goals {
		goals = append(goals, goal)
	}
	sort.Ints(goals)
	return Snapshot{
		Grid:       w.q.Snapshot(),
		AgentState: w.agent.CurrentState(),
		Goals:      goals,
		Stats:      w.Stats(),
		Epsilon:    w.agent.ExplorationRate(),
	}
}
