/*
Qgrid walks a single epsilon-greedy agent over an n x n grid of states, using action values
and rewards held in a dense matrix, and serves live views of the walk: the greedy policy and
values per cell over a websocket, the snapshot as json, and a heatmap. The action-value backup
itself is pluggable via reinforcement.Learner; out of the box the agent only walks.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"qgrid/agent"
	"qgrid/qmatrix"
	"qgrid/reinforcement"
	"qgrid/server"
	"qgrid/server/cell_views"

	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

type options struct {
	debug       bool
	configPath  string
	addr        string
	serve       bool
	exportEvery int
	printEvery  time.Duration
	out         io.Writer
}

func parseFlags() *options {
	dbg := flag.Bool("debug", false, "debug logging")
	host := flag.String("host", "", "The host ip")
	port := flag.String("port", "8080", "The host port")
	configPath := flag.String("config", "./config.yaml", "training config file")
	serve := flag.Bool("serve", true, "serve live views; when false, exit once training completes")
	exportEvery := flag.Int("export", 10, "send a snapshot to the views every this many episodes")
	printEvery := flag.Duration("print", 0, "print the policy and values to the console at this interval, 0 to disable")
	flag.Parse()

	return &options{
		debug:       *dbg,
		configPath:  *configPath,
		addr:        *host + ":" + *port,
		serve:       *serve,
		exportEvery: *exportEvery,
		printEvery:  *printEvery,
		out:         os.Stdout,
	}
}

func initLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// newRand seeds from the config, or from the clock when the config leaves it at 0.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func runApp(appCtx context.Context, opts *options) (err error) {
	var cfg *reinforcement.TrainingConfig
	if cfg, err = reinforcement.FromYaml(opts.configPath); err != nil {
		return
	}

	var q *qmatrix.QMatrix
	if q, err = qmatrix.New(cfg.Grid.Size); err != nil {
		return
	}
	if err = cfg.ApplyRewards(q); err != nil {
		return
	}

	var a *agent.Agent
	if a, err = agent.New(cfg.Grid.Size, cfg.Grid.Start, q, cfg.Epsilon(), newRand(cfg.Grid.Seed)); err != nil {
		return
	}
	walker := reinforcement.NewWalker(a, q, cfg)

	if err = reinforcement.WatchConfig(appCtx, opts.configPath, func(updated *reinforcement.TrainingConfig) {
		if rateErr := a.SetExplorationRate(updated.Epsilon()); rateErr != nil {
			slog.Warn("exploration rate not updated", "err", rateErr)
			return
		}
		slog.Info("exploration rate updated", "epsilon", updated.Epsilon())
	}); err != nil {
		return
	}

	group, groupCtx := errgroup.WithContext(appCtx)
	trainingCtx, cancel, err := cfg.WithTrainingDeadline(groupCtx)
	if err != nil {
		return
	}
	defer cancel()

	var srv *server.Server
	snapshots := make(chan reinforcement.Snapshot)
	if opts.serve {
		walker.WithProgress(exportSnapshots(walker, snapshots, opts.exportEvery))
		if srv, err = server.NewServer(groupCtx, opts.addr, walker.Snapshot(), snapshots); err != nil {
			return
		}
		group.Go(srv.Serve)

		if opts.printEvery > 0 {
			group.Go(func() error {
				printSnapshots(groupCtx, opts.out, srv, opts.printEvery)
				return nil
			})
		}
	}

	group.Go(func() error {
		slog.Info("training", "grid", cfg.Grid.Size, "episodes", cfg.Grid.Episodes, "epsilon", a.ExplorationRate())
		if runErr := walker.Run(trainingCtx, cfg.Grid.Episodes); runErr != nil {
			return fmt.Errorf("training: %w", runErr)
		}

		final := walker.Snapshot()
		if srv != nil {
			select {
			case snapshots <- final:
			case <-groupCtx.Done():
			}
		}

		stats := walker.Stats()
		slog.Info("training done",
			"episodes", stats.Episodes,
			"steps", stats.Steps,
			"totalReward", stats.TotalReward)
		show(opts.out, final)
		return nil
	})

	err = group.Wait()
	return
}

// exportSnapshots returns a progress func that sends the walker's snapshot every @every episodes.
// It blocks the walker until the snapshot is taken or the walk is cancelled.
func exportSnapshots(
	walker *reinforcement.Walker,
	snapshots chan<- reinforcement.Snapshot,
	every int,
) reinforcement.ProgressFunc {
	if every < 1 {
		every = 1
	}
	return func(ctx context.Context, episodeCount int) {
		if episodeCount%every != 0 {
			return
		}
		select {
		case snapshots <- walker.Snapshot():
		case <-ctx.Done():
		}
	}
}

func printSnapshots(
	ctx context.Context,
	out io.Writer,
	srv *server.Server,
	every time.Duration,
) {
	for range channerics.NewTicker(ctx.Done(), every) {
		show(out, srv.Last())
	}
}

func show(out io.Writer, snapshot reinforcement.Snapshot) {
	cells := cell_views.Convert(snapshot)
	fmt.Fprintf(out, "episodes: %d  steps: %d  epsilon: %.2f\n",
		snapshot.Stats.Episodes, snapshot.Stats.Steps, snapshot.Epsilon)
	cell_views.ShowPolicy(out, cells)
	cell_views.ShowValues(out, cells)
}

func main() {
	opts := parseFlags()
	initLogging(opts.debug)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	if err := runApp(appCtx, opts); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}
