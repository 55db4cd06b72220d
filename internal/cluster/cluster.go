// Package cluster wires configuration, collaborators and engines into a
// complete multi-rank run.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/directory"
	"github.com/roach88/advect/internal/engine"
	"github.com/roach88/advect/internal/field"
	"github.com/roach88/advect/internal/ir"
	"github.com/roach88/advect/internal/metrics"
)

// ErrLiveness is returned by RunLockstep when the round limit is reached
// before every rank is globally done.
var ErrLiveness = errors.New("liveness: round limit reached before global completion")

// Cluster is an in-process run: every rank's engine over one Hub.
type Cluster struct {
	cfg         *config.Config
	runID       string
	fingerprint string
	logger      *slog.Logger

	hub     *channel.Hub
	engines []*engine.Engine
}

// Build validates cfg and constructs one seeded engine per rank.
func Build(cfg *config.Config, opts ...Option) (*Cluster, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	env, err := newEnvironment(cfg, o)
	if err != nil {
		return nil, err
	}

	var hubOpts []channel.HubOption
	if cfg.Channel.Encode {
		hubOpts = append(hubOpts, channel.WithEncoding(limits(cfg)))
	}
	if o.faults != nil {
		hubOpts = append(hubOpts, channel.WithFaults(*o.faults))
	}
	hub, err := channel.NewHub(cfg.Ranks, hubOpts...)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}

	c := &Cluster{
		cfg:         cfg,
		runID:       env.runID,
		fingerprint: env.fingerprint,
		logger:      env.logger,
		hub:         hub,
	}
	for rank := 0; rank < cfg.Ranks; rank++ {
		e, err := env.engine(rank, hub.Endpoint(rank))
		if err != nil {
			return nil, err
		}
		c.engines = append(c.engines, e)
	}

	c.logger.Info("cluster built",
		"ranks", cfg.Ranks,
		"domains", env.dir.Domains(),
		"time_steps", env.dir.TimeSteps(),
		"seeds", env.seedCount,
		"partition", cfg.Partition,
	)
	return c, nil
}

// RunID returns the id of this run.
func (c *Cluster) RunID() string { return c.runID }

// Fingerprint returns the config fingerprint of this run.
func (c *Cluster) Fingerprint() string { return c.fingerprint }

// Engines returns the per-rank engines in rank order.
func (c *Cluster) Engines() []*engine.Engine { return c.engines }

// Hub returns the in-process channel.
func (c *Cluster) Hub() *channel.Hub { return c.hub }

// Run drives every rank on its own goroutine. The first failure cancels
// the other ranks.
func (c *Cluster) Run(ctx context.Context) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range c.engines {
		g.Go(func() error {
			return e.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.logger.Info("cluster finished", "run_id", c.runID)
	return c.result(), nil
}

// RunLockstep steps every rank once per round, in rank order, on the
// calling goroutine. The message interleaving is fully deterministic.
func (c *Cluster) RunLockstep(ctx context.Context, maxRounds int) (*Result, error) {
	for round := 0; ; round++ {
		if c.done() {
			c.logger.Info("cluster finished", "run_id", c.runID, "rounds", round)
			return c.result(), nil
		}
		if round >= maxRounds {
			return nil, fmt.Errorf("%w (%d rounds)", ErrLiveness, maxRounds)
		}
		for _, e := range c.engines {
			if err := e.Step(ctx); err != nil {
				return nil, err
			}
		}
	}
}

func (c *Cluster) done() bool {
	for _, e := range c.engines {
		if e.Phase() != engine.PhaseGlobalDone {
			return false
		}
	}
	return true
}

func (c *Cluster) result() *Result {
	r := &Result{
		RunID:       c.runID,
		Fingerprint: c.fingerprint,
		Config:      c.cfg,
	}
	for _, e := range c.engines {
		r.Ranks = append(r.Ranks, rankResult(e))
	}
	return r
}

func rankResult(e *engine.Engine) RankResult {
	curves := e.TakeTerminated()
	slices.SortFunc(curves, func(a, b ir.Curve) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return RankResult{Rank: e.Rank(), Curves: curves, Stats: e.Stats()}
}

func limits(cfg *config.Config) channel.Limits {
	l := channel.DefaultLimits()
	if cfg.Channel.MaxPayloadBytes > 0 {
		l.MaxPayloadBytes = cfg.Channel.MaxPayloadBytes
	}
	return l
}

// environment holds what every rank of a run shares.
type environment struct {
	cfg         *config.Config
	runID       string
	fingerprint string
	logger      *slog.Logger
	metrics     *metrics.Collector
	trace       *channel.Trace

	dir       *directory.Directory
	grid      *field.Grid
	seeds     [][]ir.Seed
	seedCount int
}

func newEnvironment(cfg *config.Config, o options) (*environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	fp, err := cfg.Fingerprint()
	if err != nil {
		return nil, err
	}

	strategy, err := directory.ParseStrategy(cfg.Partition)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	grid, err := field.NewGrid(cfg.GridSpec(), cfg.FieldSpec())
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	dir, err := directory.New(strategy, grid.Domains(), grid.TimeSteps(), cfg.Ranks)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}

	seeds, err := field.GenerateSeeds(cfg.SeedSpec())
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}
	parts, err := directory.PartitionSeeds(seeds, cfg.Ranks)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}

	runID := o.runID
	if runID == "" {
		runID = o.ids.Generate()
	}

	env := &environment{
		cfg:         cfg,
		runID:       runID,
		fingerprint: fp,
		logger:      o.logger.With("run_id", runID),
		dir:         dir,
		grid:        grid,
		seeds:       parts,
		seedCount:   len(seeds),
		trace:       o.trace,
	}
	if o.registerer != nil {
		m, err := metrics.New(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		env.metrics = m
	}
	return env, nil
}

// engine builds and seeds the engine of one rank over ch.
func (env *environment) engine(rank int, ch channel.Channel) (*engine.Engine, error) {
	if env.trace != nil {
		ch = env.trace.Wrap(ch)
	}
	solver, err := field.NewRK4(env.cfg.Solver.StepSize, env.cfg.Solver.MaxTime)
	if err != nil {
		return nil, engine.NewConfigurationError("%v", err)
	}

	opts := []engine.Option{
		engine.WithLogger(env.logger),
		engine.WithPattern(env.cfg.Pattern),
		engine.WithStepBudget(env.cfg.Solver.StepBudget),
		engine.WithMaxCurveSteps(env.cfg.Solver.MaxSteps),
		engine.WithCacheLimit(env.cfg.Cache.Limit),
	}
	if env.metrics != nil {
		opts = append(opts, engine.WithMetrics(env.metrics.Rank(rank)))
	}

	e, err := engine.New(engine.Collaborators{
		Directory: env.dir,
		Channel:   ch,
		Solver:    solver,
		Mesh:      env.grid,
		Locator:   env.grid,
	}, opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Seed(env.seeds[rank]); err != nil {
		return nil, err
	}
	return e, nil
}
