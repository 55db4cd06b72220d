package cluster

import (
	"context"
	"fmt"

	"github.com/roach88/advect/internal/channel"
	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/engine"
)

// Worker runs one rank of a multi-process run.
type Worker struct {
	env    *environment
	ch     channel.Channel
	engine *engine.Engine
}

// NewWorker builds the engine of rank over ch. Every worker of a run must
// load the same config; seeds and ownership are derived from it, so no
// setup messages are exchanged.
//
// Without WithRunID the run id is derived from the config fingerprint so
// that independently started workers agree on it.
func NewWorker(cfg *config.Config, rank int, ch channel.Channel, opts ...Option) (*Worker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		fp, err := cfg.Fingerprint()
		if err != nil {
			return nil, err
		}
		o.runID = "fp-" + fp[:16]
	}

	if rank < 0 || rank >= cfg.Ranks {
		return nil, engine.NewConfigurationError("rank %d outside [0,%d)", rank, cfg.Ranks)
	}
	if ch.Size() != cfg.Ranks || ch.Rank() != rank {
		return nil, engine.NewConfigurationError(
			"channel is rank %d of %d, config wants rank %d of %d", ch.Rank(), ch.Size(), rank, cfg.Ranks)
	}

	env, err := newEnvironment(cfg, o)
	if err != nil {
		return nil, err
	}
	e, err := env.engine(rank, ch)
	if err != nil {
		return nil, err
	}
	return &Worker{env: env, ch: ch, engine: e}, nil
}

// DialWorker connects to every peer over TCP and builds the worker.
// addrs[r] is the listen address of rank r.
func DialWorker(ctx context.Context, cfg *config.Config, rank int, addrs []string, opts ...Option) (*Worker, error) {
	if len(addrs) != cfg.Ranks {
		return nil, engine.NewConfigurationError("%d peer addresses for %d ranks", len(addrs), cfg.Ranks)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	stream, err := channel.Connect(ctx, rank, addrs, channel.WithStreamLimits(limits(cfg)), channel.WithStreamLogger(o.logger))
	if err != nil {
		return nil, err
	}
	w, err := NewWorker(cfg, rank, stream, opts...)
	if err != nil {
		stream.Close()
		return nil, err
	}
	return w, nil
}

// RunID returns the run id shared by all workers.
func (w *Worker) RunID() string { return w.env.runID }

// Engine returns the rank's engine.
func (w *Worker) Engine() *engine.Engine { return w.engine }

// Run drives the rank to global completion and closes the channel.
// The result holds this rank only.
func (w *Worker) Run(ctx context.Context) (*Result, error) {
	defer w.ch.Close()

	if err := w.engine.Run(ctx); err != nil {
		return nil, fmt.Errorf("rank %d: %w", w.engine.Rank(), err)
	}
	w.env.logger.Info("worker finished", "rank", w.engine.Rank())
	return &Result{
		RunID:       w.env.runID,
		Fingerprint: w.env.fingerprint,
		Config:      w.env.cfg,
		Ranks:       []RankResult{rankResult(w.engine)},
	}, nil
}
