package cluster

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/advect/internal/channel"
)

// Option configures Build and NewWorker.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	ids        IDGenerator
	runID      string
	faults     *channel.Faults
	trace      *channel.Trace
}

func defaultOptions() options {
	return options{
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
}

// WithLogger sets the base logger. Engines add a "rank" attribute.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer exports per-rank engine metrics to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithIDGenerator sets the run id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithRunID fixes the run id. It takes precedence over WithIDGenerator.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// WithFaults injects duplicate and reordered messages on the in-process hub.
func WithFaults(f channel.Faults) Option {
	return func(o *options) { o.faults = &f }
}

// WithTrace records every message sent by every rank into t.
func WithTrace(t *channel.Trace) Option {
	return func(o *options) { o.trace = t }
}
